package cart

import (
	"context"
	"fmt"
	"io"
	"log"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	"github.com/shopspring/decimal"
)

// EventKind identifies a line item lifecycle event.
type EventKind int

const (
	LineCreated EventKind = iota + 1
	LineUpdated
	LineDeleted
)

func (k EventKind) String() string {
	switch k {
	case LineCreated:
		return "created"
	case LineUpdated:
		return "updated"
	case LineDeleted:
		return "deleted"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// LineEvent is emitted by every single-line mutation. Updated events carry
// the quantity and unit price the line had before the change.
type LineEvent struct {
	Kind         EventKind
	Line         domain.LineItem
	OldQuantity  int
	OldUnitPrice decimal.Decimal
}

func Created(line domain.LineItem) LineEvent {
	return LineEvent{Kind: LineCreated, Line: line}
}

func Updated(line domain.LineItem, oldQuantity int, oldUnitPrice decimal.Decimal) LineEvent {
	return LineEvent{Kind: LineUpdated, Line: line, OldQuantity: oldQuantity, OldUnitPrice: oldUnitPrice}
}

func Deleted(line domain.LineItem) LineEvent {
	return LineEvent{Kind: LineDeleted, Line: line}
}

// delta returns the change the event makes to total price and item count.
func (e LineEvent) delta() (decimal.Decimal, int) {
	switch e.Kind {
	case LineCreated:
		return e.Line.Price(), e.Line.Quantity
	case LineUpdated:
		old := e.OldUnitPrice.Mul(decimal.NewFromInt(int64(e.OldQuantity)))
		return e.Line.Price().Sub(old), e.Line.Quantity - e.OldQuantity
	case LineDeleted:
		return e.Line.Price().Neg(), -e.Line.Quantity
	}
	return decimal.Zero, 0
}

// driftTolerance is the largest price difference between accumulated deltas
// and a fresh sum that is not reported.
var driftTolerance = decimal.New(1, -6)

// Maintainer keeps cart.TotalPrice and cart.ItemCount equal to the sums over
// the cart's lines.
type Maintainer struct {
	logger *log.Logger
}

func NewMaintainer(logger *log.Logger) *Maintainer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Maintainer{logger: logger}
}

// Apply adds the exact delta of ev to cart and persists it.
func (m *Maintainer) Apply(ctx context.Context, carts port.CartRepository, cart *domain.Cart, ev LineEvent) error {
	if ev.Line.CartID != cart.ID {
		return fmt.Errorf("aggregate: %s event for line %s owned by cart %s applied to cart %s", ev.Kind, ev.Line.ID, ev.Line.CartID, cart.ID)
	}
	price, count := ev.delta()
	cart.TotalPrice = cart.TotalPrice.Add(price)
	cart.ItemCount += count
	if err := carts.Save(ctx, cart); err != nil {
		return fmt.Errorf("aggregate: save cart %s: %w", cart.ID, err)
	}
	return nil
}

// Recompute resets the aggregates of cart from a fresh sum over its lines and
// persists it. The values already on cart are treated as the incrementally
// maintained expectation; a disagreement is logged and the fresh sum wins.
func (m *Maintainer) Recompute(ctx context.Context, r port.Repos, cart *domain.Cart) error {
	lines, err := r.Lines.ListByCart(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("aggregate: list lines of cart %s: %w", cart.ID, err)
	}
	total, count := Sum(lines)

	if cart.TotalPrice.Sub(total).Abs().GreaterThan(driftTolerance) || cart.ItemCount != count {
		m.logger.Printf("aggregate: drift cart=%s expected_total=%s actual_total=%s expected_count=%d actual_count=%d",
			cart.ID, cart.TotalPrice, total, cart.ItemCount, count)
	}

	cart.TotalPrice = total
	cart.ItemCount = count
	if err := r.Carts.Save(ctx, cart); err != nil {
		return fmt.Errorf("aggregate: save cart %s: %w", cart.ID, err)
	}
	return nil
}

// Reset zeroes the aggregates after all lines of cart have been removed.
func (m *Maintainer) Reset(ctx context.Context, carts port.CartRepository, cart *domain.Cart) error {
	cart.TotalPrice = decimal.Zero
	cart.ItemCount = 0
	if err := carts.Save(ctx, cart); err != nil {
		return fmt.Errorf("aggregate: save cart %s: %w", cart.ID, err)
	}
	return nil
}

// Sum returns Σ quantity*unitPrice and Σ quantity over lines.
func Sum(lines []domain.LineItem) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, l := range lines {
		total = total.Add(l.Price())
		count += l.Quantity
	}
	return total, count
}
