package cart

import (
	"context"
	"fmt"
	"strings"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Cart is a resolved cart. Every operation runs in its own transaction
// against a freshly locked copy of the cart row and refreshes the snapshot
// held here once committed.
type Cart struct {
	svc   *Service
	scope *Scope
	state domain.Cart
}

func (c *Cart) ID() string {
	return c.state.ID
}

// Snapshot returns the cart as of the last operation performed through c.
func (c *Cart) Snapshot() domain.Cart {
	return c.state
}

func (c *Cart) IsEmpty() bool {
	return c.state.IsEmpty()
}

// LineValues holds the fields UpdateItem changes. Nil fields are left alone.
type LineValues struct {
	Quantity  *int
	UnitPrice *decimal.Decimal
}

// AddItem adds quantity units of the configuration to the cart. An existing
// line with the same identity key has its quantity increased and keeps its
// unit price; otherwise a new line is created.
func (c *Cart) AddItem(ctx context.Context, productID string, attrs domain.Attributes, quantity int, unitPrice decimal.Decimal) (*domain.LineItem, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("cart: add item: %w", domain.ErrInvalidProduct)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("cart: add item: quantity %d: %w", quantity, domain.ErrInvalidQuantity)
	}
	if unitPrice.IsNegative() {
		return nil, fmt.Errorf("cart: add item: unit price %s: %w", unitPrice, domain.ErrInvalidPrice)
	}

	var out *domain.LineItem
	err := c.mutateItems(ctx, func(ctx context.Context, r port.Repos, cart *domain.Cart) error {
		existing, err := r.Lines.FindByCartAndKey(ctx, cart.ID, productID, attrs)
		if err != nil {
			return err
		}
		if existing != nil {
			oldQuantity := existing.Quantity
			existing.Quantity += quantity
			if err := r.Lines.UpdateQuantity(ctx, existing.ID, existing.Quantity); err != nil {
				return err
			}
			out = existing
			return c.svc.maintainer.Apply(ctx, r.Carts, cart, Updated(*existing, oldQuantity, existing.UnitPrice))
		}

		line, err := r.Lines.Create(ctx, domain.NewLine{
			CartID:     cart.ID,
			ProductID:  productID,
			Attributes: attrs,
			Quantity:   quantity,
			UnitPrice:  unitPrice,
		})
		if err != nil {
			return err
		}
		out = line
		return c.svc.maintainer.Apply(ctx, r.Carts, cart, Created(*line))
	})
	if err != nil {
		return nil, fmt.Errorf("cart: add item product=%s: %w", productID, err)
	}
	return out, nil
}

// RemoveItem deletes the first line matching m and reports whether one was found.
func (c *Cart) RemoveItem(ctx context.Context, m Matcher) (bool, error) {
	removed := false
	err := c.mutateItems(ctx, func(ctx context.Context, r port.Repos, cart *domain.Cart) error {
		line, err := firstMatch(ctx, r, cart.ID, m)
		if err != nil || line == nil {
			return err
		}
		if err := r.Lines.Delete(ctx, line.ID); err != nil {
			return err
		}
		removed = true
		return c.svc.maintainer.Apply(ctx, r.Carts, cart, Deleted(*line))
	})
	if err != nil {
		return false, fmt.Errorf("cart: remove item: %w", err)
	}
	return removed, nil
}

// UpdateItem applies v to the first line matching m and returns the updated
// line, or nil when nothing matched.
func (c *Cart) UpdateItem(ctx context.Context, m Matcher, v LineValues) (*domain.LineItem, error) {
	if v.Quantity != nil && *v.Quantity < 0 {
		return nil, fmt.Errorf("cart: update item: quantity %d: %w", *v.Quantity, domain.ErrInvalidQuantity)
	}
	if v.UnitPrice != nil && v.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("cart: update item: unit price %s: %w", *v.UnitPrice, domain.ErrInvalidPrice)
	}

	var out *domain.LineItem
	err := c.mutateItems(ctx, func(ctx context.Context, r port.Repos, cart *domain.Cart) error {
		line, err := firstMatch(ctx, r, cart.ID, m)
		if err != nil || line == nil {
			return err
		}
		oldQuantity, oldUnitPrice := line.Quantity, line.UnitPrice
		if v.Quantity != nil {
			line.Quantity = *v.Quantity
		}
		if v.UnitPrice != nil {
			line.UnitPrice = *v.UnitPrice
		}
		if err := r.Lines.Update(ctx, line.ID, line.Quantity, line.UnitPrice); err != nil {
			return err
		}
		out = line
		return c.svc.maintainer.Apply(ctx, r.Carts, cart, Updated(*line, oldQuantity, oldUnitPrice))
	})
	if err != nil {
		return nil, fmt.Errorf("cart: update item: %w", err)
	}
	return out, nil
}

// Clear removes every line in one statement and zeroes the aggregates.
func (c *Cart) Clear(ctx context.Context) error {
	err := c.mutateItems(ctx, func(ctx context.Context, r port.Repos, cart *domain.Cart) error {
		if _, err := r.Lines.DeleteByCart(ctx, cart.ID); err != nil {
			return err
		}
		return c.svc.maintainer.Reset(ctx, r.Carts, cart)
	})
	if err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}

// Refresh recomputes the aggregates from the cart's lines.
func (c *Cart) Refresh(ctx context.Context) error {
	err := c.mutate(ctx, func(ctx context.Context, r port.Repos, cart *domain.Cart) error {
		return c.svc.maintainer.Recompute(ctx, r, cart)
	})
	if err != nil {
		return fmt.Errorf("cart: refresh: %w", err)
	}
	return nil
}

// Checkout moves an active cart to pending and stamps PlacedAt.
func (c *Cart) Checkout(ctx context.Context) error {
	return c.transition(ctx, domain.StatusPending, func(cart *domain.Cart) {
		now := c.svc.now()
		cart.PlacedAt = &now
	})
}

// Complete moves a pending cart to complete and stamps CompletedAt.
func (c *Cart) Complete(ctx context.Context) error {
	return c.transition(ctx, domain.StatusComplete, func(cart *domain.Cart) {
		now := c.svc.now()
		cart.CompletedAt = &now
	})
}

func (c *Cart) Expire(ctx context.Context) error {
	return c.transition(ctx, domain.StatusExpired, nil)
}

func (c *Cart) transition(ctx context.Context, next domain.Status, stamp func(*domain.Cart)) error {
	err := c.mutate(ctx, func(ctx context.Context, r port.Repos, cart *domain.Cart) error {
		if !cart.Status.CanTransition(next) {
			return fmt.Errorf("%s -> %s: %w", cart.Status, next, domain.ErrInvalidTransition)
		}
		cart.Status = next
		if stamp != nil {
			stamp(cart)
		}
		return r.Carts.Save(ctx, cart)
	})
	if err != nil {
		return fmt.Errorf("cart %s: %w", c.state.ID, err)
	}
	c.svc.logger.Printf("cart service: cart=%s status=%s", c.state.ID, next)
	return nil
}

// Items lists the cart's lines in creation order.
func (c *Cart) Items(ctx context.Context) ([]domain.LineItem, error) {
	var lines []domain.LineItem
	err := c.svc.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		var err error
		lines, err = r.Lines.ListByCart(ctx, c.state.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cart: list items: %w", err)
	}
	return lines, nil
}

// GetItem returns the first line matching m, or nil.
func (c *Cart) GetItem(ctx context.Context, m Matcher) (*domain.LineItem, error) {
	lines, err := c.Items(ctx)
	if err != nil {
		return nil, err
	}
	line, ok := lo.Find(lines, m)
	if !ok {
		return nil, nil
	}
	return &line, nil
}

func (c *Cart) HasItem(ctx context.Context, m Matcher) (bool, error) {
	line, err := c.GetItem(ctx, m)
	return line != nil, err
}

// MoveItemsTo transfers the lines of c whose identity key is not present in
// target, recomputing both carts in the same transaction. Colliding lines stay
// on c. It returns the number of lines moved.
func (c *Cart) MoveItemsTo(ctx context.Context, target *Cart) (int, error) {
	if target.state.ID == c.state.ID {
		return 0, nil
	}
	moved, err := c.movePair(ctx, target, func(ctx context.Context, r port.Repos, src, dst *domain.Cart) (int, error) {
		return transferLines(ctx, c.svc.maintainer, r, src, dst)
	})
	if err != nil {
		return 0, fmt.Errorf("cart: move items from %s to %s: %w", c.state.ID, target.state.ID, err)
	}
	c.svc.logger.Printf("cart service: moved %d lines from cart=%s to cart=%s", moved, c.state.ID, target.state.ID)
	return moved, nil
}

// MoveItemTo transfers the first line of c matching m to target. A line whose
// identity key already exists on target stays on c, as in MoveItemsTo. It
// reports whether a line was moved.
func (c *Cart) MoveItemTo(ctx context.Context, m Matcher, target *Cart) (bool, error) {
	if target.state.ID == c.state.ID {
		return false, nil
	}
	moved, err := c.movePair(ctx, target, func(ctx context.Context, r port.Repos, src, dst *domain.Cart) (int, error) {
		line, err := firstMatch(ctx, r, src.ID, m)
		if err != nil || line == nil {
			return 0, err
		}
		return transferMatching(ctx, c.svc.maintainer, r, src, dst, ByID(line.ID))
	})
	if err != nil {
		return false, fmt.Errorf("cart: move item from %s to %s: %w", c.state.ID, target.state.ID, err)
	}
	if moved > 0 {
		c.svc.logger.Printf("cart service: moved line from cart=%s to cart=%s", c.state.ID, target.state.ID)
	}
	return moved > 0, nil
}

// movePair locks c and target, both of which must be active, and runs fn on
// them in one transaction. Both snapshots are refreshed once committed.
func (c *Cart) movePair(ctx context.Context, target *Cart, fn func(ctx context.Context, r port.Repos, src, dst *domain.Cart) (int, error)) (int, error) {
	var (
		moved    int
		src, dst *domain.Cart
	)
	err := c.svc.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		// Lock in id order so concurrent moves between the same carts cannot deadlock.
		ids := []string{c.state.ID, target.state.ID}
		if ids[0] > ids[1] {
			ids[0], ids[1] = ids[1], ids[0]
		}
		locked := map[string]*domain.Cart{}
		for _, id := range ids {
			cart, err := r.Carts.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("load cart %s: %w", id, err)
			}
			if cart.Status != domain.StatusActive {
				return fmt.Errorf("cart %s is %s: %w", cart.ID, cart.Status, domain.ErrCartNotActive)
			}
			locked[id] = cart
		}
		src, dst = locked[c.state.ID], locked[target.state.ID]

		var err error
		moved, err = fn(ctx, r, src, dst)
		return err
	})
	if err != nil {
		return 0, err
	}
	c.state, target.state = *src, *dst
	return moved, nil
}

// Delete removes the cart and its lines.
func (c *Cart) Delete(ctx context.Context) error {
	err := c.svc.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		return r.Carts.Delete(ctx, c.state.ID)
	})
	if err != nil {
		return fmt.Errorf("cart: delete %s: %w", c.state.ID, err)
	}
	if c.scope != nil {
		delete(c.scope.carts, c.state.Instance)
	}
	c.svc.logger.Printf("cart service: deleted cart=%s", c.state.ID)
	return nil
}

// mutate runs fn in a transaction on the locked current row of the cart.
func (c *Cart) mutate(ctx context.Context, fn func(ctx context.Context, r port.Repos, cart *domain.Cart) error) error {
	var fresh domain.Cart
	err := c.svc.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		cart, err := r.Carts.GetByID(ctx, c.state.ID)
		if err != nil {
			return err
		}
		if err := fn(ctx, r, cart); err != nil {
			return err
		}
		fresh = *cart
		return nil
	})
	if err != nil {
		return err
	}
	c.state = fresh
	return nil
}

// mutateItems is mutate restricted to active carts.
func (c *Cart) mutateItems(ctx context.Context, fn func(ctx context.Context, r port.Repos, cart *domain.Cart) error) error {
	return c.mutate(ctx, func(ctx context.Context, r port.Repos, cart *domain.Cart) error {
		if cart.Status != domain.StatusActive {
			return fmt.Errorf("cart %s is %s: %w", cart.ID, cart.Status, domain.ErrCartNotActive)
		}
		return fn(ctx, r, cart)
	})
}

func firstMatch(ctx context.Context, r port.Repos, cartID string, m Matcher) (*domain.LineItem, error) {
	lines, err := r.Lines.ListByCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	line, ok := lo.Find(lines, m)
	if !ok {
		return nil, nil
	}
	return &line, nil
}
