package cart

import (
	"context"
	"fmt"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	"github.com/samber/lo"
)

// transferLines moves every line of src whose identity key is not already
// present in dst over to dst, then recomputes both aggregates. Lines that
// collide stay on src. Both carts must be locked by the caller's transaction.
func transferLines(ctx context.Context, m *Maintainer, r port.Repos, src, dst *domain.Cart) (int, error) {
	return transferMatching(ctx, m, r, src, dst, func(domain.LineItem) bool { return true })
}

// transferMatching is transferLines restricted to the lines of src selected by pick.
func transferMatching(ctx context.Context, m *Maintainer, r port.Repos, src, dst *domain.Cart, pick Matcher) (int, error) {
	dstLines, err := r.Lines.ListByCart(ctx, dst.ID)
	if err != nil {
		return 0, fmt.Errorf("list lines of cart %s: %w", dst.ID, err)
	}
	existing := lo.SliceToMap(dstLines, func(l domain.LineItem) (domain.LineKey, struct{}) {
		return l.Key(), struct{}{}
	})

	srcLines, err := r.Lines.ListByCart(ctx, src.ID)
	if err != nil {
		return 0, fmt.Errorf("list lines of cart %s: %w", src.ID, err)
	}
	toMove := lo.Filter(srcLines, func(l domain.LineItem, _ int) bool {
		_, collides := existing[l.Key()]
		return pick(l) && !collides
	})
	if len(toMove) == 0 {
		return 0, nil
	}

	for _, l := range toMove {
		if err := r.Lines.ReassignOwner(ctx, l.ID, dst.ID); err != nil {
			return 0, fmt.Errorf("reassign line %s to cart %s: %w", l.ID, dst.ID, err)
		}
		src.TotalPrice = src.TotalPrice.Sub(l.Price())
		src.ItemCount -= l.Quantity
		dst.TotalPrice = dst.TotalPrice.Add(l.Price())
		dst.ItemCount += l.Quantity
	}

	if err := m.Recompute(ctx, r, src); err != nil {
		return 0, err
	}
	if err := m.Recompute(ctx, r, dst); err != nil {
		return 0, err
	}
	return len(toMove), nil
}
