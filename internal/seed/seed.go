package seed

import (
	"context"
	"fmt"

	"cart-engine/internal/domain"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/session"
	"github.com/shopspring/decimal"
)

type lineSeed struct {
	ProductID  string
	Attributes domain.Attributes
	Quantity   int
	UnitPrice  string
}

type cartSeed struct {
	SessionKey string
	UserID     string
	Instance   string
	Lines      []lineSeed
}

// Demo carts: one guest cart and one user cart sharing a product, so logging
// in with the demo session exercises the merge.
var demoCarts = []cartSeed{
	{
		SessionKey: "demo-session",
		Instance:   domain.DefaultInstance,
		Lines: []lineSeed{
			{ProductID: "demo-shirt", Attributes: domain.Attributes{"size": "M"}, Quantity: 2, UnitPrice: "19.99"},
			{ProductID: "demo-mug", Quantity: 1, UnitPrice: "12.99"},
		},
	},
	{
		UserID:   "demo-user",
		Instance: domain.DefaultInstance,
		Lines: []lineSeed{
			{ProductID: "demo-shirt", Attributes: domain.Attributes{"size": "M"}, Quantity: 1, UnitPrice: "19.99"},
		},
	},
	{
		UserID:   "demo-user",
		Instance: "wishlist",
		Lines: []lineSeed{
			{ProductID: "demo-poster", Quantity: 1, UnitPrice: "7.50"},
		},
	},
}

// Apply fills the demo carts for manual testing. Carts that already hold
// items are left alone, so running it twice changes nothing.
func Apply(ctx context.Context, svc *cartsvc.Service) (int, error) {
	seeded := 0
	for _, cs := range demoCarts {
		ok, err := applyCart(ctx, svc, cs)
		if err != nil {
			return seeded, fmt.Errorf("seed cart owner=%s%s instance=%s: %w", cs.SessionKey, cs.UserID, cs.Instance, err)
		}
		if ok {
			seeded++
		}
	}
	return seeded, nil
}

func applyCart(ctx context.Context, svc *cartsvc.Service, cs cartSeed) (bool, error) {
	scope := cartsvc.NewScope(session.NewVisitor(nil, "", cs.SessionKey, cs.UserID))
	cart, err := svc.Current(ctx, scope, cs.Instance)
	if err != nil {
		return false, err
	}
	if !cart.IsEmpty() {
		return false, nil
	}
	for _, l := range cs.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return false, fmt.Errorf("price for %s: %w", l.ProductID, err)
		}
		if _, err := cart.AddItem(ctx, l.ProductID, l.Attributes, l.Quantity, price); err != nil {
			return false, err
		}
	}
	return true, nil
}
