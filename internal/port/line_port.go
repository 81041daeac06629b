package port

import (
	"context"

	"cart-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// LineStore is CRUD over line items scoped to a cart. It never touches cart
// aggregates.
type LineStore interface {
	FindByCartAndKey(ctx context.Context, cartID, productID string, attrs domain.Attributes) (*domain.LineItem, error)
	ListByCart(ctx context.Context, cartID string) ([]domain.LineItem, error)

	Create(ctx context.Context, in domain.NewLine) (*domain.LineItem, error)
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	Update(ctx context.Context, lineID string, quantity int, unitPrice decimal.Decimal) error
	Delete(ctx context.Context, lineID string) error
	DeleteByCart(ctx context.Context, cartID string) (int64, error)
	ReassignOwner(ctx context.Context, lineID, newCartID string) error
}
