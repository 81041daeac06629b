package port

import (
	"context"
	"time"

	"cart-engine/internal/domain"
)

// CartRepository reads and writes cart rows. Find* methods return (nil, nil)
// when nothing matches; GetByID returns domain.ErrNotFound.
type CartRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	FindActiveByUser(ctx context.Context, userID, instance string) (*domain.Cart, error)
	FindActiveBySession(ctx context.Context, sessionKey, instance string) (*domain.Cart, error)

	// CreateActive fails with domain.ErrDuplicateActiveCart when the owner
	// already has an active cart for the instance.
	CreateActive(ctx context.Context, owner domain.Owner, instance string) (*domain.Cart, error)
	FirstOrCreateBySession(ctx context.Context, sessionKey, instance string) (*domain.Cart, error)

	Save(ctx context.Context, cart *domain.Cart) error
	// Delete removes the cart and every line it owns.
	Delete(ctx context.Context, id string) error

	ExpireStale(ctx context.Context, untouchedSince time.Time) (int64, error)
	DeleteExpired(ctx context.Context, untouchedSince time.Time) (int64, error)
}
