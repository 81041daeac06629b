package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
)

// maxResolveAttempts bounds the re-reads after losing a create race.
const maxResolveAttempts = 3

// ResolveRequest describes who is asking for which cart.
type ResolveRequest struct {
	Instance   string
	SessionKey string
	// UserID is empty for guests.
	UserID string
	// PreviousSessionKey is the session key the guest cart was created under,
	// remembered before the session id was rotated at login.
	PreviousSessionKey string
}

// Resolver decides which cart is authoritative for a request, merging a
// guest cart into the user's cart on login.
type Resolver struct {
	store      port.Store
	maintainer *Maintainer
	logger     *log.Logger
}

func NewResolver(store port.Store, maintainer *Maintainer, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{store: store, maintainer: maintainer, logger: logger}
}

// Resolve returns the single active cart for the request. Each attempt runs in
// one transaction; an attempt that loses a concurrent create is retried by
// reading again. Other failures are returned with nothing committed.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*domain.Cart, error) {
	if req.Instance == "" {
		return nil, errors.New("cart resolver: instance required")
	}
	if req.UserID == "" && req.SessionKey == "" {
		return nil, errors.New("cart resolver: session key required for guests")
	}

	for attempt := 1; ; attempt++ {
		var cart *domain.Cart
		err := r.store.InTx(ctx, func(ctx context.Context, repos port.Repos) error {
			var err error
			cart, err = r.resolveOnce(ctx, repos, req)
			return err
		})
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, domain.ErrDuplicateActiveCart) || attempt >= maxResolveAttempts {
			return nil, err
		}
		r.logger.Printf("cart resolver: instance=%s user=%s lost create race, re-reading attempt=%d", req.Instance, req.UserID, attempt+1)
	}
}

func (r *Resolver) resolveOnce(ctx context.Context, repos port.Repos, req ResolveRequest) (*domain.Cart, error) {
	if req.UserID == "" {
		return repos.Carts.FirstOrCreateBySession(ctx, req.SessionKey, req.Instance)
	}

	userCart, err := repos.Carts.FindActiveByUser(ctx, req.UserID, req.Instance)
	if err != nil {
		return nil, fmt.Errorf("find user cart: %w", err)
	}
	var sessionCart *domain.Cart
	if req.PreviousSessionKey != "" {
		sessionCart, err = repos.Carts.FindActiveBySession(ctx, req.PreviousSessionKey, req.Instance)
		if err != nil {
			return nil, fmt.Errorf("find session cart: %w", err)
		}
	}

	switch {
	case userCart == nil && sessionCart == nil:
		cart, err := repos.Carts.CreateActive(ctx, domain.UserOwner(req.UserID), req.Instance)
		if err != nil {
			return nil, err
		}
		r.logger.Printf("cart resolver: created cart=%s user=%s instance=%s", cart.ID, req.UserID, req.Instance)
		return cart, nil

	case sessionCart == nil:
		return userCart, nil

	case userCart == nil:
		sessionCart.UserID = &req.UserID
		sessionCart.SessionKey = nil
		if err := repos.Carts.Save(ctx, sessionCart); err != nil {
			return nil, fmt.Errorf("adopt session cart %s: %w", sessionCart.ID, err)
		}
		r.logger.Printf("cart resolver: adopted cart=%s user=%s instance=%s", sessionCart.ID, req.UserID, req.Instance)
		return sessionCart, nil
	}

	moved, err := transferLines(ctx, r.maintainer, repos, sessionCart, userCart)
	if err != nil {
		return nil, fmt.Errorf("merge cart %s into %s: %w", sessionCart.ID, userCart.ID, err)
	}
	if err := repos.Carts.Delete(ctx, sessionCart.ID); err != nil {
		return nil, fmt.Errorf("delete merged cart %s: %w", sessionCart.ID, err)
	}
	r.logger.Printf("cart resolver: merged session_cart=%s into user_cart=%s moved=%d instance=%s", sessionCart.ID, userCart.ID, moved, req.Instance)
	return userCart, nil
}
