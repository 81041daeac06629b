package cart

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
)

// Service is the entry point callers use to obtain their current cart.
type Service struct {
	store           port.Store
	resolver        *Resolver
	maintainer      *Maintainer
	defaultInstance string
	now             func() time.Time
	logger          *log.Logger
}

type Option func(*Service)

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithDefaultInstance(name string) Option {
	return func(s *Service) {
		if strings.TrimSpace(name) != "" {
			s.defaultInstance = strings.TrimSpace(name)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store port.Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		defaultInstance: domain.DefaultInstance,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.maintainer = NewMaintainer(s.logger)
	s.resolver = NewResolver(store, s.maintainer, s.logger)
	return s
}

// Scope caches resolved carts for one caller-initiated operation, typically
// one HTTP request. It must not be shared between concurrent operations.
type Scope struct {
	identity port.Identity
	carts    map[string]*Cart
}

func NewScope(identity port.Identity) *Scope {
	return &Scope{identity: identity, carts: map[string]*Cart{}}
}

// Current resolves the authoritative cart for instance on behalf of the
// scope's identity. Guests get their session cart; authenticated users get
// their own cart, merged with the guest cart remembered from before login.
func (s *Service) Current(ctx context.Context, scope *Scope, instance string) (*Cart, error) {
	instance = s.instanceName(instance)
	if c, ok := scope.carts[instance]; ok {
		return c, nil
	}

	id := scope.identity
	req := ResolveRequest{Instance: instance, SessionKey: id.SessionKey()}
	userID, authenticated := id.UserID()
	if authenticated {
		req.UserID = userID
		prev, ok, err := id.Recall(ctx, instance)
		if err != nil {
			return nil, fmt.Errorf("cart service: recall session key instance=%s: %w", instance, err)
		}
		if ok {
			req.PreviousSessionKey = prev
		}
	}

	state, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cart service: resolve instance=%s: %w", instance, err)
	}

	if authenticated {
		if err := id.Forget(ctx, instance); err != nil {
			s.logger.Printf("cart service: forget session key instance=%s error=%v", instance, err)
		}
	} else if err := id.Remember(ctx, instance, req.SessionKey); err != nil {
		s.logger.Printf("cart service: remember session key instance=%s error=%v", instance, err)
	}

	c := &Cart{svc: s, scope: scope, state: *state}
	scope.carts[instance] = c
	return c, nil
}

// Get loads a cart by id regardless of owner or status.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	var state *domain.Cart
	err := s.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		var err error
		state, err = r.Carts.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Cart{svc: s, state: *state}, nil
}

// MoveItems consolidates the lines of one cart into another using the same
// collision policy as the login merge. It returns the number of lines moved.
func (s *Service) MoveItems(ctx context.Context, fromID, toID string) (int, error) {
	from, err := s.Get(ctx, fromID)
	if err != nil {
		return 0, fmt.Errorf("cart service: load source cart %s: %w", fromID, err)
	}
	to, err := s.Get(ctx, toID)
	if err != nil {
		return 0, fmt.Errorf("cart service: load target cart %s: %w", toID, err)
	}
	return from.MoveItemsTo(ctx, to)
}

// ExpireStale moves active carts untouched for longer than ttl to expired.
func (s *Service) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	var n int64
	err := s.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		var err error
		n, err = r.Carts.ExpireStale(ctx, s.now().Add(-ttl))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cart service: expire stale: %w", err)
	}
	s.logger.Printf("cart service: expired %d carts untouched for %s", n, ttl)
	return n, nil
}

// PurgeExpired deletes expired carts, and their lines, untouched for longer than retention.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	var n int64
	err := s.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		var err error
		n, err = r.Carts.DeleteExpired(ctx, s.now().Add(-retention))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cart service: purge expired: %w", err)
	}
	s.logger.Printf("cart service: purged %d expired carts older than %s", n, retention)
	return n, nil
}

func (s *Service) instanceName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultInstance
}
