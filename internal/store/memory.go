package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Memory is an in-process Store. Units of work are serialized and operate on
// a private copy of the data that replaces the shared state only on success,
// which gives the same all-or-nothing behaviour as the Postgres store.
type Memory struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		state: &memState{
			carts: map[string]domain.Cart{},
			lines: map[string]memLine{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, r port.Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransactionAborted, err)
	}

	work := m.state.clone()
	if err := fn(ctx, port.Repos{
		Carts: &memCarts{s: work, now: m.now},
		Lines: &memLines{s: work, now: m.now},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransactionAborted, err)
	}

	m.state = work
	return nil
}

type memLine struct {
	item domain.LineItem
	seq  int64
}

type memState struct {
	carts map[string]domain.Cart
	lines map[string]memLine
	seq   int64
}

func (s *memState) clone() *memState {
	out := &memState{
		carts: make(map[string]domain.Cart, len(s.carts)),
		lines: make(map[string]memLine, len(s.lines)),
		seq:   s.seq,
	}
	for id, c := range s.carts {
		out.carts[id] = copyCart(c)
	}
	for id, l := range s.lines {
		out.lines[id] = memLine{item: copyLine(l.item), seq: l.seq}
	}
	return out
}

type memCarts struct {
	s   *memState
	now func() time.Time
}

func (r *memCarts) GetByID(_ context.Context, id string) (*domain.Cart, error) {
	c, ok := r.s.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyCart(c)
	return &out, nil
}

func (r *memCarts) FindActiveByUser(_ context.Context, userID, instance string) (*domain.Cart, error) {
	return r.findActive(domain.UserOwner(userID), instance), nil
}

func (r *memCarts) FindActiveBySession(_ context.Context, sessionKey, instance string) (*domain.Cart, error) {
	return r.findActive(domain.SessionOwner(sessionKey), instance), nil
}

func (r *memCarts) findActive(owner domain.Owner, instance string) *domain.Cart {
	for _, c := range r.s.carts {
		if c.Status == domain.StatusActive && c.Instance == instance && c.Owner() == owner {
			out := copyCart(c)
			return &out
		}
	}
	return nil
}

func (r *memCarts) CreateActive(_ context.Context, owner domain.Owner, instance string) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("memory store: create: owner must be either user or session, got %+v", owner)
	}
	if r.findActive(owner, instance) != nil {
		return nil, fmt.Errorf("memory store: create owner=%s instance=%s: %w", owner, instance, domain.ErrDuplicateActiveCart)
	}
	now := r.now()
	c := domain.Cart{
		ID:         uuid.NewString(),
		Instance:   instance,
		Status:     domain.StatusActive,
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if owner.IsUser() {
		c.UserID = lo.ToPtr(owner.UserID)
	} else {
		c.SessionKey = lo.ToPtr(owner.SessionKey)
	}
	r.s.carts[c.ID] = c
	out := copyCart(c)
	return &out, nil
}

func (r *memCarts) FirstOrCreateBySession(ctx context.Context, sessionKey, instance string) (*domain.Cart, error) {
	if existing := r.findActive(domain.SessionOwner(sessionKey), instance); existing != nil {
		return existing, nil
	}
	return r.CreateActive(ctx, domain.SessionOwner(sessionKey), instance)
}

func (r *memCarts) Save(_ context.Context, cart *domain.Cart) error {
	if _, ok := r.s.carts[cart.ID]; !ok {
		return domain.ErrNotFound
	}
	if cart.Status == domain.StatusActive {
		if other := r.findActive(cart.Owner(), cart.Instance); other != nil && other.ID != cart.ID {
			return fmt.Errorf("memory store: save id=%s: %w", cart.ID, domain.ErrDuplicateActiveCart)
		}
	}
	cart.UpdatedAt = r.now()
	r.s.carts[cart.ID] = copyCart(*cart)
	return nil
}

func (r *memCarts) Delete(_ context.Context, id string) error {
	if _, ok := r.s.carts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.carts, id)
	maps.DeleteFunc(r.s.lines, func(_ string, l memLine) bool {
		return l.item.CartID == id
	})
	return nil
}

func (r *memCarts) ExpireStale(_ context.Context, untouchedSince time.Time) (int64, error) {
	var n int64
	now := r.now()
	for id, c := range r.s.carts {
		if c.Status == domain.StatusActive && c.UpdatedAt.Before(untouchedSince) {
			c.Status = domain.StatusExpired
			c.UpdatedAt = now
			r.s.carts[id] = c
			n++
		}
	}
	return n, nil
}

func (r *memCarts) DeleteExpired(ctx context.Context, untouchedSince time.Time) (int64, error) {
	var n int64
	for id, c := range r.s.carts {
		if c.Status == domain.StatusExpired && c.UpdatedAt.Before(untouchedSince) {
			if err := r.Delete(ctx, id); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

type memLines struct {
	s   *memState
	now func() time.Time
}

func (r *memLines) FindByCartAndKey(_ context.Context, cartID, productID string, attrs domain.Attributes) (*domain.LineItem, error) {
	key := domain.KeyOf(productID, attrs)
	for _, l := range r.ordered(cartID) {
		if l.Key() == key {
			return &l, nil
		}
	}
	return nil, nil
}

func (r *memLines) ListByCart(_ context.Context, cartID string) ([]domain.LineItem, error) {
	return r.ordered(cartID), nil
}

func (r *memLines) ordered(cartID string) []domain.LineItem {
	owned := lo.Filter(lo.Values(r.s.lines), func(l memLine, _ int) bool {
		return l.item.CartID == cartID
	})
	slices.SortFunc(owned, func(a, b memLine) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return lo.Map(owned, func(l memLine, _ int) domain.LineItem {
		return copyLine(l.item)
	})
}

func (r *memLines) Create(ctx context.Context, in domain.NewLine) (*domain.LineItem, error) {
	if _, ok := r.s.carts[in.CartID]; !ok {
		return nil, fmt.Errorf("memory store: create line: cart %s: %w", in.CartID, domain.ErrNotFound)
	}
	if existing, _ := r.FindByCartAndKey(ctx, in.CartID, in.ProductID, in.Attributes); existing != nil {
		return nil, fmt.Errorf("memory store: create line: cart %s already holds product %s with these attributes", in.CartID, in.ProductID)
	}
	now := r.now()
	r.s.seq++
	line := domain.LineItem{
		ID:         uuid.NewString(),
		CartID:     in.CartID,
		ProductID:  in.ProductID,
		Attributes: in.Attributes.Clone(),
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.s.lines[line.ID] = memLine{item: line, seq: r.s.seq}
	out := copyLine(line)
	return &out, nil
}

func (r *memLines) UpdateQuantity(_ context.Context, lineID string, quantity int) error {
	return r.mutate(lineID, func(l *domain.LineItem) error {
		l.Quantity = quantity
		return nil
	})
}

func (r *memLines) Update(_ context.Context, lineID string, quantity int, unitPrice decimal.Decimal) error {
	return r.mutate(lineID, func(l *domain.LineItem) error {
		l.Quantity = quantity
		l.UnitPrice = unitPrice
		return nil
	})
}

func (r *memLines) Delete(_ context.Context, lineID string) error {
	if _, ok := r.s.lines[lineID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.lines, lineID)
	return nil
}

func (r *memLines) DeleteByCart(_ context.Context, cartID string) (int64, error) {
	before := len(r.s.lines)
	maps.DeleteFunc(r.s.lines, func(_ string, l memLine) bool {
		return l.item.CartID == cartID
	})
	return int64(before - len(r.s.lines)), nil
}

func (r *memLines) ReassignOwner(ctx context.Context, lineID, newCartID string) error {
	if _, ok := r.s.carts[newCartID]; !ok {
		return fmt.Errorf("memory store: reassign line %s: cart %s: %w", lineID, newCartID, domain.ErrNotFound)
	}
	return r.mutate(lineID, func(l *domain.LineItem) error {
		if l.CartID == newCartID {
			return nil
		}
		if existing, _ := r.FindByCartAndKey(ctx, newCartID, l.ProductID, l.Attributes); existing != nil {
			return fmt.Errorf("memory store: reassign line %s: cart %s already holds product %s with these attributes", lineID, newCartID, l.ProductID)
		}
		l.CartID = newCartID
		return nil
	})
}

func (r *memLines) mutate(lineID string, fn func(l *domain.LineItem) error) error {
	stored, ok := r.s.lines[lineID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := fn(&stored.item); err != nil {
		return err
	}
	stored.item.UpdatedAt = r.now()
	r.s.lines[lineID] = stored
	return nil
}

func copyCart(c domain.Cart) domain.Cart {
	c.UserID = clonePtr(c.UserID)
	c.SessionKey = clonePtr(c.SessionKey)
	c.PlacedAt = clonePtr(c.PlacedAt)
	c.CompletedAt = clonePtr(c.CompletedAt)
	return c
}

func copyLine(l domain.LineItem) domain.LineItem {
	l.Attributes = l.Attributes.Clone()
	return l
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
