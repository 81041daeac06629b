package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/session"
	"cart-engine/internal/store"
	"cart-engine/internal/testdb"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type postgresStoreSuite struct {
	suite.Suite

	db    *testdb.DB
	store *store.Postgres
	svc   *cartsvc.Service
	slots *session.MemorySlots
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration suite in short mode")
	}
	defer goleak.VerifyNone(t)

	suite.Run(t, new(postgresStoreSuite))
}

func (s *postgresStoreSuite) SetupSuite() {
	var err error
	s.db, err = testdb.Start(s.T().Context())
	s.Require().NoError(err)

	s.store = store.NewPostgres(s.db.Pool, 5*time.Second, nil)
	s.svc = cartsvc.New(s.store)
	s.slots = session.NewMemorySlots(time.Hour)
}

func (s *postgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.NoError(s.db.Close(context.Background()))
	}
}

func (s *postgresStoreSuite) SetupTest() {
	s.Require().NoError(s.db.Reset(s.T().Context()))
}

func (s *postgresStoreSuite) current(visitorID, sessionKey, userID string) *cartsvc.Cart {
	v := session.NewVisitor(s.slots, visitorID, sessionKey, userID)
	c, err := s.svc.Current(s.T().Context(), cartsvc.NewScope(v), "default")
	s.Require().NoError(err)
	return c
}

func (s *postgresStoreSuite) TestRollbackOnError() {
	t := s.T()
	ctx := t.Context()
	boom := errors.New("boom")

	var cartID string
	err := s.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		c, err := r.Carts.CreateActive(ctx, domain.SessionOwner(gofakeit.UUID()), "default")
		if err != nil {
			return err
		}
		cartID = c.ID
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		_, err := r.Carts.GetByID(ctx, cartID)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func (s *postgresStoreSuite) TestLockTimeoutAborts() {
	t := s.T()
	ctx := t.Context()

	c := s.current(gofakeit.UUID(), gofakeit.UUID(), "")

	holder, err := s.db.Pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(context.Background()) }()
	_, err = holder.Exec(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, c.ID())
	require.NoError(t, err)

	short := store.NewPostgres(s.db.Pool, 200*time.Millisecond, nil)
	err = short.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		_, err := r.Carts.GetByID(ctx, c.ID())
		return err
	})
	assert.ErrorIs(t, err, domain.ErrTransactionAborted)
}

func (s *postgresStoreSuite) TestGuestFlowAndMerge() {
	t := s.T()
	ctx := t.Context()
	visitor := gofakeit.UUID()
	userID := gofakeit.UUID()

	userCart := s.current(gofakeit.UUID(), gofakeit.UUID(), userID)
	_, err := userCart.AddItem(ctx, "p1", domain.Attributes{"size": "M"}, 1, decimal.NewFromInt(10))
	require.NoError(t, err)

	guestCart := s.current(visitor, gofakeit.UUID(), "")
	_, err = guestCart.AddItem(ctx, "p1", domain.Attributes{"size": "M"}, 5, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = guestCart.AddItem(ctx, "p2", nil, 2, decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	_, err = guestCart.AddItem(ctx, "p2", nil, 1, decimal.RequireFromString("99"))
	require.NoError(t, err)

	merged := s.current(visitor, gofakeit.UUID(), userID)
	assert.Equal(t, userCart.ID(), merged.ID())

	snap := merged.Snapshot()
	assert.Equal(t, 4, snap.ItemCount)
	assert.True(t, snap.TotalPrice.Equal(decimal.RequireFromString("17.50")), "total %s", snap.TotalPrice)

	_, err = s.svc.Get(ctx, guestCart.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := merged.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "p2", items[1].ProductID)
	assert.Equal(t, 3, items[1].Quantity)
}

type failingSecondReassign struct {
	port.Store
	mu    sync.Mutex
	calls int
}

var errInjected = errors.New("injected failure")

func (f *failingSecondReassign) InTx(ctx context.Context, fn func(ctx context.Context, r port.Repos) error) error {
	return f.Store.InTx(ctx, func(ctx context.Context, r port.Repos) error {
		r.Lines = failingLines{LineStore: r.Lines, f: f}
		return fn(ctx, r)
	})
}

type failingLines struct {
	port.LineStore
	f *failingSecondReassign
}

func (l failingLines) ReassignOwner(ctx context.Context, lineID, cartID string) error {
	l.f.mu.Lock()
	l.f.calls++
	n := l.f.calls
	l.f.mu.Unlock()
	if n == 2 {
		return errInjected
	}
	return l.LineStore.ReassignOwner(ctx, lineID, cartID)
}

func (s *postgresStoreSuite) TestFailedMergeCommitsNothing() {
	t := s.T()
	ctx := t.Context()
	visitor := gofakeit.UUID()
	userID := gofakeit.UUID()

	userCart := s.current(gofakeit.UUID(), gofakeit.UUID(), userID)
	_, err := userCart.AddItem(ctx, "p1", nil, 1, decimal.NewFromInt(10))
	require.NoError(t, err)
	guestCart := s.current(visitor, gofakeit.UUID(), "")
	_, err = guestCart.AddItem(ctx, "p2", nil, 1, decimal.NewFromInt(3))
	require.NoError(t, err)
	_, err = guestCart.AddItem(ctx, "p3", nil, 1, decimal.NewFromInt(4))
	require.NoError(t, err)

	faulty := cartsvc.New(&failingSecondReassign{Store: s.store})
	_, err = faulty.Current(ctx, cartsvc.NewScope(session.NewVisitor(s.slots, visitor, gofakeit.UUID(), userID)), "default")
	require.ErrorIs(t, err, errInjected)

	for _, tc := range []struct {
		cartID   string
		products []string
		total    string
	}{
		{cartID: userCart.ID(), products: []string{"p1"}, total: "10"},
		{cartID: guestCart.ID(), products: []string{"p2", "p3"}, total: "7"},
	} {
		c, err := s.svc.Get(ctx, tc.cartID)
		require.NoError(t, err)
		assert.True(t, c.Snapshot().TotalPrice.Equal(decimal.RequireFromString(tc.total)), "cart %s total %s", tc.cartID, c.Snapshot().TotalPrice)

		items, err := c.Items(ctx)
		require.NoError(t, err)
		got := make([]string, 0, len(items))
		for _, l := range items {
			got = append(got, l.ProductID)
		}
		assert.Equal(t, tc.products, got)
	}
}

func (s *postgresStoreSuite) TestConcurrentFirstAccessConverges() {
	t := s.T()
	ctx := t.Context()
	sessionKey := gofakeit.UUID()
	userID := gofakeit.UUID()

	const workers = 8
	guestIDs := make([]string, workers)
	userIDs := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			v := session.NewVisitor(s.slots, "", sessionKey, "")
			c, err := s.svc.Current(ctx, cartsvc.NewScope(v), "default")
			if assert.NoError(t, err) {
				guestIDs[i] = c.ID()
			}
		}()
		go func() {
			defer wg.Done()
			v := session.NewVisitor(s.slots, "", gofakeit.UUID(), userID)
			c, err := s.svc.Current(ctx, cartsvc.NewScope(v), "default")
			if assert.NoError(t, err) {
				userIDs[i] = c.ID()
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		assert.Equal(t, guestIDs[0], guestIDs[i])
		assert.Equal(t, userIDs[0], userIDs[i])
	}

	var active int
	require.NoError(t, s.db.Pool.QueryRow(ctx, `SELECT count(*) FROM carts WHERE status = 'active'`).Scan(&active))
	assert.Equal(t, 2, active)
}

func (s *postgresStoreSuite) TestConcurrentAddsKeepAggregates() {
	t := s.T()
	ctx := t.Context()
	sessionKey := gofakeit.UUID()
	c := s.current("", sessionKey, "")

	const workers = 10
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each goroutine works through its own handle, as concurrent requests would.
			h, err := s.svc.Get(ctx, c.ID())
			if !assert.NoError(t, err) {
				return
			}
			_, err = h.AddItem(ctx, "p1", nil, 1, decimal.RequireFromString("1.25"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, c.Refresh(ctx))
	snap := c.Snapshot()
	assert.Equal(t, workers, snap.ItemCount)
	assert.True(t, snap.TotalPrice.Equal(decimal.RequireFromString("12.5")), "total %s", snap.TotalPrice)
}

// requireAggregatesMatchLines re-reads the cart and its lines from Postgres.
func (s *postgresStoreSuite) requireAggregatesMatchLines(cartID string) domain.Cart {
	t := s.T()
	var (
		cart  *domain.Cart
		lines []domain.LineItem
	)
	require.NoError(t, s.store.InTx(t.Context(), func(ctx context.Context, r port.Repos) error {
		var err error
		if cart, err = r.Carts.GetByID(ctx, cartID); err != nil {
			return err
		}
		lines, err = r.Lines.ListByCart(ctx, cartID)
		return err
	}))
	total, count := cartsvc.Sum(lines)
	require.True(t, cart.TotalPrice.Equal(total), "cart total %s, lines sum to %s", cart.TotalPrice, total)
	require.Equal(t, count, cart.ItemCount)
	return *cart
}

func (s *postgresStoreSuite) TestUpdateItemStoresExactPrices() {
	t := s.T()
	ctx := t.Context()

	c := s.current(gofakeit.UUID(), gofakeit.UUID(), "")
	line, err := c.AddItem(ctx, "p1", nil, 1, decimal.NewFromInt(1))
	require.NoError(t, err)

	qty := 1000
	unit := decimal.RequireFromString("0.00005")
	_, err = c.UpdateItem(ctx, cartsvc.ByID(line.ID), cartsvc.LineValues{Quantity: &qty, UnitPrice: &unit})
	require.NoError(t, err)

	stored := s.requireAggregatesMatchLines(c.ID())
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("0.05")), "total %s", stored.TotalPrice)
	assert.Equal(t, 1000, stored.ItemCount)

	items, err := c.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].UnitPrice.Equal(unit), "unit price %s", items[0].UnitPrice)
}

func (s *postgresStoreSuite) TestMoveItemToOtherInstance() {
	t := s.T()
	ctx := t.Context()
	userID := gofakeit.UUID()

	cart := s.current("", "", userID)
	v := session.NewVisitor(s.slots, "", "", userID)
	wishlist, err := s.svc.Current(ctx, cartsvc.NewScope(v), "wishlist")
	require.NoError(t, err)

	_, err = cart.AddItem(ctx, "p1", domain.Attributes{"size": "M"}, 2, decimal.RequireFromString("4.5"))
	require.NoError(t, err)
	_, err = cart.AddItem(ctx, "p2", nil, 1, decimal.RequireFromString("3"))
	require.NoError(t, err)
	_, err = wishlist.AddItem(ctx, "p2", nil, 5, decimal.RequireFromString("3"))
	require.NoError(t, err)

	moved, err := cart.MoveItemTo(ctx, cartsvc.ByProduct("p1"), wishlist)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = cart.MoveItemTo(ctx, cartsvc.ByProduct("p2"), wishlist)
	require.NoError(t, err)
	assert.False(t, moved, "p2 already exists on the wishlist")

	src := s.requireAggregatesMatchLines(cart.ID())
	dst := s.requireAggregatesMatchLines(wishlist.ID())
	assert.Equal(t, 1, src.ItemCount)
	assert.Equal(t, 7, dst.ItemCount)
	assert.True(t, dst.TotalPrice.Equal(decimal.RequireFromString("24")), "wishlist total %s", dst.TotalPrice)
	assert.True(t, wishlist.Snapshot().TotalPrice.Equal(dst.TotalPrice))
}
