package line_test

import (
	"context"
	"testing"

	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	cartrepo "cart-engine/internal/repository/cart"
	linerepo "cart-engine/internal/repository/line"
	"cart-engine/internal/testdb"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type lineStoreSuite struct {
	suite.Suite

	db    *testdb.DB
	carts port.CartRepository
	repo  port.LineStore
}

func TestLineStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration suite in short mode")
	}
	defer goleak.VerifyNone(t)

	suite.Run(t, new(lineStoreSuite))
}

func (s *lineStoreSuite) SetupSuite() {
	var err error
	s.db, err = testdb.Start(s.T().Context())
	s.Require().NoError(err)

	s.carts = cartrepo.NewPostgres(s.db.Pool, nil)
	s.repo = linerepo.NewPostgres(s.db.Pool, nil)
}

func (s *lineStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.NoError(s.db.Close(context.Background()))
	}
}

func (s *lineStoreSuite) SetupTest() {
	s.Require().NoError(s.db.Reset(s.T().Context()))
}

func (s *lineStoreSuite) newCart() *domain.Cart {
	c, err := s.carts.CreateActive(s.T().Context(), domain.SessionOwner(gofakeit.UUID()), "default")
	s.Require().NoError(err)
	return c
}

func fakeLine(cartID string) domain.NewLine {
	return domain.NewLine{
		CartID:    cartID,
		ProductID: gofakeit.UUID(),
		Attributes: domain.Attributes{
			"color": gofakeit.Color(),
			"size":  gofakeit.RandomString([]string{"S", "M", "L"}),
		},
		Quantity:  gofakeit.IntRange(1, 10),
		UnitPrice: decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
	}
}

var lineCmpOpts = []cmp.Option{
	cmpopts.IgnoreFields(domain.LineItem{}, "ID", "CreatedAt", "UpdatedAt"),
}

func (s *lineStoreSuite) TestCreateAndFindByKey() {
	t := s.T()
	ctx := t.Context()
	c := s.newCart()
	in := fakeLine(c.ID)

	created, err := s.repo.Create(ctx, in)
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)

	want := domain.LineItem{
		CartID:     c.ID,
		ProductID:  in.ProductID,
		Attributes: in.Attributes,
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
	}
	if diff := cmp.Diff(want, *created, lineCmpOpts...); diff != "" {
		t.Fatalf("created line mismatch (-want +got):\n%s", diff)
	}

	// Same attributes built in a different order.
	reordered := domain.Attributes{}
	reordered["size"] = in.Attributes["size"]
	reordered["color"] = in.Attributes["color"]
	found, err := s.repo.FindByCartAndKey(ctx, c.ID, in.ProductID, reordered)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	other, err := s.repo.FindByCartAndKey(ctx, c.ID, in.ProductID, domain.Attributes{"color": in.Attributes["color"]})
	require.NoError(t, err)
	assert.Nil(t, other)
}

func (s *lineStoreSuite) TestNilAttributesMatchEmpty() {
	t := s.T()
	ctx := t.Context()
	c := s.newCart()

	created, err := s.repo.Create(ctx, domain.NewLine{CartID: c.ID, ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.NotNil(t, created.Attributes)

	found, err := s.repo.FindByCartAndKey(ctx, c.ID, "p1", domain.Attributes{})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	_, err = s.repo.Create(ctx, domain.NewLine{CartID: c.ID, ProductID: "p1", Attributes: domain.Attributes{}, Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
	assert.Error(t, err, "identity key must be unique per cart")
}

func (s *lineStoreSuite) TestListByCartKeepsCreationOrder() {
	t := s.T()
	ctx := t.Context()
	c := s.newCart()

	var want []string
	for range 5 {
		l, err := s.repo.Create(ctx, fakeLine(c.ID))
		require.NoError(t, err)
		want = append(want, l.ID)
	}

	lines, err := s.repo.ListByCart(ctx, c.ID)
	require.NoError(t, err)
	got := make([]string, 0, len(lines))
	for _, l := range lines {
		got = append(got, l.ID)
	}
	assert.Equal(t, want, got)
}

func (s *lineStoreSuite) TestUpdateAndDelete() {
	t := s.T()
	ctx := t.Context()
	c := s.newCart()

	l, err := s.repo.Create(ctx, fakeLine(c.ID))
	require.NoError(t, err)

	require.NoError(t, s.repo.UpdateQuantity(ctx, l.ID, 7))
	require.NoError(t, s.repo.Update(ctx, l.ID, 9, decimal.RequireFromString("1.2345")))

	lines, err := s.repo.ListByCart(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 9, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("1.2345")))

	require.NoError(t, s.repo.Delete(ctx, l.ID))
	assert.ErrorIs(t, s.repo.Delete(ctx, l.ID), domain.ErrNotFound)
	assert.ErrorIs(t, s.repo.UpdateQuantity(ctx, l.ID, 1), domain.ErrNotFound)
}

func (s *lineStoreSuite) TestDeleteByCart() {
	t := s.T()
	ctx := t.Context()
	c := s.newCart()
	other := s.newCart()

	for range 3 {
		_, err := s.repo.Create(ctx, fakeLine(c.ID))
		require.NoError(t, err)
	}
	_, err := s.repo.Create(ctx, fakeLine(other.ID))
	require.NoError(t, err)

	n, err := s.repo.DeleteByCart(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.repo.DeleteByCart(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	left, err := s.repo.ListByCart(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func (s *lineStoreSuite) TestReassignOwner() {
	t := s.T()
	ctx := t.Context()
	src := s.newCart()
	dst := s.newCart()

	l, err := s.repo.Create(ctx, fakeLine(src.ID))
	require.NoError(t, err)

	require.NoError(t, s.repo.ReassignOwner(ctx, l.ID, dst.ID))

	moved, err := s.repo.ListByCart(ctx, dst.ID)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, l.ID, moved[0].ID)

	left, err := s.repo.ListByCart(ctx, src.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, s.repo.ReassignOwner(ctx, gofakeit.UUID(), dst.ID), domain.ErrNotFound)
}
