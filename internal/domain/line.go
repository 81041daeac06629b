package domain

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItem is a single purchasable configuration inside a cart.
type LineItem struct {
	ID         string          `json:"id"`
	CartID     string          `json:"cartId"`
	ProductID  string          `json:"productId"`
	Attributes Attributes      `json:"attributes,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Price is quantity times unit price.
func (l LineItem) Price() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Key returns the identity key used for deduplication.
func (l LineItem) Key() LineKey {
	return KeyOf(l.ProductID, l.Attributes)
}

// NewLine carries the fields needed to create a line item.
type NewLine struct {
	CartID     string
	ProductID  string
	Attributes Attributes
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Attributes are variant options such as size or colour. Comparison ignores
// key order and compares values exactly.
type Attributes map[string]string

// Equal reports whether both sets hold the same keys with identical values.
// A nil set equals an empty one.
func (a Attributes) Equal(other Attributes) bool {
	return maps.Equal(a, other)
}

func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// canonical renders the set in sorted key order with length prefixes so no
// two distinct sets share a rendering.
func (a Attributes) canonical() string {
	keys := lo.Keys(a)
	slices.Sort(keys)
	var b strings.Builder
	for _, k := range keys {
		for _, field := range [2]string{k, a[k]} {
			b.WriteString(strconv.Itoa(len(field)))
			b.WriteByte(':')
			b.WriteString(field)
		}
	}
	return b.String()
}

// LineKey is the comparable form of (productId, attributes).
type LineKey struct {
	ProductID  string
	Attributes string
}

func KeyOf(productID string, attrs Attributes) LineKey {
	return LineKey{ProductID: productID, Attributes: attrs.canonical()}
}
