package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKeyOf_IgnoresAttributeOrder(t *testing.T) {
	a := Attributes{"size": "M", "color": "red"}
	b := Attributes{"color": "red", "size": "M"}

	assert.Equal(t, KeyOf("p1", a), KeyOf("p1", b))
	assert.True(t, a.Equal(b))
}

func TestKeyOf_DistinguishesValues(t *testing.T) {
	tests := []struct {
		name string
		a, b Attributes
		pa   string
		pb   string
	}{
		{name: "different value", pa: "p1", pb: "p1", a: Attributes{"size": "M"}, b: Attributes{"size": "L"}},
		{name: "no coercion", pa: "p1", pb: "p1", a: Attributes{"qty": "1"}, b: Attributes{"qty": "1.0"}},
		{name: "extra key", pa: "p1", pb: "p1", a: Attributes{"size": "M"}, b: Attributes{"size": "M", "color": "red"}},
		{name: "different product", pa: "p1", pb: "p2", a: nil, b: nil},
		{name: "separator smuggling", pa: "p1", pb: "p1", a: Attributes{"a": "b1:c"}, b: Attributes{"a": "b", "c": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, KeyOf(tt.pa, tt.a), KeyOf(tt.pb, tt.b))
		})
	}
}

func TestKeyOf_NilEqualsEmpty(t *testing.T) {
	assert.Equal(t, KeyOf("p1", nil), KeyOf("p1", Attributes{}))
	assert.True(t, Attributes(nil).Equal(Attributes{}))
}

func TestLineItem_Price(t *testing.T) {
	line := LineItem{Quantity: 3, UnitPrice: decimal.RequireFromString("7.25")}
	assert.True(t, line.Price().Equal(decimal.RequireFromString("21.75")), "got %s", line.Price())
}

func TestStatus_CanTransition(t *testing.T) {
	assert.True(t, StatusActive.CanTransition(StatusPending))
	assert.True(t, StatusActive.CanTransition(StatusExpired))
	assert.True(t, StatusPending.CanTransition(StatusComplete))

	assert.False(t, StatusActive.CanTransition(StatusComplete))
	assert.False(t, StatusExpired.CanTransition(StatusActive))
	assert.False(t, StatusComplete.CanTransition(StatusPending))
	assert.False(t, StatusPending.CanTransition(StatusExpired))
}

func TestOwner_Valid(t *testing.T) {
	assert.True(t, UserOwner("u1").Valid())
	assert.True(t, SessionOwner("s1").Valid())
	assert.False(t, Owner{}.Valid())
	assert.False(t, Owner{UserID: "u1", SessionKey: "s1"}.Valid())
}
