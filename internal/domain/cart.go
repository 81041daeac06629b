package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInstance is the instance name used when callers do not pick one.
const DefaultInstance = "default"

// Cart is the aggregate root. TotalPrice and ItemCount are derived from the
// cart's lines and are only changed through the aggregate maintainer.
type Cart struct {
	ID          string          `json:"id"`
	UserID      *string         `json:"userId,omitempty"`
	SessionKey  *string         `json:"-"`
	Instance    string          `json:"instance"`
	Status      Status          `json:"status"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	ItemCount   int             `json:"itemCount"`
	PlacedAt    *time.Time      `json:"placedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return c.ItemCount == 0
}

// Owner returns the identity currently owning the cart.
func (c Cart) Owner() Owner {
	var o Owner
	if c.UserID != nil {
		o.UserID = *c.UserID
	}
	if c.SessionKey != nil {
		o.SessionKey = *c.SessionKey
	}
	return o
}

// Owner identifies who a cart belongs to. Exactly one of the fields is set
// for an active cart.
type Owner struct {
	UserID     string
	SessionKey string
}

func UserOwner(userID string) Owner {
	return Owner{UserID: userID}
}

func SessionOwner(sessionKey string) Owner {
	return Owner{SessionKey: sessionKey}
}

// Valid reports whether exactly one owner identity is set.
func (o Owner) Valid() bool {
	return (o.UserID == "") != (o.SessionKey == "")
}

func (o Owner) IsUser() bool {
	return o.UserID != ""
}

func (o Owner) String() string {
	if o.IsUser() {
		return "user:" + o.UserID
	}
	return "session:" + o.SessionKey
}
