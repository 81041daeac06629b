package session

import (
	"context"
	"strings"

	"cart-engine/internal/port"
)

// Visitor is the identity of one request. The visitor id is a stable browser
// id that outlives login; the session key is rotated when the user authenticates.
type Visitor struct {
	visitorID  string
	sessionKey string
	userID     string
	slots      Slots
}

var _ port.Identity = (*Visitor)(nil)

func NewVisitor(slots Slots, visitorID, sessionKey, userID string) *Visitor {
	return &Visitor{
		visitorID:  strings.TrimSpace(visitorID),
		sessionKey: strings.TrimSpace(sessionKey),
		userID:     strings.TrimSpace(userID),
		slots:      slots,
	}
}

func (v *Visitor) UserID() (string, bool) {
	return v.userID, v.userID != ""
}

func (v *Visitor) SessionKey() string {
	return v.sessionKey
}

// Remember is a no-op for visitors without a stable id.
func (v *Visitor) Remember(ctx context.Context, instance, sessionKey string) error {
	if v.visitorID == "" || v.slots == nil {
		return nil
	}
	return v.slots.Put(ctx, v.visitorID, instance, sessionKey)
}

func (v *Visitor) Recall(ctx context.Context, instance string) (string, bool, error) {
	if v.visitorID == "" || v.slots == nil {
		return "", false, nil
	}
	return v.slots.Get(ctx, v.visitorID, instance)
}

func (v *Visitor) Forget(ctx context.Context, instance string) error {
	if v.visitorID == "" || v.slots == nil {
		return nil
	}
	return v.slots.Delete(ctx, v.visitorID, instance)
}
