package port

import "context"

// Identity describes the caller of one request.
type Identity interface {
	// UserID returns the authenticated user, if any.
	UserID() (string, bool)
	// SessionKey is the current anonymous session identifier. Always set.
	SessionKey() string

	// Remember, Recall and Forget manage a single-use slot per instance that
	// survives the session id rotation performed at login.
	Remember(ctx context.Context, instance, sessionKey string) error
	Recall(ctx context.Context, instance string) (string, bool, error)
	Forget(ctx context.Context, instance string) error
}
