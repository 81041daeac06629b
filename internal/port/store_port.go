package port

import "context"

// Repos are the repositories bound to one transaction.
type Repos struct {
	Carts CartRepository
	Lines LineStore
}

// Store runs units of work. Everything fn writes through the given Repos is
// committed together or not at all; a returned error rolls the unit back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
