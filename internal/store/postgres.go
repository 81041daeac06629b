package store

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"cart-engine/internal/db"
	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	cartrepo "cart-engine/internal/repository/cart"
	linerepo "cart-engine/internal/repository/line"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres runs units of work as pgx transactions.
type Postgres struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
	logger    *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, txTimeout time.Duration, logger *log.Logger) *Postgres {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Postgres{pool: pool, txTimeout: txTimeout, logger: logger}
}

func (s *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, r port.Repos) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	err := db.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, port.Repos{
			Carts: cartrepo.NewPostgresWithTx(tx, s.logger),
			Lines: linerepo.NewPostgresWithTx(tx, s.logger),
		})
	})
	if err != nil && db.IsAborted(err) {
		s.logger.Printf("store: transaction aborted error=%v", err)
		return fmt.Errorf("%w: %w", domain.ErrTransactionAborted, err)
	}
	return err
}
