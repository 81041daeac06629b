package store

import (
	"context"
	"fmt"
	"log"

	"cart-engine/internal/config"
	"cart-engine/internal/db"
	"cart-engine/internal/port"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Open builds the store selected by cfg.StoreDriver. The returned pool is nil
// for the memory driver; callers close it when set.
func Open(ctx context.Context, cfg config.Config, logger *log.Logger) (port.Store, *pgxpool.Pool, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Printf("store: driver=memory, carts are lost on restart")
		return NewMemory(), nil, nil
	case config.StoreDriverPostgres, "":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to db: %w", err)
		}
		return NewPostgres(pool, cfg.TxTimeout, logger), pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
