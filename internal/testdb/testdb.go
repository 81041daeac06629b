// Package testdb provides a migrated Postgres database for integration tests.
package testdb

import (
	"context"
	"fmt"
	"os"

	"cart-engine/internal/db"
	"cart-engine/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// DB is a connection pool to a migrated database, backed by a container
// unless TEST_DB_DSN points at an existing server.
type DB struct {
	Pool      *pgxpool.Pool
	container testcontainers.Container
}

// Start connects to TEST_DB_DSN when set and otherwise starts a throwaway
// Postgres container. Migrations are applied in both cases.
func Start(ctx context.Context) (*DB, error) {
	out := &DB{}

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		container, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("carts_test"),
			postgres.WithUsername("carts"),
			postgres.WithPassword("carts"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		out.container = container

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = out.Close(ctx)
			return nil, fmt.Errorf("container dsn: %w", err)
		}
	}

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		_ = out.Close(ctx)
		return nil, fmt.Errorf("connect db: %w", err)
	}
	out.Pool = pool

	if err := migrate.Apply(ctx, pool); err != nil {
		_ = out.Close(ctx)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return out, nil
}

// Reset removes every cart and line.
func (d *DB) Reset(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, `TRUNCATE cart_lines, carts CASCADE`); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

func (d *DB) Close(ctx context.Context) error {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.container != nil {
		return d.container.Terminate(ctx)
	}
	return nil
}
