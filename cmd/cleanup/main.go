package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cart-engine/internal/config"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/store"
)

// cleanup expires abandoned active carts and purges old expired ones. It is
// meant to run from cron.
func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[cleanup] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, pool, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	svc := cartsvc.New(st, cartsvc.WithLogger(logger))
	if _, err := svc.ExpireStale(ctx, cfg.CartTTL); err != nil {
		logger.Fatalf("expire stale carts: %v", err)
	}
	if _, err := svc.PurgeExpired(ctx, cfg.ExpiredRetention); err != nil {
		logger.Fatalf("purge expired carts: %v", err)
	}
}
