package main

import (
	"context"
	"log"
	"os"

	"cart-engine/internal/config"
	"cart-engine/internal/seed"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/store"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	st, pool, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	n, err := seed.Apply(ctx, cartsvc.New(st, cartsvc.WithLogger(logger)))
	if err != nil {
		logger.Fatalf("seed apply: %v", err)
	}

	logger.Printf("seed applied, filled %d carts", n)
}
