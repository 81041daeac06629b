package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cart-engine/internal/config"
	"cart-engine/internal/httpserver"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/session"
	"cart-engine/internal/store"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	st, dbpool, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	// A nil *pgxpool.Pool must not leak into the Pinger interface.
	var pinger httpserver.Pinger
	if dbpool != nil {
		defer dbpool.Close()
		pinger = dbpool
	}

	var slots session.Slots
	if cfg.RedisAddr != "" {
		client, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("connect to redis: %v", err)
		}
		defer client.Close()
		slots = session.NewRedisSlots(client, cfg.SlotTTL)
	} else {
		logger.Printf("REDIS_ADDR not set, keeping session slots in memory")
		slots = session.NewMemorySlots(cfg.SlotTTL)
	}

	cartService := cartsvc.New(st,
		cartsvc.WithLogger(logger),
		cartsvc.WithDefaultInstance(cfg.DefaultInstance),
	)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, pinger, httpserver.Deps{
		Carts:          cartService,
		Slots:          slots,
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
