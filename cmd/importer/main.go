package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cart-engine/internal/config"
	"cart-engine/internal/importer"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/store"
)

func main() {
	var (
		filePath string
		instance string
	)
	flag.StringVar(&filePath, "file", "", "Path to cart lines CSV export")
	flag.StringVar(&instance, "instance", "", "Instance for rows without one (defaults to DEFAULT_INSTANCE)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	if instance == "" {
		instance = cfg.DefaultInstance
	}
	logger := log.New(os.Stdout, "[importer] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	ctx := context.Background()

	st, pool, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatalf("open file: %v", err)
	}
	defer f.Close()

	svc := cartsvc.New(st, cartsvc.WithLogger(logger), cartsvc.WithDefaultInstance(cfg.DefaultInstance))
	imp := importer.NewCSVImporter(f, importer.ServiceAdder{Carts: svc}, instance)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatalf("import failed after %d lines: %v", count, err)
	}

	fmt.Printf("Imported %d cart lines in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
