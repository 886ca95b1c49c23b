// cmd/backfill/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/vaarahi/storefront/internal/app"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/domain/cartsync"
	"github.com/vaarahi/storefront/internal/pkg/logger"
)

// Reconciles the legacy and primary cart of every stored session once.
func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "maximum run time")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Storage.Driver == "memory" {
		log.Fatal("Backfill needs a persistent STORAGE_DRIVER (redis or postgres)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	storage, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage.Driver, err)
	}
	defer storage.Close()

	log.Println("🔄 Reconciling stored carts...")
	report, err := cartsync.New(storage.KV, storage.Keys, logger.New(cfg.Logging)).Backfill(ctx)
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if len(report.Failed) > 0 {
		cancel()
		storage.Close()
		log.Fatalf("⚠️ %d sessions could not be reconciled", len(report.Failed))
	}
	log.Printf("✅ Backfill complete: %d scanned, %d changed", report.Scanned, report.Changed)
}
