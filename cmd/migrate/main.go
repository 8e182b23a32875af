package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"goseldon/adapters/ledger"
	"goseldon/internal/config"
	"goseldon/internal/migration"
)

// Applies the ledger schema to the configured database
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Ledger.URL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	// Open applies the migrations
	db, err := ledger.Open(context.Background(), cfg.Ledger.Driver, cfg.Ledger.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("ledger schema %s applied (%s)\n", migration.NewRunner().Version(), cfg.Ledger.Driver)
}
