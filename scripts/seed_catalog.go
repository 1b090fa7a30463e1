package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/database"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog yaml")
		dbPath      = flag.String("db", "./data/ledger.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var catalog config.CatalogConfig
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Barbers) == 0 && len(catalog.Services) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	if err = config.ValidateBarbers(catalog.Barbers); err != nil {
		return err
	}
	if err = config.ValidateServices(catalog.Services); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err = db.SeedCatalog(ctx, catalog.Barbers, catalog.Services); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	fmt.Printf("done: barbers=%d services=%d\n", len(catalog.Barbers), len(catalog.Services))
	return nil
}
