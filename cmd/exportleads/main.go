// Package main exports businesses without websites to CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dmaguire/leadharvester/internal/config"
	"github.com/dmaguire/leadharvester/internal/export"
	"github.com/dmaguire/leadharvester/internal/logging"
	"github.com/dmaguire/leadharvester/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	city := flag.String("city", "", "Only export leads from this city")
	output := flag.String("output", "", "Output file path (default: timestamped name in the working directory)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := *output
	if path == "" {
		path = export.Filename(*city, time.Now())
	}

	if err := run(ctx, cfg, *city, path, logger); err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, city, path string, logger *zap.Logger) error {
	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewBusinessStore(pool, logger.Named("store"))
	if err != nil {
		return err
	}

	count, err := export.Leads(ctx, repo, city, path)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println("No leads found; nothing exported.")
		return nil
	}
	fmt.Printf("Exported %d leads to %s\n", count, path)
	return nil
}
