package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/ordercore-lab/order-core/internal/core/config"
	"github.com/ordercore-lab/order-core/internal/core/currency"
	"github.com/ordercore-lab/order-core/internal/core/storage/postgres"
	"github.com/ordercore-lab/order-core/internal/ingestion"
	"github.com/ordercore-lab/order-core/internal/migrations"
	"github.com/ordercore-lab/order-core/internal/projection"
	"github.com/ordercore-lab/order-core/internal/server"
)

func main() {
	configPath := flag.String("config", "ordercore.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Currency Rules
	currencyTable := currency.NewTable()
	if cfg.Currency.RulesPath != "" {
		currencyTable, err = currency.LoadTable(cfg.Currency.RulesPath)
		if err != nil {
			slog.Error("Failed to load currency rules", "path", cfg.Currency.RulesPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded currency rules", "path", cfg.Currency.RulesPath)
	}

	// 4. Initialize Ingestion (event normalization pipeline)
	ingestionSvc := ingestion.NewService(dbAdapter, cfg.Server.MaxBodySizeMB)

	// 5. Initialize Projection (query API)
	projectionSvc := projection.NewService(dbAdapter, currencyTable)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
