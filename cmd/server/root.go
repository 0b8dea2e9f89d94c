package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dogovor/internal/browse"
	"dogovor/internal/catalog"
	"dogovor/internal/config"
	"dogovor/internal/logging"
	"dogovor/internal/reference"
	"dogovor/internal/report"
	"dogovor/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dogovor",
		Short: "Contracts browser and report service",
		Long: `Browsing, reference resolution and analytical reports over the contracts database.

Configuration is layered: defaults, then config.json, then DOGOVOR_* environment
variables (a .env file is read if present), then command-line flags.`,
		Example: `  # Create tables in a local SQLite file and start the HTTP API
  $ dogovor migrate
  $ dogovor serve --port 8080

  # Planned stages by topic, latest first
  $ dogovor report planned --filter "Тема|contains|поставка" --sort "План. дата" --dir desc`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	return root
}

// app — собранные зависимости одной команды
type app struct {
	cfg      config.Config
	log      *zap.Logger
	db       *store.DB
	svc      *browse.Service
	registry *prometheus.Registry
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.log.Sync()
}

// bootstrap: конфиг → логгер → каталог → отчёты → БД → кэш → сервис
func bootstrap(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.FromFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	reports, err := report.LoadDir(cfg.ReportsDir)
	if err != nil {
		return nil, fmt.Errorf("reports: %w", err)
	}
	log.Info("catalog loaded",
		zap.Int("entities", len(cat.Entities())),
		zap.Int("reports", len(reports.List())),
	)

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBURL, store.Options{MaxOpenConns: cfg.MaxOpenConns}, log.Named("store"))
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cat); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cache := reference.NewCache(cat.DependencyMap(), reference.NewMetrics(reg))
	resolver := reference.NewResolver(db, db.Flavor(), cache, log.Named("reference"))

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		svc:      browse.New(cat, db, reports, resolver, log.Named("browse")),
		registry: reg,
	}, nil
}
