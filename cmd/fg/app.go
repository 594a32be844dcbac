package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/flowguard/internal/config"
	"github.com/zulandar/flowguard/internal/db"
	"github.com/zulandar/flowguard/internal/events"
	"github.com/zulandar/flowguard/internal/ledger"
	"github.com/zulandar/flowguard/internal/logging"
	"github.com/zulandar/flowguard/internal/metrics"
	"github.com/zulandar/flowguard/internal/reflection"
	"github.com/zulandar/flowguard/internal/store"
)

// clock is the time source for every command. Tests override it.
var clock = time.Now

// connectDB opens the configured database. Tests override it.
var connectDB = db.Connect

// app bundles the collaborators a command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	store   *store.Store
	events  events.Publisher
	metrics *metrics.Metrics
	ledger  *ledger.Service
	feed    *reflection.Surfacer
}

// openApp loads config, connects and migrates the database and wires the
// ledger service. Callers must Close the result.
func openApp(cmd *cobra.Command, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.NewWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	gormDB, err := connectDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		closeDB(gormDB)
		return nil, err
	}

	var pub events.Publisher = &events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			closeDB(gormDB)
			return nil, err
		}
		pub = natsPub
	}

	m := metrics.New()
	st := store.New(gormDB, cfg.Environment, log)
	a := &app{
		cfg:     cfg,
		log:     log,
		db:      gormDB,
		store:   st,
		events:  pub,
		metrics: m,
		ledger: ledger.NewService(st, ledger.ServiceOpts{
			Events:      pub,
			Metrics:     m,
			Log:         log,
			Environment: cfg.Environment,
		}),
		feed: &reflection.Surfacer{
			Store:       st,
			Events:      pub,
			Metrics:     m,
			Log:         log,
			Environment: cfg.Environment,
			Thresholds:  reflection.ThresholdsFrom(cfg.Reflection),
		},
	}
	return a, nil
}

// Close releases the event publisher, the database handle and flushes logs.
func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		a.log.Warn("close event publisher", zap.Error(err))
	}
	closeDB(a.db)
	a.log.Sync()
}

func closeDB(gormDB *gorm.DB) {
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
