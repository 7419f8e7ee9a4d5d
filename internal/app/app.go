// Package app wires configuration, logging and both stores into a
// Benchmarker for the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"

	"blobbench/internal/bench"
	"blobbench/internal/config"
	"blobbench/internal/database"
	"blobbench/internal/metrics"
	"blobbench/internal/storage"
	objectstore "blobbench/pkg/storage"
)

// SetupLogging installs charmbracelet/log as the default slog handler.
func SetupLogging(w io.Writer, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: log level %q", config.ErrInvalid, level)
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))
	return nil
}

// App holds the opened stores and the Benchmarker built on them.
type App struct {
	Config  *config.Config
	Objects objectstore.ObjectStore
	Table   *database.BlobTable
	Metrics *metrics.Metrics
	Bench   *bench.Benchmarker
}

// Open connects to both stores described by cfg.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	objects, err := storage.NewFromConfig(ctx, cfg.ObjectStore, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}

	table, err := database.Open(ctx, cfg.Relational, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("open relational store: %w", err)
	}

	opts := []bench.Option{}
	var m *metrics.Metrics
	if cfg.Dashboard.Metrics {
		m = metrics.New()
		opts = append(opts, bench.WithObserver(m))
	}

	slog.Info("Stores ready",
		"object_driver", cfg.ObjectStore.Driver,
		"bucket", cfg.ObjectStore.Bucket,
		"relational_driver", cfg.Relational.Driver,
		"table", cfg.Relational.Table,
	)

	return &App{
		Config:  cfg,
		Objects: objects,
		Table:   table,
		Metrics: m,
		Bench:   bench.New(objects, table, opts...),
	}, nil
}

func (a *App) Close() error {
	return a.Table.Close()
}
