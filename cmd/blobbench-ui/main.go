package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"blobbench/internal/app"
	"blobbench/internal/config"
	"blobbench/internal/dashboard"
	"blobbench/pkg/auth"
)

func Run(ctx context.Context) error {

	configPath := flag.String("config", "blobbench.toml", "path to the TOML configuration file")
	listen := flag.String("listen", "", "HTTP listen address (overrides dashboard.listen)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn or error")

	flag.Parse()

	var opts []config.Option
	if *listen != "" {
		opts = append(opts, config.WithListen(*listen))
	}

	cfg, err := config.Load(*configPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	if err := app.SetupLogging(os.Stdout, level); err != nil {
		return err
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	dcfg := dashboard.Config{
		MaxUploadBytes:    cfg.Dashboard.MaxUploadBytes,
		AllowedExtensions: cfg.Dashboard.AllowedExtensions,
		Driver:            a.Table.Driver(),
	}
	if a.Metrics != nil {
		dcfg.Metrics = a.Metrics.Handler()
	}
	if cfg.Dashboard.Username != "" {
		dcfg.Auth = auth.NewBasicAuthEngine(cfg.Dashboard.Username, cfg.Dashboard.Password)
	}

	server := dashboard.NewServer(a.Bench, dcfg)

	// Uploads are buffered in full, so the body timeout scales with the limit.
	httpServer := &http.Server{
		Addr:              cfg.Dashboard.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting blobbench dashboard", "listen", cfg.Dashboard.Listen, "auth", dcfg.Auth != nil)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("blobbench dashboard failed: %w", err)
		}

		return nil
	})

	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
