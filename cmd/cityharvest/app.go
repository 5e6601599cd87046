package main

import (
	"context"
	"fmt"

	"cityharvest/internal/storage/postgres"
	"cityharvest/pkg/auth"
	"cityharvest/pkg/config"
	"cityharvest/pkg/graph"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/metrics"
	"cityharvest/pkg/ratelimit"
	"cityharvest/pkg/retry"
	"cityharvest/pkg/store"
)

// app holds the collaborators shared by the harvest commands
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   store.Store
	fetcher *graph.Fetcher
	metrics *metrics.Recorder
}

// newApp wires the Graph client, fetcher and store described by cfg
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Graph.AccessToken = token

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	client := graph.NewClient(cfg.Graph,
		graph.WithRetry(retry.FromConfig(cfg.Retry, log)),
		graph.WithLimiter(ratelimit.FromConfig(cfg.RateLimit)),
		graph.WithLogger(log),
		graph.WithMetrics(rec),
	)
	fetcher := graph.NewFetcher(client,
		graph.WithFetcherLogger(log),
		graph.WithFetcherMetrics(rec),
	)

	st, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: st, fetcher: fetcher, metrics: rec}, nil
}

// resolveToken prefers the configured token over the stored one
func resolveToken(cfg *config.Config) (string, error) {
	if cfg.Graph.AccessToken != "" {
		return cfg.Graph.AccessToken, nil
	}
	mgr, err := auth.NewManager("")
	if err != nil {
		return "", fmt.Errorf("failed to open token store: %w", err)
	}
	token, err := mgr.Resolve("", profile)
	if err != nil {
		return "", fmt.Errorf("no access token configured; run 'cityharvest token set' or set %s: %w", auth.EnvAccessToken, err)
	}
	return token, nil
}

// openStore returns the store implementation for the configured driver
func openStore(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (store.Store, error) {
	if cfg.Driver == config.DriverPostgres {
		st, err := postgres.Connect(ctx, cfg.DSN, cfg.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return st, nil
	}

	st, err := store.OpenGorm(cfg, log)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// close releases the store and flushes metrics
func (a *app) close() {
	if a.metrics != nil {
		if err := a.metrics.WriteToTextfile(a.cfg.Metrics.TextfilePath); err != nil {
			a.log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close database")
	}
}
