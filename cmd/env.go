package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/extract"
	"github.com/sells-group/price-sentry/internal/fetch"
	"github.com/sells-group/price-sentry/internal/health"
	"github.com/sells-group/price-sentry/internal/llm"
	"github.com/sells-group/price-sentry/internal/money"
	"github.com/sells-group/price-sentry/internal/override"
	"github.com/sells-group/price-sentry/internal/pipeline"
	"github.com/sells-group/price-sentry/internal/registry"
	"github.com/sells-group/price-sentry/internal/store"
)

// env wires the full extraction stack for one command invocation.
type env struct {
	Store     store.Store
	Registry  *registry.Registry
	Overrides *override.Store
	Health    *health.Monitor
	Pipeline  *pipeline.Pipeline
	Fetcher   *fetch.Fetcher
}

func buildEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	reg := registry.Default()
	if cfg.Registry.Path != "" {
		reg, err = registry.Load(cfg.Registry.Path)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	parseOpts := money.Options{
		ExpectedCurrency: cfg.Parse.ExpectedCurrency,
		DefaultCurrency:  cfg.Parse.DefaultCurrency,
		MinAmount:        cfg.Parse.MinAmount,
		MaxAmount:        cfg.Parse.MaxAmount,
	}

	ovs := override.NewStore(st)
	mon := health.NewMonitor(st)
	stats := registry.NewStats(st)

	pipe := pipeline.New(
		extract.NewSiteExtractor(reg, stats, ovs, parseOpts),
		extract.NewSemanticExtractor(reg, parseOpts),
		extract.NewHeuristicExtractor(parseOpts),
	).
		WithHealth(mon).
		WithOverrides(ovs).
		WithParseOptions(parseOpts)

	if cfg.Anthropic.Key != "" {
		client := llm.NewAnthropicClient(cfg.Anthropic.Key, cfg.Anthropic.Model)
		pipe.WithLLM(llm.NewExtractor(client, parseOpts))
	}

	fetcher := fetch.New(fetch.Options{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Fetch.MaxRetries,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	})

	return &env{
		Store:     st,
		Registry:  reg,
		Overrides: ovs,
		Health:    mon,
		Pipeline:  pipe,
		Fetcher:   fetcher,
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
