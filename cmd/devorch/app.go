package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Strob0t/devorch/internal/adapter/filestore"
	"github.com/Strob0t/devorch/internal/adapter/gogit"
	"github.com/Strob0t/devorch/internal/adapter/nats"
	"github.com/Strob0t/devorch/internal/adapter/otel"
	"github.com/Strob0t/devorch/internal/adapter/ristretto"
	"github.com/Strob0t/devorch/internal/config"
	"github.com/Strob0t/devorch/internal/domain/branchprotection"
	"github.com/Strob0t/devorch/internal/git"
	"github.com/Strob0t/devorch/internal/logger"
	"github.com/Strob0t/devorch/internal/port/generator"
	"github.com/Strob0t/devorch/internal/port/gitprovider"
	"github.com/Strob0t/devorch/internal/port/messagequeue"
	"github.com/Strob0t/devorch/internal/service"
)

const (
	gitBackend      = "local"
	shutdownTimeout = 5 * time.Second
)

// app holds the wired infrastructure for one CLI invocation.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *filestore.Store
	closers []func()
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration and opens the ledger. Logs go to errOut so
// command output stays clean.
func newApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	log, closeLog := logger.NewWithWriter(cfg.Logging, opts.errOut)
	a := &app{
		cfg:     cfg,
		log:     log,
		store:   filestore.New(cfg.Ledger.RunsDir, log),
		closers: []func(){closeLog.Close},
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// runner wires every port the workflow needs: telemetry, event publishing,
// the content cache, the snapshot provider, git and the generator.
func (a *app) runner(ctx context.Context) (*service.RunnerService, error) {
	cfg := a.cfg

	shutdown, err := otel.Setup(ctx, otel.Config{
		ServiceName: cfg.Logging.Service,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			a.log.Warn("telemetry shutdown", "error", err)
		}
	})
	metrics, err := otel.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	pub, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}

	contentCache, err := ristretto.New(cfg.Cache.MaxCostBytes, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.closers = append(a.closers, contentCache.Close)

	protection, err := branchprotection.NewSet(cfg.Git.Protected...)
	if err != nil {
		return nil, fmt.Errorf("branch protection: %w", err)
	}
	gitOpts := gitprovider.Options{
		Executable:     cfg.Git.Executable,
		DefaultBranch:  cfg.Git.DefaultBranch,
		CommandTimeout: cfg.Git.CommandTimeout,
		CloneTimeout:   cfg.Git.CloneTimeout,
		Protection:     protection,
		Pool:           git.NewPool(cfg.Git.MaxConcurrent),
		Logger:         a.log,
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}

	return service.NewRunnerService(service.RunnerDeps{
		Store: a.store,
		OpenRepo: func(path string) (gitprovider.Repository, error) {
			return gitprovider.New(gitBackend, path, gitOpts)
		},
		Snapshots: gogit.New(contentCache, gogit.Options{MaxFileBytes: int64(cfg.Context.MaxFileBytes), Logger: a.log}),
		Generator: gen,
		Events:    service.NewRunEvents(pub, a.log),
		Metrics:   metrics,
		Logger:    a.log,
	}, service.RunnerOptions{
		Mode:         cfg.Orchestrator.Mode,
		DryRun:       cfg.Orchestrator.DryRun,
		FailFast:     cfg.Orchestrator.FailFast,
		BranchPrefix: cfg.Git.BranchPrefix,
		CommitPrefix: cfg.Orchestrator.CommitPrefix,
		LogLevel:     cfg.Logging.Level,
	}), nil
}

// publisher connects to NATS when a URL is configured.
func (a *app) publisher(ctx context.Context) (messagequeue.Publisher, error) {
	if a.cfg.NATS.URL == "" {
		return messagequeue.Noop{}, nil
	}
	q, err := nats.Connect(ctx, a.cfg.NATS.URL, a.log)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := errors.Join(q.Drain(), q.Close()); err != nil {
			a.log.Warn("nats close", "error", err)
		}
	})
	return q, nil
}

// newGenerator builds the configured backend wrapped with retry and timeout.
func newGenerator(cfg *config.Config) (generator.Generator, error) {
	var settings map[string]string
	if cfg.Generator.Backend == "litellm" {
		settings = map[string]string{
			"url":                  cfg.LiteLLM.URL,
			"master_key":           cfg.LiteLLM.MasterKey,
			"model":                cfg.LiteLLM.Model,
			"timeout":              cfg.Generator.Timeout.String(),
			"breaker_max_failures": strconv.Itoa(cfg.Breaker.MaxFailures),
			"breaker_timeout":      cfg.Breaker.Timeout.String(),
		}
	}
	inner, err := generator.New(cfg.Generator.Backend, settings)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	return service.NewResilientGenerator(inner, service.ResilienceOptions{
		Timeout:      cfg.Generator.Timeout,
		MaxAttempts:  cfg.Generator.MaxAttempts,
		InitialDelay: cfg.Generator.InitialDelay,
	}), nil
}
