package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spsina/BrightID-Aura-Node/internal/config"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
	"github.com/spsina/BrightID-Aura-Node/internal/logging"
	"github.com/spsina/BrightID-Aura-Node/internal/repository"
	"github.com/spsina/BrightID-Aura-Node/internal/service"
)

func main() {
	var (
		once       = flag.Bool("once", false, "Run a single scoring pass and exit")
		iterations = flag.Int("iterations", 0, "Propagation iterations (overrides SCORER_ITERATIONS)")
		workers    = flag.Int("workers", 0, "Concurrent score writers (overrides SCORER_WORKERS)")
		interval   = flag.Duration("interval", 0, "Delay between passes (overrides SCORER_INTERVAL)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *iterations > 0 {
		cfg.Scorer.Iterations = *iterations
	}
	if *workers > 0 {
		cfg.Scorer.Workers = *workers
	}
	if *interval > 0 {
		cfg.Scorer.Interval = *interval
	}

	logger := logging.New(cfg.Logging).With("component", "scorer")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	graphClient, err := buildGraphClient(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	repo := repository.New(graphClient)
	scorer := service.NewScorer(repo, logger, cfg.Scorer.Iterations, cfg.Scorer.Workers)

	if *once || cfg.Scorer.Interval <= 0 {
		if err := runPass(ctx, logger, scorer); err != nil {
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(cfg.Scorer.Interval)
	defer ticker.Stop()

	// Errors inside the loop are logged and the next tick retries; a
	// transient graph outage should not kill the scheduler.
	_ = runPass(ctx, logger, scorer)
	for {
		select {
		case <-ctx.Done():
			logger.Info("scorer stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			_ = runPass(ctx, logger, scorer)
		}
	}
}

func runPass(ctx context.Context, logger *slog.Logger, scorer *service.Scorer) error {
	start := time.Now()
	report, err := scorer.Run(ctx)
	if err != nil {
		logger.Error("scoring pass failed", "error", err)
		return err
	}
	logger.Info("scoring pass complete",
		"duration", time.Since(start).String(),
		"users", report.Users,
		"groups", report.Groups,
		"seeds", report.Seeds,
		"max", report.Max,
		"min", report.Min,
	)
	return nil
}

func buildGraphClient(ctx context.Context, logger *slog.Logger, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}
	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	client, err := graph.NewNeo4jClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return client, nil
}
