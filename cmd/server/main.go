package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/spsina/BrightID-Aura-Node/internal/config"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
	"github.com/spsina/BrightID-Aura-Node/internal/logging"
	"github.com/spsina/BrightID-Aura-Node/internal/metrics"
	"github.com/spsina/BrightID-Aura-Node/internal/repository"
	"github.com/spsina/BrightID-Aura-Node/internal/server"
	"github.com/spsina/BrightID-Aura-Node/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	graphClient, err := buildGraphClient(ctx, cfg)
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

	var collector *metrics.Collector
	var gatherer prometheus.Gatherer
	if cfg.HTTP.MetricsEnabled {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollector(registry)
		gatherer = registry
	}

	connectionService := service.NewConnectionService(repo, logger, collector)
	groupService := service.NewGroupService(repo, logger, collector)
	eligibilityService := service.NewEligibilityService(repo, logger, cfg.Eligibility.RecheckInterval)
	userService := service.NewUserService(repo, eligibilityService, logger)
	identityService := service.NewIdentityService(repo, logger)
	sponsorshipService := service.NewSponsorshipService(repo, logger, collector)

	apiHandlers := server.NewAPIHandlers(
		logger,
		connectionService,
		groupService,
		eligibilityService,
		userService,
		identityService,
		sponsorshipService,
	)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.GraphHealthService{Client: graphClient},
		API:              apiHandlers,
		Metrics:          collector,
		Gatherer:         gatherer,
		RateLimit:        limiter,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graph.Client, error) {
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
	return graph.NewNeo4jClient(ctx, opts)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
