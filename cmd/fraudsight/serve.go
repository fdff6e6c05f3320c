package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fraudsight/fraudsight/internal/api"
	"github.com/fraudsight/fraudsight/internal/broker"
	"github.com/fraudsight/fraudsight/internal/cache"
	"github.com/fraudsight/fraudsight/internal/pipeline"
	"github.com/fraudsight/fraudsight/internal/rules"
	"github.com/fraudsight/fraudsight/internal/scoring"
	"github.com/fraudsight/fraudsight/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion pipeline and the HTTP API",
		Long: `Starts the full service: the broker consumer feeding the scoring pipeline,
and the HTTP API for submissions, review and statistics.

The anomaly model must exist before serving; run 'fraudsight train' once to
create it.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}

	// No model, no service: refusing to score with a missing or corrupt
	// artifact beats silently approving everything.
	scorer, err := scoring.LoadScorer(cfg.Model.Path, cfg.Model.Threshold)
	if err != nil {
		return fmt.Errorf("failed to load model from %s (run 'fraudsight train' first): %w", cfg.Model.Path, err)
	}

	evaluator := rules.New(rules.Config{
		Enabled:            cfg.Rules.Enabled,
		AmountHardMax:      cfg.Rules.AmountHardMax,
		HighRiskCategories: cfg.Rules.HighRiskCategories,
	})

	flaggedCache, err := cache.New(cfg.Cache.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to cache: %w", err)
	}
	defer func() { _ = flaggedCache.Close() }()

	brokers := strings.Join(cfg.Broker.Brokers, ",")

	writer, err := broker.NewWriter(brokers, cfg.Broker.Topic)
	if err != nil {
		return fmt.Errorf("failed to build publisher: %w", err)
	}
	defer func() { _ = writer.Close() }()

	var pl *pipeline.Pipeline
	if cfg.Broker.Enabled {
		reader, err := broker.NewReader(broker.ReaderConfig{
			Brokers: brokers,
			Topic:   cfg.Broker.Topic,
			GroupID: cfg.Broker.GroupID,
		})
		if err != nil {
			return fmt.Errorf("failed to open subscription: %w", err)
		}

		pl = pipeline.New(reader, store, flaggedCache, evaluator, scorer, pipeline.Config{})
		if err := pl.Start(ctx); err != nil {
			return fmt.Errorf("failed to start pipeline: %w", err)
		}
	} else {
		slog.Warn("Consumer disabled, serving API only")
	}

	auth := api.NewAuthenticator(cfg.API.JWTSecret, cfg.API.AdminUser, cfg.API.AdminPassword)
	server := api.NewServer(store, flaggedCache, writer, evaluator, scorer, auth)

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", cfg.API.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}

	if pl != nil {
		if err := pl.Stop(); err != nil {
			slog.Warn("Pipeline stop failed", "error", err)
		}
		if err := pl.Err(); err != nil {
			return fmt.Errorf("pipeline terminated abnormally: %w", err)
		}
	}

	return nil
}
