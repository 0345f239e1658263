package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sift/internal/api"
	"github.com/MikeSquared-Agency/sift/internal/config"
	"github.com/MikeSquared-Agency/sift/internal/hermes"
	"github.com/MikeSquared-Agency/sift/internal/processor"
	"github.com/MikeSquared-Agency/sift/internal/slack"
	"github.com/MikeSquared-Agency/sift/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the NATS batch processor and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel, os.Stdout)
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("sift starting", "port", cfg.Port)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	comps, err := buildComponents(cfg, false, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	// Database (optional: without it reports are only published)
	var (
		writer  processor.ReportWriter
		reports api.ReportStore
	)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		writer, reports = db, db
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, reports will not be persisted")
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer hermesClient.Close()
	logger.Info("NATS connected", "url", cfg.NatsURL)

	// Slack digest (optional: sift works without Slack, reports are still published)
	var notifier processor.Notifier
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		logger.Warn("slack not configured, running without report digests")
	}

	proc := processor.New(comps.builder, writer, hermesClient, notifier, logger)
	if err := hermesClient.Subscribe(hermes.SubjectConversationBatch, hermes.QueueGroup, proc.HandleConversationBatch); err != nil {
		return fmt.Errorf("subscribe to conversation batches: %w", err)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Registry:    comps.registry,
		Builder:     comps.builder,
		Selector:    comps.selector,
		Store:       reports,
		LLMProvider: comps.provider,
		Logger:      logger,
	})
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Announce registration
	if err := hermesClient.Publish("swarm.agent.sift.registered", map[string]any{
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"port":             cfg.Port,
		"taxonomy_version": comps.registry.Version(),
		"llm_provider":     comps.provider,
	}); err != nil {
		logger.Warn("failed to publish registration", "error", err)
	}

	logger.Info("sift ready", "port", cfg.Port, "llm_provider", comps.provider)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
