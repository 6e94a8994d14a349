// Command indexer rebuilds the Typesense feedback collection from PostgreSQL.
// Ingestion indexes best-effort, so records stored while Typesense was down
// only become searchable after a reindex.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/adapters/database"
	"github.com/zatekoja/feedbackhub/internal/adapters/search"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
	"github.com/zatekoja/feedbackhub/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the feedback collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.App.Environment)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}
	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			log.Fatal().Str("interval", intervalValue).Msg("interval must be a positive duration")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}
		if interval <= 0 {
			return
		}
		reset = false

		log.Info().Dur("next_run_in", interval).Msg("reindex complete")
		select {
		case <-ctx.Done():
			log.Info().Msg("indexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.FeedbackCollection).Msg("deleting collection before reindex")
		if _, err := tsClient.Client().Collection(typesense.FeedbackCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete collection")
		}
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	start := time.Now()
	indexed, failed, err := search.Reindex(ctx, database.NewFeedbackAdapter(pgClient), search.NewTypesenseAdapter(tsClient))
	if err != nil {
		return err
	}

	log.Info().
		Int("indexed", indexed).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("feedback reindexed")
	return nil
}
