package search

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
)

const reindexBatchSize = 200

// Reindex pages through every stored feedback record, newest first, and
// upserts it into index. Individual index failures are logged and counted
// rather than aborting the run; a store failure aborts.
func Reindex(ctx context.Context, store repositories.FeedbackRepository, index repositories.FeedbackSearchRepository) (indexed, failed int, err error) {
	opts := repositories.ListOptions{Limit: reindexBatchSize}
	for {
		if err := ctx.Err(); err != nil {
			return indexed, failed, err
		}

		batch, total, err := store.List(ctx, repositories.FeedbackFilter{}, opts)
		if err != nil {
			return indexed, failed, fmt.Errorf("failed to list feedback at offset %d: %w", opts.Offset, err)
		}

		for _, feedback := range batch {
			if err := index.Index(ctx, feedback); err != nil {
				log.Warn().Err(err).Str("feedback_id", feedback.ID).Msg("failed to index feedback")
				failed++
				continue
			}
			indexed++
		}

		opts.Offset += len(batch)
		if len(batch) == 0 || opts.Offset >= total {
			return indexed, failed, nil
		}
		log.Debug().Int("offset", opts.Offset).Int("total", total).Msg("reindex progress")
	}
}
