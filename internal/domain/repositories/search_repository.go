package repositories

import (
	"context"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

// FeedbackSearchParams holds full-text search input
type FeedbackSearchParams struct {
	Query     string
	ProjectID string
	Limit     int
	Offset    int
}

// FeedbackSearchRepository indexes feedback for full-text search.
type FeedbackSearchRepository interface {
	Index(ctx context.Context, feedback *entities.Feedback) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, params FeedbackSearchParams) ([]string, int, error)
}
