package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

// FeedbackFilter narrows feedback queries. Every field is optional; the zero
// value matches all feedback. Unassigned restricts to feedback without a
// project and is ignored when ProjectID is set.
type FeedbackFilter struct {
	ProjectID    *string
	Unassigned   bool
	Rating       *int
	CreatedAfter *time.Time
}

// ProjectCount is one group of GroupByProject. ProjectID is nil for
// unassigned feedback.
type ProjectCount struct {
	ProjectID *string
	Count     int
}

// ListOptions pages feedback listings, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// FeedbackRepository is the persistence port for feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entities.Feedback) error
	GetByID(ctx context.Context, id string) (*entities.Feedback, error)
	List(ctx context.Context, filter FeedbackFilter, opts ListOptions) ([]*entities.Feedback, int, error)
	Delete(ctx context.Context, id string) error

	Count(ctx context.Context, filter FeedbackFilter) (int, error)
	// AverageRating returns nil when no rated feedback matches filter.
	AverageRating(ctx context.Context, filter FeedbackFilter) (*float64, error)
	GroupByProject(ctx context.Context, filter FeedbackFilter) ([]ProjectCount, error)
}
