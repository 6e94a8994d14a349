package repositories

import (
	"context"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

// ProjectFilter narrows project queries
type ProjectFilter struct {
	ActiveOnly bool
}

// ProjectRepository is the persistence port for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *entities.Project) error
	GetByID(ctx context.Context, id string) (*entities.Project, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Project, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*entities.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]*entities.Project, error)
	Update(ctx context.Context, project *entities.Project) error
	UpdateAPIKey(ctx context.Context, id, apiKey string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filter ProjectFilter) (int, error)
}
