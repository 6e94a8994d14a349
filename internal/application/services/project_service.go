package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

const (
	apiKeyPrefix     = "fbk_"
	apiKeyRandomSize = 16
	apiKeyAttempts   = 3
)

// CreateProjectInput is the administrative input for a new project
type CreateProjectInput struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
}

// ProjectService manages projects and their ingestion API keys
type ProjectService struct {
	repo     repositories.ProjectRepository
	eventBus providers.EventBus
}

// NewProjectService creates a new project service. eventBus may be nil.
func NewProjectService(repo repositories.ProjectRepository, eventBus providers.EventBus) *ProjectService {
	return &ProjectService{repo: repo, eventBus: eventBus}
}

// Create validates input and stores an active project with a fresh API key
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*entities.Project, error) {
	name := strings.TrimSpace(input.Name)
	domain := strings.TrimSpace(input.Domain)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}
	if domain == "" {
		return nil, apperrors.NewValidationError("domain is required")
	}

	now := time.Now().UTC()
	project := &entities.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Domain:      domain,
		Description: strings.TrimSpace(input.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.withFreshKey(func(key string) error {
		project.APIKey = key
		return s.repo.Create(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("project_id", project.ID).Str("name", project.Name).Msg("project created")
	s.publishChange(ctx, project.ID)
	return project, nil
}

// Get returns a project by id
func (s *ProjectService) Get(ctx context.Context, id string) (*entities.Project, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all projects, optionally only active ones
func (s *ProjectService) List(ctx context.Context, activeOnly bool) ([]*entities.Project, error) {
	return s.repo.List(ctx, repositories.ProjectFilter{ActiveOnly: activeOnly})
}

// Update applies the non-nil fields of update
func (s *ProjectService) Update(ctx context.Context, id string, update entities.ProjectUpdate) (*entities.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty")
		}
		project.Name = name
	}
	if update.Domain != nil {
		domain := strings.TrimSpace(*update.Domain)
		if domain == "" {
			return nil, apperrors.NewValidationError("domain cannot be empty")
		}
		project.Domain = domain
	}
	if update.Description != nil {
		project.Description = strings.TrimSpace(*update.Description)
	}
	if update.IsActive != nil {
		project.IsActive = *update.IsActive
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	s.publishChange(ctx, project.ID)
	return project, nil
}

// RegenerateKey replaces the project's API key. The old key stops working
// immediately.
func (s *ProjectService) RegenerateKey(ctx context.Context, id string) (*entities.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.withFreshKey(func(key string) error {
		if err := s.repo.UpdateAPIKey(ctx, id, key); err != nil {
			return err
		}
		project.APIKey = key
		return nil
	})
	if err != nil {
		return nil, err
	}

	project.UpdatedAt = time.Now().UTC()
	log.Info().Str("project_id", id).Msg("project api key regenerated")
	return project, nil
}

// Delete removes a project. Feedback that referenced it is kept.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("project_id", id).Msg("project deleted")
	s.publishChange(ctx, id)
	return nil
}

// ResolveAPIKey returns the active project owning apiKey
func (s *ProjectService) ResolveAPIKey(ctx context.Context, apiKey string) (*entities.Project, error) {
	if apiKey == "" {
		return nil, apperrors.NewUnauthorizedError("missing api key")
	}

	project, err := s.repo.GetByAPIKey(ctx, apiKey)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.NewUnauthorizedError("invalid api key")
	}
	if err != nil {
		return nil, err
	}
	if !project.IsActive {
		return nil, apperrors.NewUnauthorizedError("project is inactive")
	}
	return project, nil
}

// withFreshKey calls store with newly generated keys until it does not
// report a conflict.
func (s *ProjectService) withFreshKey(store func(key string) error) error {
	var err error
	for attempt := 0; attempt < apiKeyAttempts; attempt++ {
		var key string
		key, err = GenerateAPIKey()
		if err != nil {
			return apperrors.NewInternalError("failed to generate api key", err)
		}
		err = store(key)
		if apperrors.TypeOf(err) != apperrors.ErrorTypeConflict {
			return err
		}
	}
	return err
}

func (s *ProjectService) publishChange(ctx context.Context, projectID string) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewFeedbackEvent(entities.FeedbackEventProjectChanged, "", &projectID)
	if err := s.eventBus.Publish(ctx, providers.EventChannelFeedback, event); err != nil {
		log.Warn().Err(err).Str("project_id", projectID).Msg("failed to publish project change")
	}
}

// GenerateAPIKey returns "fbk_" followed by 32 random hex characters
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyRandomSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
