package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

const (
	sideEffectTimeout = 10 * time.Second
	defaultListLimit  = 50
	maxListLimit      = 200
)

// FeedbackNotifier sends the notification for a stored submission
type FeedbackNotifier interface {
	NotifyFeedback(ctx context.Context, data entities.FeedbackEmailData) entities.EmailSendResult
}

// SubmitFeedbackInput is an ingestion request after the caller resolved the
// owning project.
type SubmitFeedbackInput struct {
	Name     string
	Email    string
	Message  string
	Rating   *int
	Metadata entities.Metadata
}

// FeedbackServiceDeps groups the optional collaborators of FeedbackService
type FeedbackServiceDeps struct {
	Notifier FeedbackNotifier
	Search   repositories.FeedbackSearchRepository
	EventBus providers.EventBus
	Metrics  *observability.Metrics
}

// FeedbackService validates, stores and reacts to feedback submissions.
type FeedbackService struct {
	repo     repositories.FeedbackRepository
	notifier FeedbackNotifier
	search   repositories.FeedbackSearchRepository
	eventBus providers.EventBus
	metrics  *observability.Metrics
	inflight sync.WaitGroup
}

// NewFeedbackService creates a new feedback service.
func NewFeedbackService(repo repositories.FeedbackRepository, deps FeedbackServiceDeps) *FeedbackService {
	return &FeedbackService{
		repo:     repo,
		notifier: deps.Notifier,
		search:   deps.Search,
		eventBus: deps.EventBus,
		metrics:  deps.Metrics,
	}
}

// ValidateSubmission reports the first rule input breaks, as a validation
// error.
func ValidateSubmission(input SubmitFeedbackInput) error {
	if strings.TrimSpace(input.Message) == "" {
		return apperrors.NewValidationError("message is required")
	}
	if input.Rating != nil && !entities.ValidRating(*input.Rating) {
		return apperrors.NewValidationError("rating must be between 1 and 5")
	}
	return nil
}

// Submit validates and persists feedback for project (nil for unassigned).
// Notification, indexing and event publishing run afterwards in the
// background and never affect the returned result.
func (s *FeedbackService) Submit(ctx context.Context, project *entities.Project, input SubmitFeedbackInput) (*entities.Feedback, error) {
	if err := ValidateSubmission(input); err != nil {
		return nil, err
	}

	feedback := &entities.Feedback{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Email:     input.Email,
		Message:   input.Message,
		Rating:    input.Rating,
		Metadata:  input.Metadata,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if project != nil {
		projectID := project.ID
		feedback.ProjectID = &projectID
	}

	start := time.Now()
	if err := s.repo.Create(ctx, feedback); err != nil {
		return nil, err
	}
	observability.RecordDBMetric(ctx, s.metrics, "feedback.create", time.Since(start))
	observability.RecordFeedbackIngested(ctx, s.metrics, project != nil)

	log.Info().
		Str("feedback_id", feedback.ID).
		Bool("assigned", project != nil).
		Bool("rated", feedback.HasRating()).
		Msg("feedback stored")

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.afterCreate(feedback, project)
	}()

	return feedback, nil
}

// Wait blocks until background work for accepted submissions has finished
func (s *FeedbackService) Wait() {
	s.inflight.Wait()
}

// afterCreate runs detached from the request so a slow provider never
// delays the response. Indexing and the created event go first: the event
// invalidates cached analytics and must not wait behind email delivery.
// Each provider attempt is bounded by the notifier itself.
func (s *FeedbackService) afterCreate(feedback *entities.Feedback, project *entities.Project) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	if s.search != nil {
		if err := s.search.Index(ctx, feedback); err != nil {
			log.Warn().Err(err).Str("feedback_id", feedback.ID).Msg("failed to index feedback")
		}
	}
	s.publish(ctx, entities.FeedbackEventCreated, feedback)
	cancel()

	if s.notifier != nil {
		result := s.notifier.NotifyFeedback(context.Background(), emailData(feedback, project))
		if !result.Success {
			log.Error().Str("feedback_id", feedback.ID).Str("error", result.Error).Msg("feedback notification not delivered")
		}
	}
}

// Get returns a single feedback record
func (s *FeedbackService) Get(ctx context.Context, id string) (*entities.Feedback, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of feedback, newest first, with the total match count
func (s *FeedbackService) List(ctx context.Context, filter repositories.FeedbackFilter, opts repositories.ListOptions) ([]*entities.Feedback, int, error) {
	if filter.Rating != nil && !entities.ValidRating(*filter.Rating) {
		return nil, 0, apperrors.NewValidationError("rating must be between 1 and 5")
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	opts.Limit = min(opts.Limit, maxListLimit)
	opts.Offset = max(opts.Offset, 0)

	return s.repo.List(ctx, filter, opts)
}

// Delete removes feedback from the store and the search index
func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	feedback, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.search != nil {
		if err := s.search.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str("feedback_id", id).Msg("failed to remove feedback from index")
		}
	}
	s.publish(ctx, entities.FeedbackEventDeleted, feedback)
	return nil
}

// Search runs a full-text query. Hits whose record no longer exists are
// skipped.
func (s *FeedbackService) Search(ctx context.Context, params repositories.FeedbackSearchParams) ([]*entities.Feedback, int, error) {
	if s.search == nil {
		return nil, 0, apperrors.NewExternalError("search is not configured", nil)
	}

	ids, total, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, 0, apperrors.NewExternalError("search failed", err)
	}

	results := make([]*entities.Feedback, 0, len(ids))
	for _, id := range ids {
		feedback, err := s.repo.GetByID(ctx, id)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		results = append(results, feedback)
	}
	return results, total, nil
}

func (s *FeedbackService) publish(ctx context.Context, eventType entities.FeedbackEventType, feedback *entities.Feedback) {
	if s.eventBus == nil {
		return
	}

	event := entities.NewFeedbackEvent(eventType, feedback.ID, feedback.ProjectID)
	if err := s.eventBus.Publish(ctx, providers.EventChannelFeedback, event); err != nil {
		log.Warn().Err(err).Str("feedback_id", feedback.ID).Msg("failed to publish feedback event")
	}
	if feedback.ProjectID != nil {
		if err := s.eventBus.Publish(ctx, providers.GetProjectChannel(*feedback.ProjectID), event); err != nil {
			log.Warn().Err(err).Str("feedback_id", feedback.ID).Msg("failed to publish project feedback event")
		}
	}
}

func emailData(feedback *entities.Feedback, project *entities.Project) entities.FeedbackEmailData {
	data := entities.FeedbackEmailData{
		FeedbackID:  feedback.ID,
		ProjectName: entities.UnassignedProjectName,
		Name:        feedback.Name,
		Email:       feedback.Email,
		Message:     feedback.Message,
		Rating:      feedback.Rating,
		Metadata:    feedback.Metadata,
		CreatedAt:   feedback.CreatedAt,
	}
	if project != nil {
		data.ProjectID = project.ID
		data.ProjectName = project.Name
		data.ProjectDomain = project.Domain
	}
	return data
}
