package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

const (
	analyticsCachePrefix = "analytics:"
	analyticsCacheFamily = "analytics"
)

// AnalyticsService computes feedback statistics, optionally scoped to one
// project. It only reads; the underlying counts are not taken in a single
// transaction.
type AnalyticsService struct {
	feedback repositories.FeedbackRepository
	projects repositories.ProjectRepository
	cache    providers.CacheProvider
	cacheTTL time.Duration
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewAnalyticsService creates an analytics service. cache may be nil, and a
// non-positive cacheTTL disables caching.
func NewAnalyticsService(feedback repositories.FeedbackRepository, projects repositories.ProjectRepository, cache providers.CacheProvider, cacheTTL time.Duration, metrics *observability.Metrics) *AnalyticsService {
	return &AnalyticsService{
		feedback: feedback,
		projects: projects,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  metrics,
		now:      time.Now,
	}
}

// AnalyticsCacheKey returns the cache key for a scope. A nil projectID is
// the all-projects scope.
func AnalyticsCacheKey(projectID *string) string {
	if projectID == nil {
		return analyticsCachePrefix + "global"
	}
	return analyticsCachePrefix + "project:" + *projectID
}

// Compute returns the aggregate for the scope. A scope naming a project
// that no longer exists but still has feedback is labelled Unknown Project;
// a scope with neither is a not-found error.
func (s *AnalyticsService) Compute(ctx context.Context, projectID *string) (*entities.FeedbackAnalytics, error) {
	var project *entities.Project
	if projectID != nil {
		var err error
		project, err = s.resolveScope(ctx, *projectID)
		if err != nil {
			return nil, err
		}
	}

	key := AnalyticsCacheKey(projectID)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	start := time.Now()
	result, err := s.compute(ctx, project)
	if err != nil {
		return nil, err
	}
	observability.RecordDBMetric(ctx, s.metrics, "analytics.compute", time.Since(start))

	s.toCache(ctx, key, result)
	return result, nil
}

func (s *AnalyticsService) resolveScope(ctx context.Context, projectID string) (*entities.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err == nil || !apperrors.IsNotFound(err) {
		return project, err
	}
	orphaned, countErr := s.feedback.Count(ctx, repositories.FeedbackFilter{ProjectID: &projectID})
	if countErr != nil {
		return nil, wrapAggregation(countErr)
	}
	if orphaned == 0 {
		return nil, err
	}
	return &entities.Project{ID: projectID, Name: entities.UnknownProjectName}, nil
}

func (s *AnalyticsService) compute(ctx context.Context, project *entities.Project) (*entities.FeedbackAnalytics, error) {
	var scope repositories.FeedbackFilter
	if project != nil {
		scope.ProjectID = &project.ID
	}
	now := s.now()

	total, err := s.feedback.Count(ctx, scope)
	if err != nil {
		return nil, wrapAggregation(err)
	}

	avg, err := s.feedback.AverageRating(ctx, scope)
	if err != nil {
		return nil, wrapAggregation(err)
	}

	distribution := make([]entities.RatingBucket, 0, entities.MaxRating)
	rated := 0
	for rating := entities.MinRating; rating <= entities.MaxRating; rating++ {
		filter := scope
		filter.Rating = &rating
		count, err := s.feedback.Count(ctx, filter)
		if err != nil {
			return nil, wrapAggregation(err)
		}
		distribution = append(distribution, entities.RatingBucket{Rating: rating, Count: count})
		rated += count
	}

	recent7, err := s.countSince(ctx, scope, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, wrapAggregation(err)
	}
	recent30, err := s.countSince(ctx, scope, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, wrapAggregation(err)
	}

	result := &entities.FeedbackAnalytics{
		TotalFeedback:      total,
		AverageRating:      roundRating(avg),
		RatedFeedbackCount: rated,
		RatingDistribution: distribution,
		Recent7Days:        recent7,
		Recent30Days:       recent30,
	}

	if project != nil {
		id := project.ID
		result.FeedbackByProject = []entities.ProjectFeedbackCount{{ProjectID: &id, ProjectName: project.Name, Count: total}}
		result.TotalProjects = 1
		return result, nil
	}

	byProject, err := s.groupByProject(ctx)
	if err != nil {
		return nil, wrapAggregation(err)
	}
	result.FeedbackByProject = byProject

	result.TotalProjects, err = s.projects.Count(ctx, repositories.ProjectFilter{ActiveOnly: true})
	if err != nil {
		return nil, wrapAggregation(err)
	}
	return result, nil
}

func (s *AnalyticsService) countSince(ctx context.Context, scope repositories.FeedbackFilter, since time.Time) (int, error) {
	scope.CreatedAfter = &since
	return s.feedback.Count(ctx, scope)
}

// groupByProject returns one entry per referenced project, largest first,
// plus an Unassigned entry when feedback without a project exists.
func (s *AnalyticsService) groupByProject(ctx context.Context) ([]entities.ProjectFeedbackCount, error) {
	groups, err := s.feedback.GroupByProject(ctx, repositories.FeedbackFilter{})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(groups))
	for _, group := range groups {
		if group.ProjectID != nil {
			ids = append(ids, *group.ProjectID)
		}
	}
	names, err := s.projectNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]entities.ProjectFeedbackCount, 0, len(groups))
	for _, group := range groups {
		if group.Count == 0 {
			continue
		}
		if group.ProjectID == nil {
			entries = append(entries, entities.ProjectFeedbackCount{ProjectName: entities.UnassignedProjectName, Count: group.Count})
			continue
		}
		name, ok := names[*group.ProjectID]
		if !ok {
			name = entities.UnknownProjectName
		}
		id := *group.ProjectID
		entries = append(entries, entities.ProjectFeedbackCount{ProjectID: &id, ProjectName: name, Count: group.Count})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].ProjectName < entries[j].ProjectName
	})
	return entries, nil
}

// projectNames resolves ids to names with a single batched lookup. Ids of
// deleted projects are absent from the result.
func (s *AnalyticsService) projectNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	loader := newProjectLoader(s.projects)
	projects, errs := loader.LoadMany(ctx, ids)()
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			if errors.Is(errs[i], errProjectMissing) {
				continue
			}
			return nil, errs[i]
		}
		if projects[i] != nil {
			names[id] = projects[i].Name
		}
	}
	return names, nil
}

var errProjectMissing = errors.New("project missing")

// newProjectLoader batches project lookups into one GetByIDs call.
func newProjectLoader(repo repositories.ProjectRepository) *dataloader.Loader[string, *entities.Project] {
	return dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Project] {
		results := make([]*dataloader.Result[*entities.Project], len(keys))
		projects, err := repo.GetByIDs(ctx, keys)

		byID := make(map[string]*entities.Project, len(projects))
		for _, p := range projects {
			byID[p.ID] = p
		}

		for i, key := range keys {
			switch p, ok := byID[key]; {
			case err != nil:
				results[i] = &dataloader.Result[*entities.Project]{Error: err}
			case ok:
				results[i] = &dataloader.Result[*entities.Project]{Data: p}
			default:
				results[i] = &dataloader.Result[*entities.Project]{Error: fmt.Errorf("%w: %s", errProjectMissing, key)}
			}
		}
		return results
	})
}

func (s *AnalyticsService) fromCache(ctx context.Context, key string) (*entities.FeedbackAnalytics, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("analytics cache read failed")
		}
		observability.RecordCacheLookup(ctx, s.metrics, analyticsCacheFamily, false)
		return nil, false
	}

	var result entities.FeedbackAnalytics
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding malformed analytics cache entry")
		observability.RecordCacheLookup(ctx, s.metrics, analyticsCacheFamily, false)
		return nil, false
	}

	observability.RecordCacheLookup(ctx, s.metrics, analyticsCacheFamily, true)
	return &result, true
}

func (s *AnalyticsService) toCache(ctx context.Context, key string, result *entities.FeedbackAnalytics) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	ttl := max(int(s.cacheTTL/time.Second), 1)
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("analytics cache write failed")
	}
}

func roundRating(avg *float64) float64 {
	if avg == nil {
		return 0
	}
	return math.Round(*avg*100) / 100
}

func wrapAggregation(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewInternalError("failed to compute analytics", err)
}
