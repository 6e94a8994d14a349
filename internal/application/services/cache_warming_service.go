package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
)

// CacheWarmingService precomputes analytics aggregates so dashboards hit a
// warm cache after deploys and invalidations.
type CacheWarmingService struct {
	analytics *AnalyticsService
	projects  repositories.ProjectRepository
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(analytics *AnalyticsService, projects repositories.ProjectRepository) *CacheWarmingService {
	return &CacheWarmingService{
		analytics: analytics,
		projects:  projects,
	}
}

// WarmCache computes the global aggregate and one aggregate per active
// project. Failures are logged and do not stop the remaining scopes.
func (s *CacheWarmingService) WarmCache(ctx context.Context) int {
	warmed := 0

	if _, err := s.analytics.Compute(ctx, nil); err != nil {
		log.Warn().Err(err).Msg("failed to warm global analytics")
	} else {
		warmed++
	}

	projects, err := s.projects.List(ctx, repositories.ProjectFilter{ActiveOnly: true})
	if err != nil {
		log.Warn().Err(err).Msg("failed to list projects for cache warming")
		return warmed
	}

	for _, project := range projects {
		id := project.ID
		if _, err := s.analytics.Compute(ctx, &id); err != nil {
			log.Warn().Err(err).Str("project_id", id).Msg("failed to warm project analytics")
			continue
		}
		warmed++
	}

	log.Debug().Int("scopes", warmed).Msg("analytics cache warmed")
	return warmed
}

// StartPeriodicWarming warms once, then every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	s.WarmCache(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming")
				return
			case <-ticker.C:
				s.WarmCache(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic analytics cache warming")
}
