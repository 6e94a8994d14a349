package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
)

// CacheInvalidationService drops cached analytics when feedback or projects
// change.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelFeedback)
	if err != nil {
		return fmt.Errorf("failed to subscribe to feedback events: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	log.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.FeedbackEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

// handleEvent drops the global aggregate and, when the event names a
// project, that project's aggregate. Project renames and deletions change
// labels in the global aggregate only.
func (s *CacheInvalidationService) handleEvent(event *entities.FeedbackEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	keys := []string{AnalyticsCacheKey(nil)}
	if event.ProjectID != nil {
		keys = append(keys, AnalyticsCacheKey(event.ProjectID))
	}

	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Str("event_id", event.ID).Msg("failed to invalidate analytics cache")
		}
	}
	log.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Strs("keys", keys).Msg("invalidated analytics cache")
}

// InvalidateAll removes every cached analytics aggregate
func (s *CacheInvalidationService) InvalidateAll(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, analyticsCachePrefix+"*"); err != nil {
		return fmt.Errorf("failed to invalidate analytics caches: %w", err)
	}
	return nil
}
