package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/adapters/cache"
	"github.com/zatekoja/feedbackhub/internal/adapters/database"
	"github.com/zatekoja/feedbackhub/internal/adapters/events"
	"github.com/zatekoja/feedbackhub/internal/adapters/search"
	"github.com/zatekoja/feedbackhub/internal/api/handlers"
	"github.com/zatekoja/feedbackhub/internal/api/routes"
	"github.com/zatekoja/feedbackhub/internal/application/services"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/redis"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/notifications"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
	"github.com/zatekoja/feedbackhub/pkg/config"
	"github.com/zatekoja/feedbackhub/pkg/secrets"
)

func main() {
	// Export Vault secrets before config reads the environment
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Environment)
	if vaultErr != nil {
		log.Warn().Err(vaultErr).Msg("failed to load secrets from Vault, using environment")
	} else if vaultResult.Enabled {
		log.Info().Str("path", vaultResult.Path).Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("Vault secrets applied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if err := pgClient.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}

	feedbackRepo := database.NewFeedbackAdapter(pgClient)
	projectRepo := database.NewProjectAdapter(pgClient)

	// Redis backs the analytics cache, ingestion protection and the event
	// bus. Without it those degrade to in-process or disabled behaviour.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, continuing without cache and events")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
	}

	var searchRepo repositories.FeedbackSearchRepository
	if cfg.Typesense.URL != "" {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, search disabled")
		} else if err := tsClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to init Typesense schema, search disabled")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
			log.Info().Msg("Typesense search enabled")
		}
	}

	emailProviders := notifications.BuildProviders(cfg.Email)
	if len(emailProviders) == 0 {
		log.Warn().Msg("no email providers configured, notifications will fail")
	}
	if cfg.Email.NotifyTo == "" {
		log.Warn().Msg("NOTIFICATION_EMAIL is not set, feedback notifications are disabled")
	}

	notificationService := services.NewNotificationService(
		emailProviders,
		services.NewEmailContentBuilder(cfg.Email.DashboardURL),
		services.NotificationConfig{From: cfg.Email.From, NotifyTo: cfg.Email.NotifyTo, AttemptTimeout: cfg.Email.Timeout},
		metrics,
	)
	projectService := services.NewProjectService(projectRepo, eventBus)
	feedbackService := services.NewFeedbackService(feedbackRepo, services.FeedbackServiceDeps{
		Notifier: notificationService,
		Search:   searchRepo,
		EventBus: eventBus,
		Metrics:  metrics,
	})
	analyticsService := services.NewAnalyticsService(feedbackRepo, projectRepo, cacheProvider, cfg.App.AnalyticsTTL, metrics)

	var invalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		invalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := invalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation service")
		}
		// Aggregates cached by a previous process may predate writes made
		// while no subscriber was listening.
		if err := invalidationService.InvalidateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to clear analytics caches")
		}
	}
	if cacheProvider != nil && cfg.App.WarmInterval > 0 {
		warmingService := services.NewCacheWarmingService(analyticsService, projectRepo)
		go warmingService.StartPeriodicWarming(ctx, cfg.App.WarmInterval)
		log.Info().Dur("interval", cfg.App.WarmInterval).Msg("analytics cache warming started")
	}

	if cfg.App.AdminAPIToken == "" {
		log.Warn().Msg("ADMIN_API_TOKEN is not set, admin endpoints are disabled")
	}

	router := routes.NewRouter(routes.Handlers{
		Feedback:      handlers.NewFeedbackHandler(feedbackService, projectService, cacheProvider, handlers.IngestionProtection{
			DedupWindow:    cfg.App.DedupWindow,
			TrustedProxies: cfg.Server.TrustedProxies,
		}),
		Analytics:     handlers.NewAnalyticsHandler(analyticsService),
		Projects:      handlers.NewProjectHandler(projectService),
		AdminFeedback: handlers.NewAdminFeedbackHandler(feedbackService),
		Notifications: handlers.NewNotificationHandler(notificationService),
		Stream:        handlers.NewStreamHandler(eventBus),
	}, routes.Options{
		AdminToken:     cfg.App.AdminAPIToken,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Strs("email_providers", notificationService.Providers()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Let detached notification dispatches finish within the grace period
	drained := make(chan struct{})
	go func() {
		feedbackService.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown grace period elapsed with notifications in flight")
	}

	cancel()
	if invalidationService != nil {
		invalidationService.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
