package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/adapters/database"
	"github.com/zatekoja/feedbackhub/internal/adapters/search"
	"github.com/zatekoja/feedbackhub/internal/application/services"
	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
	"github.com/zatekoja/feedbackhub/pkg/config"
)

type seedFeedback struct {
	name     string
	email    string
	message  string
	rating   int
	metadata entities.Metadata
}

var seedProjects = []struct {
	input    services.CreateProjectInput
	feedback []seedFeedback
}{
	{
		input: services.CreateProjectInput{Name: "Marketing Site", Domain: "www.example.com", Description: "Public landing pages"},
		feedback: []seedFeedback{
			{name: "Ada", email: "ada@example.com", message: "The pricing page is very clear.", rating: 5, metadata: entities.Metadata{"page": "/pricing"}},
			{message: "Contact form did not confirm my submission.", rating: 2, metadata: entities.Metadata{"page": "/contact", "browser": "Firefox"}},
			{name: "Grace", message: "Would love a dark mode."},
		},
	},
	{
		input: services.CreateProjectInput{Name: "Docs", Domain: "docs.example.com"},
		feedback: []seedFeedback{
			{email: "dev@example.com", message: "Search results for webhooks are outdated.", rating: 3},
			{message: "Great examples in the quickstart!", rating: 4, metadata: entities.Metadata{"section": map[string]any{"id": "quickstart", "step": 2}}},
		},
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("feedbackhub-seed", cfg.App.Environment)

	ctx := context.Background()
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	if err := pgClient.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	var searchRepo repositories.FeedbackSearchRepository
	if tsClient, err := typesense.NewClient(&cfg.Typesense); err == nil {
		if err := tsClient.InitSchema(ctx); err == nil {
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	// No notifier: seeding must not send email.
	projectService := services.NewProjectService(database.NewProjectAdapter(pgClient), nil)
	feedbackService := services.NewFeedbackService(database.NewFeedbackAdapter(pgClient), services.FeedbackServiceDeps{
		Search: searchRepo,
	})

	total := 0
	for _, seed := range seedProjects {
		project, err := projectService.Create(ctx, seed.input)
		if err != nil {
			log.Fatal().Err(err).Str("project", seed.input.Name).Msg("failed to create project")
		}
		fmt.Printf("%-16s %s\n", project.Name, project.APIKey)

		for _, item := range seed.feedback {
			if _, err := feedbackService.Submit(ctx, project, toInput(item)); err != nil {
				log.Fatal().Err(err).Msg("failed to seed feedback")
			}
			total++
		}
	}

	if _, err := feedbackService.Submit(ctx, nil, services.SubmitFeedbackInput{Message: "Found the widget on a page without a project key."}); err != nil {
		log.Fatal().Err(err).Msg("failed to seed unassigned feedback")
	}
	total++

	done := make(chan struct{})
	go func() {
		feedbackService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("timed out waiting for search indexing")
	}

	log.Info().Int("projects", len(seedProjects)).Int("feedback", total).Msg("seed complete")
}

func toInput(item seedFeedback) services.SubmitFeedbackInput {
	input := services.SubmitFeedbackInput{
		Name:     item.name,
		Email:    item.email,
		Message:  item.message,
		Metadata: item.metadata,
	}
	if item.rating > 0 {
		rating := item.rating
		input.Rating = &rating
	}
	return input
}
