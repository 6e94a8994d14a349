package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/feedbackhub/pkg/config"
	"github.com/zatekoja/feedbackhub/pkg/retry"
)

// FeedbackCollection holds one document per feedback record
const FeedbackCollection = "feedback"

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a Typesense client and waits briefly for the server.
// Search is optional, so the retry budget is much smaller than Postgres'.
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("TYPESENSE_URL is not configured")
	}

	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	retryConfig := retry.Config{
		MaxAttempts:     3,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        time.Second,
		BackoffFactor:   2,
		MaxTotalTimeout: 10 * time.Second,
	}
	err := retry.DoWithLog(
		context.Background(),
		retryConfig,
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense health check failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	return &Client{client: client}, nil
}

// NewClientFromTypesense wraps an existing typesense client without a
// health check.
func NewClientFromTypesense(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the feedback collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == FeedbackCollection {
			return nil
		}
	}

	schema := &api.CollectionSchema{
		Name: FeedbackCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "message", Type: "string"},
			{Name: "name", Type: "string", Optional: pointer.True()},
			{Name: "email", Type: "string", Optional: pointer.True()},
			{Name: "project_id", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "rating", Type: "int32", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}

	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", FeedbackCollection).Msg("created Typesense collection")
	return nil
}
