package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	tsclient "github.com/zatekoja/feedbackhub/internal/infrastructure/clients/typesense"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// TypesenseAdapter implements feedback search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.FeedbackSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a feedback document
func (a *TypesenseAdapter) Index(ctx context.Context, feedback *entities.Feedback) error {
	_, err := a.client.Client().Collection(tsclient.FeedbackCollection).Documents().Upsert(ctx, buildDocument(feedback))
	if err != nil {
		return fmt.Errorf("failed to index feedback: %w", err)
	}
	return nil
}

// Delete removes a feedback document. Deleting a missing document succeeds.
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.FeedbackCollection).Document(id).Delete(ctx)
	var httpErr *typesense.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete feedback from index: %w", err)
	}
	return nil
}

// Search runs a full-text query over message, name and email and returns the
// matching feedback ids, best match first, with the total hit count.
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.FeedbackSearchParams) ([]string, int, error) {
	result, err := a.client.Client().Collection(tsclient.FeedbackCollection).Documents().Search(ctx, buildSearchParams(params))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search feedback: %w", err)
	}

	ids := make([]string, 0)
	if result.Hits != nil {
		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			if id, ok := (*hit.Document)["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}

	total := len(ids)
	if result.Found != nil {
		total = *result.Found
	}
	return ids, total, nil
}

func buildDocument(feedback *entities.Feedback) map[string]any {
	doc := map[string]any{
		"id":         feedback.ID,
		"message":    feedback.Message,
		"created_at": feedback.CreatedAt.Unix(),
	}
	if feedback.Name != "" {
		doc["name"] = feedback.Name
	}
	if feedback.Email != "" {
		doc["email"] = feedback.Email
	}
	if feedback.ProjectID != nil {
		doc["project_id"] = *feedback.ProjectID
	}
	if feedback.Rating != nil {
		doc["rating"] = *feedback.Rating
	}
	return doc
}

func buildSearchParams(params repositories.FeedbackSearchParams) *api.SearchCollectionParams {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := strings.TrimSpace(params.Query)
	if query == "" {
		query = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("message,name,email"),
		SortBy:  pointer.String("_text_match:desc,created_at:desc"),
		Page:    pointer.Int(offset/limit + 1),
		PerPage: pointer.Int(limit),
	}
	if params.ProjectID != "" {
		searchParams.FilterBy = pointer.String(projectFilter(params.ProjectID))
	}
	return searchParams
}

// projectFilter builds an exact-match filter. Backticks delimit the value
// so ids cannot inject filter syntax.
func projectFilter(projectID string) string {
	return fmt.Sprintf("project_id:=`%s`", strings.ReplaceAll(projectID, "`", ""))
}
