package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	tsclient "github.com/zatekoja/feedbackhub/internal/infrastructure/clients/typesense"
)

func TestBuildDocument(t *testing.T) {
	projectID := "p-1"
	rating := 4
	created := time.Date(2026, 10, 19, 14, 22, 33, 0, time.UTC)

	doc := buildDocument(&entities.Feedback{
		ID:        "f-1",
		ProjectID: &projectID,
		Message:   "Checkout is slow",
		Rating:    &rating,
		CreatedAt: created,
	})

	assert.Equal(t, map[string]any{
		"id":         "f-1",
		"message":    "Checkout is slow",
		"project_id": "p-1",
		"rating":     4,
		"created_at": created.Unix(),
	}, doc)
}

func TestBuildSearchParams(t *testing.T) {
	params := buildSearchParams(repositories.FeedbackSearchParams{
		Query:     "  slow ",
		ProjectID: "p`1",
		Limit:     10,
		Offset:    20,
	})

	assert.Equal(t, "slow", *params.Q)
	assert.Equal(t, "project_id:=`p1`", *params.FilterBy)
	assert.Equal(t, 3, *params.Page)
	assert.Equal(t, 10, *params.PerPage)

	params = buildSearchParams(repositories.FeedbackSearchParams{Limit: 1000})
	assert.Equal(t, "*", *params.Q)
	assert.Nil(t, params.FilterBy)
	assert.Equal(t, maxSearchLimit, *params.PerPage)
}

func TestTypesenseAdapter_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/feedback/documents/search", r.URL.Path)
		assert.Equal(t, "slow", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"found":12,"page":1,"hits":[{"document":{"id":"f-2","message":"slow"}},{"document":{"id":"f-1","message":"so slow"}}]}`))
	}))
	defer server.Close()

	client := tsclient.NewClientFromTypesense(typesense.NewClient(typesense.WithServer(server.URL), typesense.WithAPIKey("key")))
	adapter := NewTypesenseAdapter(client)

	ids, total, err := adapter.Search(context.Background(), repositories.FeedbackSearchParams{Query: "slow"})
	require.NoError(t, err)
	assert.Equal(t, []string{"f-2", "f-1"}, ids)
	assert.Equal(t, 12, total)
}

func TestTypesenseAdapter_DeleteMissingDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Could not find a document with id: f-9"}`))
	}))
	defer server.Close()

	client := tsclient.NewClientFromTypesense(typesense.NewClient(typesense.WithServer(server.URL), typesense.WithAPIKey("key")))

	assert.NoError(t, NewTypesenseAdapter(client).Delete(context.Background(), "f-9"))
}
