package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
)

// pagedStore serves List from a fixed slice and fails everything else.
type pagedStore struct {
	repositories.FeedbackRepository
	items   []*entities.Feedback
	listErr error
	pages   int
}

func (s *pagedStore) List(ctx context.Context, filter repositories.FeedbackFilter, opts repositories.ListOptions) ([]*entities.Feedback, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	s.pages++
	start := min(opts.Offset, len(s.items))
	end := min(start+opts.Limit, len(s.items))
	return s.items[start:end], len(s.items), nil
}

type recordingIndex struct {
	indexed []string
	failOn  map[string]bool
}

func (i *recordingIndex) Index(ctx context.Context, feedback *entities.Feedback) error {
	if i.failOn[feedback.ID] {
		return errors.New("typesense unavailable")
	}
	i.indexed = append(i.indexed, feedback.ID)
	return nil
}

func (i *recordingIndex) Delete(ctx context.Context, id string) error { return nil }

func (i *recordingIndex) Search(ctx context.Context, params repositories.FeedbackSearchParams) ([]string, int, error) {
	return nil, 0, nil
}

func TestReindex_PagesThroughStore(t *testing.T) {
	store := &pagedStore{}
	for i := 0; i < 450; i++ {
		store.items = append(store.items, &entities.Feedback{ID: fmt.Sprintf("fb-%03d", i), Message: "m"})
	}
	index := &recordingIndex{failOn: map[string]bool{"fb-007": true}}

	indexed, failed, err := Reindex(context.Background(), store, index)

	require.NoError(t, err)
	assert.Equal(t, 449, indexed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, store.pages)
	assert.NotContains(t, index.indexed, "fb-007")
}

func TestReindex_StopsOnStoreError(t *testing.T) {
	store := &pagedStore{listErr: errors.New("connection reset")}

	_, _, err := Reindex(context.Background(), store, &recordingIndex{})

	assert.ErrorContains(t, err, "connection reset")
}

func TestReindex_EmptyStore(t *testing.T) {
	store := &pagedStore{}

	indexed, failed, err := Reindex(context.Background(), store, &recordingIndex{})

	require.NoError(t, err)
	assert.Zero(t, indexed)
	assert.Zero(t, failed)
	assert.Equal(t, 1, store.pages)
}
