package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

// FeedbackBrowser reads, searches and removes stored feedback.
type FeedbackBrowser interface {
	Get(ctx context.Context, id string) (*entities.Feedback, error)
	List(ctx context.Context, filter repositories.FeedbackFilter, opts repositories.ListOptions) ([]*entities.Feedback, int, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, params repositories.FeedbackSearchParams) ([]*entities.Feedback, int, error)
}

// AdminFeedbackHandler serves feedback listings to administrators
type AdminFeedbackHandler struct {
	service FeedbackBrowser
}

// NewAdminFeedbackHandler creates a new admin feedback handler
func NewAdminFeedbackHandler(service FeedbackBrowser) *AdminFeedbackHandler {
	return &AdminFeedbackHandler{service: service}
}

type feedbackPage struct {
	Feedback []*entities.Feedback `json:"feedback"`
	Total    int                  `json:"total"`
}

// ListFeedback handles GET /api/admin/feedback?projectId=&rating=&limit=&offset=
// projectId=unassigned selects feedback without a project.
func (h *AdminFeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repositories.FeedbackFilter{}
	switch projectID := strings.TrimSpace(query.Get("projectId")); projectID {
	case "":
	case "unassigned":
		filter.Unassigned = true
	default:
		filter.ProjectID = &projectID
	}

	rating, ok, err := queryInt(r, "rating")
	if err != nil {
		respondWithAppError(w, r, err, "invalid query")
		return
	}
	if ok {
		filter.Rating = &rating
	}

	opts, err := pageOptions(r)
	if err != nil {
		respondWithAppError(w, r, err, "invalid query")
		return
	}

	items, total, err := h.service.List(r.Context(), filter, opts)
	if err != nil {
		respondWithAppError(w, r, err, "failed to list feedback")
		return
	}
	respondWithJSON(w, http.StatusOK, feedbackPage{Feedback: items, Total: total})
}

// GetFeedback handles GET /api/admin/feedback/{id}
func (h *AdminFeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to get feedback")
		return
	}
	respondWithJSON(w, http.StatusOK, feedback)
}

// DeleteFeedback handles DELETE /api/admin/feedback/{id}
func (h *AdminFeedbackHandler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err, "failed to delete feedback")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchFeedback handles GET /api/feedback/search?q=&projectId=&limit=&offset=
func (h *AdminFeedbackHandler) SearchFeedback(w http.ResponseWriter, r *http.Request) {
	opts, err := pageOptions(r)
	if err != nil {
		respondWithAppError(w, r, err, "invalid query")
		return
	}

	params := repositories.FeedbackSearchParams{
		Query:     strings.TrimSpace(r.URL.Query().Get("q")),
		ProjectID: strings.TrimSpace(r.URL.Query().Get("projectId")),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}

	items, total, err := h.service.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err, "search failed")
		return
	}
	respondWithJSON(w, http.StatusOK, feedbackPage{Feedback: items, Total: total})
}

func pageOptions(r *http.Request) (repositories.ListOptions, error) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		return repositories.ListOptions{}, err
	}
	offset, _, err := queryInt(r, "offset")
	if err != nil {
		return repositories.ListOptions{}, err
	}
	if limit < 0 || offset < 0 {
		return repositories.ListOptions{}, apperrors.NewValidationError("limit and offset must not be negative")
	}
	return repositories.ListOptions{Limit: limit, Offset: offset}, nil
}
