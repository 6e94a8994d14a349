package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

// AnalyticsComputer produces the feedback aggregate for an optional project.
type AnalyticsComputer interface {
	Compute(ctx context.Context, projectID *string) (*entities.FeedbackAnalytics, error)
}

// AnalyticsHandler serves the dashboard aggregate.
type AnalyticsHandler struct {
	service AnalyticsComputer
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service AnalyticsComputer) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// GetAnalytics handles GET /api/analytics?projectId=
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	projectID := optionalString(strings.TrimSpace(r.URL.Query().Get("projectId")))

	result, err := h.service.Compute(r.Context(), projectID)
	if err != nil {
		respondWithAppError(w, r, err, "failed to compute analytics")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
