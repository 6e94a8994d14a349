package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

// TestNotifier sends a diagnostic email through the provider chain.
type TestNotifier interface {
	SendTest(ctx context.Context, to string) entities.EmailSendResult
	Providers() []string
}

// NotificationHandler exposes notification diagnostics to administrators.
type NotificationHandler struct {
	notifier TestNotifier
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifier TestNotifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

type testNotificationRequest struct {
	To string `json:"to"`
}

// SendTest handles POST /api/admin/notifications/test. The body is optional;
// without "to" the configured recipient is used. The dispatch result is the
// response either way.
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	var payload testNotificationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &payload); err != nil {
			respondWithAppError(w, r, err, "invalid request payload")
			return
		}
	}

	result := h.notifier.SendTest(r.Context(), strings.TrimSpace(payload.To))
	respondWithJSON(w, http.StatusOK, result)
}

// ListProviders handles GET /api/admin/notifications/providers
func (h *NotificationHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]string{
		"providers": h.notifier.Providers(),
	})
}
