package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
)

const streamHeartbeat = 30 * time.Second

// StreamHandler pushes feedback events to dashboards over Server-Sent Events
type StreamHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler. eventBus may be nil when
// Redis is unavailable; streams then answer 503.
func NewStreamHandler(eventBus providers.EventBus) *StreamHandler {
	return &StreamHandler{eventBus: eventBus, heartbeat: streamHeartbeat}
}

// StreamFeedbackEvents handles GET /api/admin/feedback/stream?projectId=
// Without projectId every feedback and project change is streamed.
func (h *StreamHandler) StreamFeedbackEvents(w http.ResponseWriter, r *http.Request) {
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	channel := providers.EventChannelFeedback
	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if projectID != "" {
		channel = providers.GetProjectChannel(projectID)
	}

	logger := observability.LoggerFromContext(r.Context())
	events, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to event stream")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(eventType string, data interface{}) bool {
		if err := writeEvent(w, eventType, data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send("connected", map[string]interface{}{"channel": channel, "timestamp": time.Now().UTC()}) {
		return
	}
	logger.Debug().Str("channel", channel).Msg("event stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str("channel", channel).Msg("event stream client disconnected")
			return
		case <-ticker.C:
			if !send("heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()}) {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			if !send(string(event.Type), event) {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	return err
}
