package providers

import (
	"context"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

// EventBus publishes committed feedback and project changes to in-cluster
// subscribers. It is not a delivery queue: subscribers that are offline
// miss events.
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.FeedbackEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.FeedbackEvent, error)

	// Unsubscribe drops every local subscriber of a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelFeedback carries every feedback write
	EventChannelFeedback = "feedback:events"

	// EventChannelProjectPrefix prefixes project-specific channels
	EventChannelProjectPrefix = "project:"
)

// GetProjectChannel returns the channel name for a specific project
func GetProjectChannel(projectID string) string {
	return EventChannelProjectPrefix + projectID
}
