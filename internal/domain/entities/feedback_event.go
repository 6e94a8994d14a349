package entities

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackEventType names the change carried by a FeedbackEvent
type FeedbackEventType string

const (
	FeedbackEventCreated        FeedbackEventType = "feedback.created"
	FeedbackEventDeleted        FeedbackEventType = "feedback.deleted"
	FeedbackEventProjectChanged FeedbackEventType = "project.changed"
)

// FeedbackEvent is published on the event bus after a committed write.
type FeedbackEvent struct {
	ID         string            `json:"id"`
	Type       FeedbackEventType `json:"type"`
	FeedbackID string            `json:"feedbackId,omitempty"`
	ProjectID  *string           `json:"projectId,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewFeedbackEvent creates an event stamped with the current time
func NewFeedbackEvent(eventType FeedbackEventType, feedbackID string, projectID *string) *FeedbackEvent {
	return &FeedbackEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		FeedbackID: feedbackID,
		ProjectID:  projectID,
		Timestamp:  time.Now().UTC(),
	}
}
