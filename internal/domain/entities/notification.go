package entities

import "time"

// EmailMessage is one logical notification handed to the provider chain.
type EmailMessage struct {
	To      string
	From    string
	Subject string
	HTML    string
	Text    string
}

// EmailSendResult is the transient outcome of a single dispatch. Error holds
// only the last provider's failure when every provider failed.
type EmailSendResult struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FeedbackEmailData is the view of a new submission the content builder
// renders.
type FeedbackEmailData struct {
	FeedbackID    string
	ProjectID     string
	ProjectName   string
	ProjectDomain string
	Name          string
	Email         string
	Message       string
	Rating        *int
	Metadata      Metadata
	CreatedAt     time.Time
}

// EmailContent is the rendered form of a notification
type EmailContent struct {
	Subject string
	HTML    string
	Text    string
}
