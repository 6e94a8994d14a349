package entities

import "time"

// Project groups feedback submitted from one site. APIKey identifies the
// project on ingestion and only changes through explicit regeneration.
type Project struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Domain        string    `json:"domain" db:"domain"`
	Description   string    `json:"description,omitempty" db:"description"`
	APIKey        string    `json:"apiKey" db:"api_key"`
	IsActive      bool      `json:"isActive" db:"is_active"`
	FeedbackCount int       `json:"feedbackCount" db:"feedback_count"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// ProjectUpdate carries the administrative changes to a project. Nil fields
// are left untouched.
type ProjectUpdate struct {
	Name        *string `json:"name"`
	Domain      *string `json:"domain"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}
