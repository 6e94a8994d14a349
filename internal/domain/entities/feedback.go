package entities

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Metadata holds free-form submitter context. Values are JSON scalars or
// nested objects/arrays.
type Metadata map[string]any

// Feedback is a single user submission. Name, Email, Rating, Metadata and
// ProjectID are optional; unassigned feedback has a nil ProjectID.
type Feedback struct {
	ID        string    `json:"id" db:"id"`
	ProjectID *string   `json:"projectId" db:"project_id"`
	Name      string    `json:"name,omitempty" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Message   string    `json:"message" db:"message"`
	Rating    *int      `json:"rating" db:"rating"`
	Metadata  Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HasRating reports whether the submitter supplied a rating
func (f *Feedback) HasRating() bool {
	return f.Rating != nil
}

// ValidRating reports whether r lies in the accepted star range
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
