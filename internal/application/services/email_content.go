package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

const (
	subjectStampLayout = "20060102T150405Z"
	filledStar         = "★"
	emptyStar          = "☆"
	noRatingText       = "No rating provided"
	anonymousSubmitter = "Anonymous"
)

var feedbackEmailTemplate = template.Must(template.New("feedback").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; color: #1f2933; max-width: 600px; margin: 0 auto;">
  <h2 style="margin-bottom: 4px;">New feedback for {{.ProjectName}}</h2>
  {{- if .ProjectDomain}}
  <p style="margin-top: 0; color: #616e7c;">{{.ProjectDomain}}</p>
  {{- end}}
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td style="padding: 6px 0; color: #616e7c;">From</td><td style="padding: 6px 0;">{{.Submitter}}</td></tr>
    <tr><td style="padding: 6px 0; color: #616e7c;">Rating</td><td style="padding: 6px 0;">{{if .Stars}}<span style="color: #f7b500; font-size: 18px;">{{.Stars}}</span> {{end}}{{.RatingCaption}}</td></tr>
    <tr><td style="padding: 6px 0; color: #616e7c;">Received</td><td style="padding: 6px 0;">{{.Received}}</td></tr>
  </table>
  <blockquote style="border-left: 4px solid #e4e7eb; margin: 16px 0; padding: 8px 16px; white-space: pre-wrap;">{{.Message}}</blockquote>
  {{- if .Metadata}}
  <h3>Metadata</h3>
  <ul>
  {{- range .Metadata}}
    <li><strong>{{.Key}}</strong>: {{.Value}}</li>
  {{- end}}
  </ul>
  {{- end}}
  {{- if .DashboardLink}}
  <p><a href="{{.DashboardLink}}" style="display: inline-block; padding: 10px 18px; background: #3e4c59; color: #ffffff; text-decoration: none; border-radius: 4px;">View in dashboard</a></p>
  {{- end}}
</body>
</html>
`))

type metadataEntry struct {
	Key   string
	Value string
}

type feedbackEmailView struct {
	ProjectName   string
	ProjectDomain string
	Submitter     string
	Stars         string
	RatingCaption string
	Received      string
	Message       string
	Metadata      []metadataEntry
	DashboardLink string
}

// EmailContentBuilder renders feedback notifications. It performs no I/O.
type EmailContentBuilder struct {
	dashboardURL string
	randN        func(n int) int
	html         *template.Template
}

// NewEmailContentBuilder creates a builder. dashboardURL may be empty, in
// which case no dashboard link is rendered.
func NewEmailContentBuilder(dashboardURL string) *EmailContentBuilder {
	return &EmailContentBuilder{
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		randN:        rand.IntN,
		html:         feedbackEmailTemplate,
	}
}

// Build renders subject, HTML body and plain-text body for data
func (b *EmailContentBuilder) Build(data entities.FeedbackEmailData) (entities.EmailContent, error) {
	view := feedbackEmailView{
		ProjectName:   data.ProjectName,
		ProjectDomain: data.ProjectDomain,
		Submitter:     formatSubmitter(data.Name, data.Email),
		RatingCaption: ratingCaption(data.Rating),
		Received:      data.CreatedAt.UTC().Format("Jan 2, 2006 15:04 MST"),
		Message:       data.Message,
		Metadata:      metadataEntries(data.Metadata),
		DashboardLink: b.dashboardLink(data.FeedbackID),
	}
	if data.Rating != nil {
		view.Stars = ratingStars(*data.Rating)
	}

	var html bytes.Buffer
	if err := b.html.Execute(&html, view); err != nil {
		return entities.EmailContent{}, fmt.Errorf("render feedback email: %w", err)
	}

	return entities.EmailContent{
		Subject: b.subject(data),
		HTML:    html.String(),
		Text:    renderText(view),
	}, nil
}

// subject carries a timestamp and random suffix so mail clients do not
// thread separate submissions together.
func (b *EmailContentBuilder) subject(data entities.FeedbackEmailData) string {
	stamp := data.CreatedAt.UTC().Format(subjectStampLayout)
	return fmt.Sprintf("New feedback for %s [%s-%04d]", data.ProjectName, stamp, b.randN(10000))
}

func (b *EmailContentBuilder) dashboardLink(feedbackID string) string {
	if b.dashboardURL == "" || feedbackID == "" {
		return ""
	}
	return b.dashboardURL + "/dashboard/feedback/" + feedbackID
}

func renderText(view feedbackEmailView) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "New feedback for %s\n", view.ProjectName)
	if view.ProjectDomain != "" {
		fmt.Fprintf(&sb, "%s\n", view.ProjectDomain)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "From: %s\n", view.Submitter)
	if view.Stars != "" {
		fmt.Fprintf(&sb, "Rating: %s %s\n", view.Stars, view.RatingCaption)
	} else {
		fmt.Fprintf(&sb, "Rating: %s\n", view.RatingCaption)
	}
	fmt.Fprintf(&sb, "Received: %s\n\n", view.Received)
	fmt.Fprintf(&sb, "%s\n", view.Message)

	if len(view.Metadata) > 0 {
		sb.WriteString("\nMetadata:\n")
		for _, entry := range view.Metadata {
			fmt.Fprintf(&sb, "- %s: %s\n", entry.Key, entry.Value)
		}
	}
	if view.DashboardLink != "" {
		fmt.Fprintf(&sb, "\nView in dashboard: %s\n", view.DashboardLink)
	}
	return sb.String()
}

func formatSubmitter(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case name != "":
		return name
	case email != "":
		return email
	default:
		return anonymousSubmitter
	}
}

func ratingStars(rating int) string {
	rating = max(entities.MinRating-1, min(rating, entities.MaxRating))
	return strings.Repeat(filledStar, rating) + strings.Repeat(emptyStar, entities.MaxRating-rating)
}

func ratingCaption(rating *int) string {
	if rating == nil {
		return noRatingText
	}
	return fmt.Sprintf("%d out of %d stars", *rating, entities.MaxRating)
}

// metadataEntries flattens metadata into sorted key/value pairs. Nested
// values are rendered as compact JSON.
func metadataEntries(metadata entities.Metadata) []metadataEntry {
	if len(metadata) == 0 {
		return nil
	}

	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]metadataEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, metadataEntry{Key: key, Value: stringifyMetadata(metadata[key])})
	}
	return entries
}

func stringifyMetadata(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
