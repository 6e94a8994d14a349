package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

const mailgunProviderName = "mailgun"

// MailgunSender sends email through the Mailgun messages API
type MailgunSender struct {
	apiKey     string
	domain     string
	httpClient *http.Client
	baseURL    string
}

// NewMailgunSender creates a Mailgun sender. baseURL selects the region
// (https://api.mailgun.net or https://api.eu.mailgun.net).
func NewMailgunSender(apiKey, domain, baseURL string) *MailgunSender {
	if baseURL == "" {
		baseURL = "https://api.mailgun.net"
	}
	return &MailgunSender{
		apiKey:     apiKey,
		domain:     domain,
		httpClient: newHTTPClient(),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type mailgunResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Name returns the provider name
func (s *MailgunSender) Name() string {
	return mailgunProviderName
}

// Send posts msg as a form to /v3/{domain}/messages using basic auth
func (s *MailgunSender) Send(ctx context.Context, msg entities.EmailMessage) (string, error) {
	if s.apiKey == "" {
		return "", &MissingCredentialError{Provider: mailgunProviderName, Variable: "MAILGUN_API_KEY"}
	}
	if s.domain == "" {
		return "", &MissingCredentialError{Provider: mailgunProviderName, Variable: "MAILGUN_DOMAIN"}
	}

	form := url.Values{}
	form.Set("from", msg.From)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.HTML)
	if msg.Text != "" {
		form.Set("text", msg.Text)
	}

	endpoint := fmt.Sprintf("%s/v3/%s/messages", s.baseURL, url.PathEscape(s.domain))
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("mailgun: failed to create request: %w", err)
	}
	req.SetBasicAuth("api", s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, _, err := doRequest(ctx, s.httpClient, mailgunProviderName, req)
	if err != nil {
		return "", err
	}

	var resp mailgunResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("mailgun: failed to unmarshal response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("mailgun: no message ID in response")
	}
	return resp.ID, nil
}
