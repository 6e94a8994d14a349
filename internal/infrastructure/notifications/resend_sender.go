package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

const resendProviderName = "resend"

// ResendSender sends email through the Resend API
type ResendSender struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewResendSender creates a Resend sender. An empty apiKey is accepted here
// and reported on every Send.
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{
		apiKey:     apiKey,
		httpClient: newHTTPClient(),
		baseURL:    "https://api.resend.com",
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// Name returns the provider name
func (s *ResendSender) Name() string {
	return resendProviderName
}

// Send posts msg to /emails and returns the Resend email id
func (s *ResendSender) Send(ctx context.Context, msg entities.EmailMessage) (string, error) {
	if s.apiKey == "" {
		return "", &MissingCredentialError{Provider: resendProviderName, Variable: "RESEND_API_KEY"}
	}

	payload, err := json.Marshal(resendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("resend: failed to marshal message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("resend: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, _, err := doRequest(ctx, s.httpClient, resendProviderName, req)
	if err != nil {
		return "", err
	}

	var resp resendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("resend: failed to unmarshal response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("resend: no message ID in response")
	}
	return resp.ID, nil
}
