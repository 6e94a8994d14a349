package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

const sendGridProviderName = "sendgrid"

// SendGridSender sends email through the SendGrid v3 Mail Send API
type SendGridSender struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewSendGridSender creates a SendGrid sender
func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{
		apiKey:     apiKey,
		httpClient: newHTTPClient(),
		baseURL:    "https://api.sendgrid.com",
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []struct {
		To []sendGridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendGridAddress   `json:"from"`
	Subject string            `json:"subject"`
	Content []sendGridContent `json:"content"`
}

// Name returns the provider name
func (s *SendGridSender) Name() string {
	return sendGridProviderName
}

// Send posts msg to /v3/mail/send. SendGrid answers 202 with an empty body
// and reports the message id in the X-Message-Id header.
func (s *SendGridSender) Send(ctx context.Context, msg entities.EmailMessage) (string, error) {
	if s.apiKey == "" {
		return "", &MissingCredentialError{Provider: sendGridProviderName, Variable: "SENDGRID_API_KEY"}
	}

	request := sendGridRequest{
		From:    parseSendGridAddress(msg.From),
		Subject: msg.Subject,
	}
	request.Personalizations = make([]struct {
		To []sendGridAddress `json:"to"`
	}, 1)
	request.Personalizations[0].To = []sendGridAddress{{Email: msg.To}}

	// SendGrid requires text/plain before text/html.
	if msg.Text != "" {
		request.Content = append(request.Content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	request.Content = append(request.Content, sendGridContent{Type: "text/html", Value: msg.HTML})

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("sendgrid: failed to marshal message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sendgrid: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	_, header, err := doRequest(ctx, s.httpClient, sendGridProviderName, req)
	if err != nil {
		return "", err
	}

	if id := header.Get("X-Message-Id"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("sendgrid: no message ID in response")
}

func parseSendGridAddress(from string) sendGridAddress {
	if addr, err := mail.ParseAddress(from); err == nil {
		return sendGridAddress{Email: addr.Address, Name: addr.Name}
	}
	return sendGridAddress{Email: from}
}
