package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/pkg/config"
)

func testMessage() entities.EmailMessage {
	return entities.EmailMessage{
		To:      "owner@example.com",
		From:    "FeedbackHub <notifications@example.com>",
		Subject: "New feedback for Acme [20261019T142233Z-0042]",
		HTML:    "<p>Great product</p>",
		Text:    "Great product",
	}
}

func TestResendSender_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

		var payload resendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"owner@example.com"}, payload.To)
		assert.Equal(t, "<p>Great product</p>", payload.HTML)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re-msg-1"}`))
	}))
	defer server.Close()

	sender := NewResendSender("re_test")
	sender.baseURL = server.URL

	id, err := sender.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "re-msg-1", id)
	assert.Equal(t, "resend", sender.Name())
}

func TestResendSender_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer server.Close()

	sender := NewResendSender("re_test")
	sender.baseURL = server.URL

	_, err := sender.Send(context.Background(), testMessage())

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "resend", providerErr.Provider)
	assert.Equal(t, http.StatusUnprocessableEntity, providerErr.StatusCode)
	assert.Contains(t, providerErr.Body, "invalid from")
}

func TestSendGridSender_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))

		var payload sendGridRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Personalizations, 1)
		assert.Equal(t, "owner@example.com", payload.Personalizations[0].To[0].Email)
		assert.Equal(t, "notifications@example.com", payload.From.Email)
		assert.Equal(t, "FeedbackHub", payload.From.Name)
		require.Len(t, payload.Content, 2)
		assert.Equal(t, "text/plain", payload.Content[0].Type)
		assert.Equal(t, "text/html", payload.Content[1].Type)

		w.Header().Set("X-Message-Id", "sg-msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSendGridSender("SG.test")
	sender.baseURL = server.URL

	id, err := sender.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "sg-msg-1", id)
}

func TestSendGridSender_MissingAPIKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	sender := NewSendGridSender("")
	sender.baseURL = server.URL

	_, err := sender.Send(context.Background(), testMessage())

	var missing *MissingCredentialError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "SENDGRID_API_KEY", missing.Variable)
	assert.False(t, called)
}

func TestMailgunSender_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mg.example.com/messages", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "api", user)
		assert.Equal(t, "key-test", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "owner@example.com", r.PostForm.Get("to"))
		assert.Equal(t, "Great product", r.PostForm.Get("text"))

		_, _ = w.Write([]byte(`{"id":"<mg-msg-1@mg.example.com>","message":"Queued. Thank you."}`))
	}))
	defer server.Close()

	sender := NewMailgunSender("key-test", "mg.example.com", server.URL+"/")

	id, err := sender.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "<mg-msg-1@mg.example.com>", id)
}

func TestMailgunSender_MissingDomain(t *testing.T) {
	sender := NewMailgunSender("key-test", "", "")

	_, err := sender.Send(context.Background(), testMessage())
	assert.ErrorContains(t, err, "MAILGUN_DOMAIN")
}

func TestProviderError_TruncatesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(make([]byte, maxErrorBodyBytes*2))
	}))
	defer server.Close()

	sender := NewResendSender("re_test")
	sender.baseURL = server.URL

	_, err := sender.Send(context.Background(), testMessage())

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.LessOrEqual(t, len(providerErr.Body), maxErrorBodyBytes)
}

func TestBuildProviders_KeepsConfiguredOrder(t *testing.T) {
	chain := BuildProviders(config.EmailConfig{
		Providers:    []string{"mailgun", "resend", "carrier-pigeon", "sendgrid"},
		ResendAPIKey: "re_123",
	})

	names := make([]string, len(chain))
	for i, provider := range chain {
		names[i] = provider.Name()
	}
	assert.Equal(t, []string{"mailgun", "resend", "sendgrid"}, names)
}
