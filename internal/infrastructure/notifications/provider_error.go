package notifications

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBodyBytes  = 2048
)

// ProviderError is returned when a provider answers with a non-2xx status.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// MissingCredentialError is returned before any request is made when a
// provider's required configuration is absent.
type MissingCredentialError struct {
	Provider string
	Variable string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Provider, e.Variable)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// doRequest sends req and returns the response body for 2xx answers. Any
// other status becomes a ProviderError carrying a truncated body.
func doRequest(ctx context.Context, client *http.Client, provider string, req *http.Request) ([]byte, http.Header, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to send request: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to read response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
		return nil, nil, &ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
		}
	}

	return body, resp.Header, nil
}
