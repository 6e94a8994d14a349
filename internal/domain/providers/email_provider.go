package providers

import (
	"context"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
)

// EmailProvider delivers one email through an external service. Send
// returns the provider's message id on success.
type EmailProvider interface {
	Name() string
	Send(ctx context.Context, msg entities.EmailMessage) (string, error)
}
