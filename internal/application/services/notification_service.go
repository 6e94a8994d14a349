package services

import (
	"context"
	"time"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
)

const (
	errNoProviders = "no email providers configured"
	errNoRecipient = "notification recipient not configured"
)

// NotificationConfig holds the addressing used for feedback notifications.
// AttemptTimeout bounds each provider call on its own, so a provider that
// hangs cannot use up the time of the ones after it. Zero leaves calls
// bounded only by the caller's context.
type NotificationConfig struct {
	From           string
	NotifyTo       string
	AttemptTimeout time.Duration
}

// NotificationService delivers email through an ordered chain of providers.
// The first provider that accepts a message wins; later providers are not
// called. There is no retry and nothing is persisted.
type NotificationService struct {
	providers []providers.EmailProvider
	content   *EmailContentBuilder
	cfg       NotificationConfig
	metrics   *observability.Metrics
}

// NewNotificationService creates a dispatcher over emailProviders in
// priority order. metrics may be nil.
func NewNotificationService(emailProviders []providers.EmailProvider, content *EmailContentBuilder, cfg NotificationConfig, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{
		providers: emailProviders,
		content:   content,
		cfg:       cfg,
		metrics:   metrics,
	}
}

// Providers returns the provider names in dispatch order
func (s *NotificationService) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Send tries each provider in order and returns on the first success. When
// every provider fails, the result carries only the last provider's error.
func (s *NotificationService) Send(ctx context.Context, msg entities.EmailMessage) entities.EmailSendResult {
	logger := observability.LoggerFromContext(ctx)

	if msg.From == "" {
		msg.From = s.cfg.From
	}
	if len(s.providers) == 0 {
		logger.Error().Str("to", msg.To).Msg(errNoProviders)
		observability.RecordEmailDispatch(ctx, s.metrics, "", false)
		return entities.EmailSendResult{Success: false, Error: errNoProviders}
	}

	var lastErr error
	for _, provider := range s.providers {
		start := time.Now()
		attemptCtx, cancel := s.attemptContext(ctx)
		messageID, err := provider.Send(attemptCtx, msg)
		cancel()
		observability.RecordEmailAttempt(ctx, s.metrics, provider.Name(), err == nil)

		if err == nil {
			logger.Info().
				Str("provider", provider.Name()).
				Str("message_id", messageID).
				Dur("duration", time.Since(start)).
				Msg("notification email sent")
			observability.RecordEmailDispatch(ctx, s.metrics, provider.Name(), true)
			return entities.EmailSendResult{
				Success:   true,
				Provider:  provider.Name(),
				MessageID: messageID,
			}
		}

		logger.Warn().
			Err(err).
			Str("provider", provider.Name()).
			Dur("duration", time.Since(start)).
			Msg("email provider failed, trying next")
		lastErr = err
	}

	logger.Error().Err(lastErr).Strs("providers", s.Providers()).Msg("all email providers failed")
	observability.RecordEmailDispatch(ctx, s.metrics, "", false)
	return entities.EmailSendResult{Success: false, Error: lastErr.Error()}
}

func (s *NotificationService) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.AttemptTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.AttemptTimeout)
}

// NotifyFeedback renders data and sends it to the configured recipient
func (s *NotificationService) NotifyFeedback(ctx context.Context, data entities.FeedbackEmailData) entities.EmailSendResult {
	logger := observability.LoggerFromContext(ctx)
	if s.cfg.NotifyTo == "" {
		logger.Warn().Str("feedback_id", data.FeedbackID).Msg("NOTIFICATION_EMAIL not set, skipping feedback notification")
		return entities.EmailSendResult{Success: false, Error: errNoRecipient}
	}

	content, err := s.content.Build(data)
	if err != nil {
		logger.Error().Err(err).Str("feedback_id", data.FeedbackID).Msg("failed to render feedback notification")
		return entities.EmailSendResult{Success: false, Error: err.Error()}
	}
	return s.Send(ctx, entities.EmailMessage{
		To:      s.cfg.NotifyTo,
		From:    s.cfg.From,
		Subject: content.Subject,
		HTML:    content.HTML,
		Text:    content.Text,
	})
}

// SendTest dispatches a short diagnostic message to to, or to the configured
// recipient when to is empty.
func (s *NotificationService) SendTest(ctx context.Context, to string) entities.EmailSendResult {
	if to == "" {
		to = s.cfg.NotifyTo
	}
	if to == "" {
		return entities.EmailSendResult{Success: false, Error: errNoRecipient}
	}

	sentAt := time.Now().UTC().Format(time.RFC3339)
	return s.Send(ctx, entities.EmailMessage{
		To:      to,
		From:    s.cfg.From,
		Subject: "FeedbackHub test notification",
		HTML:    "<p>This is a test notification from FeedbackHub sent at " + sentAt + ".</p>",
		Text:    "This is a test notification from FeedbackHub sent at " + sentAt + ".",
	})
}
