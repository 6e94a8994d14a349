package notifications

import (
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/pkg/config"
)

// BuildProviders returns the email providers named in cfg.Providers, in that
// order. Providers without credentials are still included; they fail at send
// time and the dispatcher moves on.
func BuildProviders(cfg config.EmailConfig) []providers.EmailProvider {
	chain := make([]providers.EmailProvider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		var provider providers.EmailProvider
		missing := ""

		switch name {
		case "resend":
			provider = NewResendSender(cfg.ResendAPIKey)
			if cfg.ResendAPIKey == "" {
				missing = "RESEND_API_KEY"
			}
		case "sendgrid":
			provider = NewSendGridSender(cfg.SendGridAPIKey)
			if cfg.SendGridAPIKey == "" {
				missing = "SENDGRID_API_KEY"
			}
		case "mailgun":
			provider = NewMailgunSender(cfg.MailgunAPIKey, cfg.MailgunDomain, cfg.MailgunBaseURL)
			if cfg.MailgunAPIKey == "" || cfg.MailgunDomain == "" {
				missing = "MAILGUN_API_KEY/MAILGUN_DOMAIN"
			}
		default:
			log.Warn().Str("provider", name).Msg("unknown email provider ignored")
			continue
		}

		if missing != "" {
			log.Warn().Str("provider", name).Str("variable", missing).Msg("email provider has no credentials and will fail at send time")
		}
		chain = append(chain, provider)
	}
	return chain
}
