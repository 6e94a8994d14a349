package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmailConfig(t *testing.T) {
	t.Setenv("EMAIL_PROVIDERS", " SendGrid , resend")
	t.Setenv("NOTIFICATION_EMAIL", "owner@example.com")
	t.Setenv("DASHBOARD_URL", "https://dash.example.com/")
	t.Setenv("NOTIFICATION_TIMEOUT", "10s")
	t.Setenv("MAILGUN_DOMAIN", "mg.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"sendgrid", "resend"}, cfg.Email.Providers)
	assert.Equal(t, "owner@example.com", cfg.Email.NotifyTo)
	assert.Equal(t, "https://dash.example.com", cfg.Email.DashboardURL)
	assert.Equal(t, 10*time.Second, cfg.Email.Timeout)
	assert.Equal(t, "mg.example.com", cfg.Email.MailgunDomain)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EMAIL_PROVIDERS", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DB_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"resend", "sendgrid", "mailgun"}, cfg.Email.Providers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "feedbackhub", cfg.Database.Database)
	assert.Equal(t, 30*time.Second, cfg.Email.Timeout)
	assert.Equal(t, "https://api.mailgun.net", cfg.Email.MailgunBaseURL)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("EMAIL_PROVIDERS", "resend,pigeon")

	_, err := Load()
	assert.ErrorContains(t, err, "pigeon")
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "fb", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=fb sslmode=require", cfg.DatabaseDSN())
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://B.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://B.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_IngestionProtection(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.App.DedupWindow)
	assert.Empty(t, cfg.Server.TrustedProxies)

	t.Setenv("FEEDBACK_DEDUP_WINDOW", "24h")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.App.DedupWindow)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.10"}, cfg.Server.TrustedProxies)
}
