// Package mailer sends internal lead alert emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/relaylabs/relay-gateway/internal/config"
	"github.com/relaylabs/relay-gateway/internal/domain"
	"github.com/wneessen/go-mail"
)

// LeadAlert is the payload for an internal lead notification.
type LeadAlert struct {
	SessionID string
	Score     int
	Signals   []string
	Fields    domain.LeadFields
	Preview   string
	PagePath  string
}

// Notifier sends lead alerts. SendLeadAlert returns true only on a confirmed
// successful send; callers use that to decide whether to latch the
// email-sent marker (retry on failure, suppress on success).
type Notifier interface {
	SendLeadAlert(ctx context.Context, alert LeadAlert) bool
}

// SMTPMailer implements Notifier over SMTP. When SMTP is not configured the
// mailer is disabled and every send reports failure, leaving the latch unset.
type SMTPMailer struct {
	client *mail.Client
	from   string
	to     string
}

// New builds an SMTP mailer from configuration. A mailer with no usable SMTP
// settings is still returned; it skips sends and reports them as failed.
func New(cfg *config.Config) *SMTPMailer {
	m := &SMTPMailer{
		from: cfg.SMTP.From,
		to:   cfg.Lead.AlertEmail,
	}
	if !cfg.MailConfigured() {
		return m
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTP.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTP.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.SMTP.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTP.User),
			mail.WithPassword(cfg.SMTP.Pass),
		)
	}

	client, err := mail.NewClient(cfg.SMTP.Host, opts...)
	if err != nil {
		slog.Warn("SMTP client init failed, lead alerts disabled", "error", err)
		return m
	}
	m.client = client
	return m
}

// SendLeadAlert sends one alert email. Failures are logged, never raised.
func (m *SMTPMailer) SendLeadAlert(ctx context.Context, alert LeadAlert) bool {
	if m.client == nil || m.to == "" {
		slog.Warn("SMTP not configured, skipping lead alert", "session_id", alert.SessionID)
		return false
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		slog.Error("lead alert: invalid from address", "error", err)
		return false
	}
	if err := msg.To(m.to); err != nil {
		slog.Error("lead alert: invalid to address", "error", err)
		return false
	}
	msg.Subject(fmt.Sprintf("Relay lead flagged (score %d)", alert.Score))
	msg.SetBodyString(mail.TypeTextPlain, formatLeadAlert(alert))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("lead alert send failed", "session_id", alert.SessionID, "error", err)
		return false
	}

	slog.Info("lead alert sent", "session_id", alert.SessionID, "score", alert.Score)
	return true
}

func formatLeadAlert(alert LeadAlert) string {
	signals := strings.Join(alert.Signals, ", ")
	if signals == "" {
		signals = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", alert.SessionID)
	fmt.Fprintf(&b, "Score: %d\n", alert.Score)
	fmt.Fprintf(&b, "Signals: %s\n", signals)
	b.WriteString("\n")
	if alert.Fields.BusinessName != "" {
		fmt.Fprintf(&b, "Business: %s\n", alert.Fields.BusinessName)
	}
	if alert.Fields.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", alert.Fields.Email)
	}
	if alert.Fields.WebsiteURL != "" {
		fmt.Fprintf(&b, "Website: %s\n", alert.Fields.WebsiteURL)
	}
	if alert.PagePath != "" {
		fmt.Fprintf(&b, "Page: %s\n", alert.PagePath)
	}
	if alert.Preview != "" {
		b.WriteString("\nMessage preview:\n")
		b.WriteString(alert.Preview)
		b.WriteString("\n")
	}
	return b.String()
}
