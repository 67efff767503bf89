// Package notify delivers completed audit reports over SMTP.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/scan"
)

// SMTPConfig holds the mail relay settings. The password travels only to
// the SMTP client and is never logged.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer implements scan.Notifier over an authenticated SMTP relay using
// STARTTLS.
type Mailer struct {
	cfg    SMTPConfig
	logger *zap.SugaredLogger
}

// NewMailer validates the relay settings and returns a mailer.
func NewMailer(cfg SMTPConfig, logger *zap.SugaredLogger) (*Mailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and sender address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, logger: logger}, nil
}

// SendReport mails the scan summary with every persisted artifact attached.
func (m *Mailer) SendReport(ctx context.Context, sc *scan.Scan, recipients []string, artifacts map[string]string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients given")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf("AD Security Audit Report - %s", sc.Domain()))
	msg.SetBodyString(mail.TypeTextPlain, summaryBody(sc))

	for _, location := range artifacts {
		msg.AttachFile(location)
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send report mail: %w", err)
	}

	m.logger.Infow("report mailed",
		"scan", sc.ID(),
		"recipients", len(recipients),
		"attachments", len(artifacts),
	)
	return nil
}

// summaryBody is the plain-text digest in the mail body; the attachments
// carry the full reports.
func summaryBody(sc *scan.Scan) string {
	stats := sc.Statistics()
	var b strings.Builder
	fmt.Fprintf(&b, "Active Directory security audit completed.\n\n")
	fmt.Fprintf(&b, "Scan:       %s\n", sc.ID())
	fmt.Fprintf(&b, "Server:     %s\n", sc.Server())
	fmt.Fprintf(&b, "Domain:     %s\n", sc.Domain())
	fmt.Fprintf(&b, "Status:     %s\n", sc.Status())
	if sc.Error() != "" {
		fmt.Fprintf(&b, "Error:      %s\n", sc.Error())
	}
	fmt.Fprintf(&b, "Duration:   %s\n\n", sc.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Risk score: %d/100\n", stats.RiskScore)
	fmt.Fprintf(&b, "Findings:   %d total (critical %d, high %d, medium %d, low %d)\n",
		stats.Total, stats.CriticalCount, stats.HighCount, stats.MediumCount, stats.LowCount)
	b.WriteString("\nThe full report is attached in text, CSV and HTML form.\n")
	return b.String()
}
