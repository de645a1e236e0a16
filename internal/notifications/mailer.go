package notifications

import (
	"context"
	"fmt"

	"geranium/pkg/logger"

	"github.com/wneessen/go-mail"
)

type Email struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

type smtpMailer struct {
	client   *mail.Client
	from     string
	fromName string
}

func NewSMTPMailer(cfg SMTPConfig) (Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize smtp client: %w", err)
	}
	return &smtpMailer{client: client, from: cfg.Username, fromName: cfg.FromName}, nil
}

func (m *smtpMailer) Send(ctx context.Context, email Email) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

type logMailer struct {
	log *logger.Logger
}

// NewLogMailer returns a mailer that only logs. Used when SMTP is not
// configured.
func NewLogMailer(log *logger.Logger) Mailer {
	return &logMailer{log: log}
}

func (m *logMailer) Send(_ context.Context, email Email) error {
	m.log.Info("Email (SMTP disabled)",
		"to", email.To,
		"subject", email.Subject,
		"bytes", len(email.HTML),
	)
	return nil
}
