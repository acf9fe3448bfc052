// Package mailer sends transactional emails. Delivery is fire-and-forget:
// failures are logged and counted, never returned to request handlers.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// DefaultHost is the SendGrid API origin.
const DefaultHost = "https://api.sendgrid.com"

// Message is a single-recipient email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one message synchronously.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridMailer delivers through the SendGrid v3 mail API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer targets host, which is DefaultHost outside tests.
func NewSendGridMailer(apiKey, host, fromAddress, fromName string) *SendGridMailer {
	if host == "" {
		host = DefaultHost
	}
	req := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	return &SendGridMailer{
		client: &sendgrid.Client{Request: req},
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	email := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail("", msg.To), msg.Body, "<p>"+msg.Body+"</p>")
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SendGrid key is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer returns a LogMailer writing to l.
func NewLogMailer(l *slog.Logger) *LogMailer {
	return &LogMailer{logger: l}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "email (not sent)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
