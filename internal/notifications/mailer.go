package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Email struct {
	ToName   string
	ToEmail  string
	Subject  string
	Text     string
	HTML     string
	Category string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type MailerConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

// NewMailer returns a SendGrid mailer, or a console mailer when no API key is configured
func NewMailer(cfg MailerConfig, logger *slog.Logger) Mailer {
	if cfg.SendGridAPIKey == "" {
		return NewConsoleMailer(logger)
	}
	return &sendgridMailer{
		client:     sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		subjPrefix: "[" + cfg.FromName + "] ",
	}
}

type sendgridMailer struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

func (m *sendgridMailer) prepare(email Email) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + email.Subject
	p.AddTos(sgmail.NewEmail(email.ToName, email.ToEmail))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", email.Text))
	if email.HTML != "" {
		msg.AddContent(sgmail.NewContent("text/html", email.HTML))
	}
	if email.Category != "" {
		msg.AddCategories(email.Category)
	}
	return msg
}

func (m *sendgridMailer) Send(ctx context.Context, email Email) error {
	res, err := m.client.SendWithContext(ctx, m.prepare(email))
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleMailer logs messages instead of sending them and keeps them for inspection
type ConsoleMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Email
}

func NewConsoleMailer(logger *slog.Logger) *ConsoleMailer {
	return &ConsoleMailer{logger: logger}
}

func (m *ConsoleMailer) Send(ctx context.Context, email Email) error {
	m.mu.Lock()
	m.sent = append(m.sent, email)
	m.mu.Unlock()

	m.logger.Info("Email (console)", "to", email.ToEmail, "subject", email.Subject)
	return nil
}

func (m *ConsoleMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}
