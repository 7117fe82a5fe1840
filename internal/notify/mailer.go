package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers a single email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through a plain SMTP relay. Suited to Mailpit-style
// development relays; production deployments use SendGridMailer.
type SMTPMailer struct {
	addr string
	from string
}

// NewSMTPMailer constructs a mailer for host:port.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{addr: fmt.Sprintf("%s:%d", host, port), from: from}
}

// SendEmail delivers via SMTP without authentication.
func (m *SMTPMailer) SendEmail(_ context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// SendGridMailer sends through the SendGrid API.
type SendGridMailer struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

// NewSendGridMailer constructs a mailer using the given API key.
func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), from: from, fromName: fromName}
}

// SendEmail delivers via SendGrid.
func (m *SendGridMailer) SendEmail(_ context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.from),
		subject,
		mail.NewEmail("", to),
		body,
		body,
	)
	resp, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", to, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send to %s: status %d", to, resp.StatusCode)
	}
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*SendGridMailer)(nil)
)
