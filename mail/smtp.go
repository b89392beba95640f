package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
)

// SMTPConfig locates and authenticates against the outbound mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP is a Sender backed by a plain-auth SMTP relay.
type SMTP struct {
	cfg  SMTPConfig
	auth smtp.Auth
}

// NewSMTP returns a Sender for the given relay.
func NewSMTP(cfg SMTPConfig) *SMTP {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTP{cfg: cfg, auth: auth}
}

// Send renders the message and hands it to the relay. Delivery is
// synchronous; the context is checked before dialing since net/smtp has no
// context support of its own.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := Render(s.cfg.From, msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, s.auth, s.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}

var bodyTemplate = template.Must(template.New("mail").Parse(
	"From: {{.From}}\r\n" +
		"To: {{.To}}\r\n" +
		"Subject: {{.Subject}}\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello {{.DisplayName}},\r\n" +
		"\r\n" +
		"{{.Intro}}\r\n" +
		"\r\n" +
		"{{.ActionURL}}\r\n" +
		"\r\n" +
		"If you did not request this, you can ignore this email.\r\n"))

// Render produces the full RFC 5322 message bytes for msg.
func Render(from string, msg Message) ([]byte, error) {
	data := struct {
		From string
		Message
	}{From: from, Message: msg}

	var out strings.Builder
	if err := bodyTemplate.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("mail: render: %w", err)
	}
	return []byte(out.String()), nil
}
