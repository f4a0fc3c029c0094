package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/noah-isme/rtms-ops-api/pkg/config"
)

// Email is a single outbound message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers outbound notifications. Delivery is best-effort for the
// workflow engine: callers log failures instead of propagating them.
type Sender interface {
	Send(email Email) error
}

// SenderFunc allows using plain functions as senders.
type SenderFunc func(email Email) error

// Send implements Sender.
func (f SenderFunc) Send(email Email) error {
	return f(email)
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPSender builds a sender from notifier configuration.
func NewSMTPSender(cfg config.NotifierConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from: cfg.FromAddress,
		auth: auth,
	}
}

// Send writes the message to the relay.
func (s *SMTPSender) Send(email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	msg := strings.Builder{}
	msg.WriteString("From: " + s.from + "\r\n")
	msg.WriteString("To: " + strings.Join(email.To, ", ") + "\r\n")
	msg.WriteString("Subject: " + email.Subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(email.Body)

	if err := smtp.SendMail(s.addr, s.auth, s.from, email.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
