package mail

import (
	"gopkg.in/gomail.v2"

	"github.com/taskhive/taskhive-be/internal/config"
)

// Sender delivers a single plain-text message. Services depend on this
// interface so tests can observe or fail deliveries.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender is the production Sender backed by an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender from SMTP settings in cfg.
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.MailFrom,
	}
}

// Send delivers one message, dialing a fresh SMTP connection per call.
func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}
