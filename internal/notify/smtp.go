package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/opposia/waitlist/internal/config"
)

// SMTP sends through an SMTP relay.
//
// gomail has no context support; a hung relay holds the caller until the
// dialer gives up, so callers run Send off the request path.
type SMTP struct {
	dialer *gomail.Dialer
	send   func(m *gomail.Message) error
}

// NewSMTP creates an SMTP sender from configuration.
func NewSMTP(cfg config.SMTPConfig) *SMTP {
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	s := &SMTP{dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)}
	s.send = func(m *gomail.Message) error {
		return s.dialer.DialAndSend(m)
	}
	return s
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.send(buildMessage(msg)); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

func (s *SMTP) Name() string { return DriverSMTP }

func buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}
