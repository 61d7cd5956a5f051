// Package notify delivers operator emails through a configurable transport.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/opposia/waitlist/internal/config"
)

const (
	DriverResend = "resend"
	DriverSMTP   = "smtp"
	DriverLog    = "log"
	DriverNone   = "none"
)

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender makes one delivery attempt per call.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// New builds the sender selected by cfg.Driver.
func New(cfg config.NotifyConfig, logger *logging.Logger) (Sender, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))

	switch driver {
	case DriverResend:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("notify.api_key is required for the resend driver")
		}
		if err := requireRecipient(cfg); err != nil {
			return nil, err
		}
		return NewResend(cfg.APIKey, nil), nil
	case DriverSMTP:
		if strings.TrimSpace(cfg.SMTP.Host) == "" {
			return nil, errors.New("notify.smtp.host is required for the smtp driver")
		}
		if err := requireRecipient(cfg); err != nil {
			return nil, err
		}
		return NewSMTP(cfg.SMTP), nil
	case DriverLog, "":
		return NewLog(logger), nil
	case DriverNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported notify driver: %s", cfg.Driver)
	}
}

func requireRecipient(cfg config.NotifyConfig) error {
	if strings.TrimSpace(cfg.To) == "" {
		return fmt.Errorf("notify.to is required for the %s driver", cfg.Driver)
	}
	return nil
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(ctx context.Context, msg Message) error { return nil }

func (Nop) Name() string { return DriverNone }
