package notify

import (
	"context"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Log writes notifications to the server log instead of sending them.
// Useful in development and when no mail provider is configured.
type Log struct {
	logger *logging.Logger
}

func NewLog(logger *logging.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, msg Message) error {
	if l.logger == nil {
		return nil
	}
	l.logger.Info("Notification (log driver)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text))
	return nil
}

func (l *Log) Name() string { return DriverLog }
