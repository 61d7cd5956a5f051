package waitlist

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/opposia/waitlist/internal/config"
	"github.com/opposia/waitlist/internal/metrics"
	"github.com/opposia/waitlist/internal/notify"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier tells the operator about a new signup. Implementations must not
// block the caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, signup Signup)
}

var notificationHTML = template.Must(template.New("signup").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #3b82f6;">New Waitlist Signup</h2>
  <p>Someone just joined the waitlist!</p>
  <div style="background-color: #f3f4f6; padding: 15px; border-radius: 8px; margin: 20px 0;">
    <p style="margin: 5px 0;"><strong>Email:</strong> {{.Email}}</p>
    <p style="margin: 5px 0;"><strong>Signed up at:</strong> {{.SignedUpAt}}</p>
  </div>
  <p style="color: #6b7280; font-size: 14px;">This is an automated notification from your landing page.</p>
</div>`))

// RenderNotification builds the operator message body for signup. User values
// are HTML-escaped.
func RenderNotification(signup Signup) (html string, text string, err error) {
	signedUpAt := signup.Timestamp
	if t, perr := time.Parse(TimestampFormat, signup.Timestamp); perr == nil {
		signedUpAt = t.Format(time.RFC1123)
	}

	var buf bytes.Buffer
	err = notificationHTML.Execute(&buf, struct {
		Email      string
		SignedUpAt string
	}{Email: signup.Email, SignedUpAt: signedUpAt})
	if err != nil {
		return "", "", fmt.Errorf("render notification: %w", err)
	}

	text = fmt.Sprintf("New waitlist signup\n\nEmail: %s\nSigned up at: %s\n", signup.Email, signedUpAt)
	return buf.String(), text, nil
}

// Dispatcher delivers notifications through a notify.Sender on background
// goroutines. Each send gets one attempt bounded by its own timeout; failures
// are logged and counted.
type Dispatcher struct {
	sender  notify.Sender
	from    string
	to      string
	subject string
	timeout time.Duration
	budget  *rate.Limiter
	logger  *logging.Logger
	wg      conc.WaitGroup
}

// NewDispatcher creates a dispatcher. A zero RatePerMinute disables the
// outbound budget.
func NewDispatcher(sender notify.Sender, cfg config.NotifyConfig, logger *logging.Logger) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	if sender == nil {
		sender = notify.Nop{}
	}

	d := &Dispatcher{
		sender:  sender,
		from:    cfg.From,
		to:      cfg.To,
		subject: cfg.Subject,
		timeout: timeout,
		logger:  logger,
	}
	if cfg.RatePerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		d.budget = rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60), burst)
	}
	return d
}

// Notify schedules delivery and returns immediately. The send outlives the
// request: it keeps ctx values but not its cancellation.
func (d *Dispatcher) Notify(ctx context.Context, signup Signup) {
	if d.budget != nil && !d.budget.Allow() {
		metrics.RecordNotification(metrics.NotificationDropped, d.sender.Name())
		d.warn("Notification budget exhausted, dropping",
			zap.String("email", signup.Email))
		return
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		var pc panics.Catcher
		pc.Try(func() {
			sendCtx, cancel := context.WithTimeout(detached, d.timeout)
			defer cancel()
			d.record(signup, d.Deliver(sendCtx, signup))
		})
		if r := pc.Recovered(); r != nil {
			d.record(signup, r.AsError())
		}
	})
}

// Deliver makes one synchronous delivery attempt.
func (d *Dispatcher) Deliver(ctx context.Context, signup Signup) error {
	html, text, err := RenderNotification(signup)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, notify.Message{
		From:    d.from,
		To:      d.to,
		Subject: d.subject,
		HTML:    html,
		Text:    text,
	})
}

// Wait blocks until every scheduled delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Drain waits for pending deliveries until ctx is done and reports whether
// all of them finished.
func (d *Dispatcher) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) record(signup Signup, err error) {
	if err != nil {
		metrics.RecordNotification(metrics.NotificationFailed, d.sender.Name())
		if d.logger != nil {
			d.logger.Error("Failed to send signup notification",
				zap.String("driver", d.sender.Name()),
				zap.String("email", signup.Email),
				zap.Error(err))
		}
		return
	}

	metrics.RecordNotification(metrics.NotificationSent, d.sender.Name())
	if d.logger != nil {
		d.logger.Debug("Signup notification sent",
			zap.String("driver", d.sender.Name()),
			zap.String("email", signup.Email))
	}
}

func (d *Dispatcher) warn(msg string, fields ...zap.Field) {
	if d.logger != nil {
		d.logger.Warn(msg, fields...)
	}
}
