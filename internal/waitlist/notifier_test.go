package waitlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opposia/waitlist/internal/config"
	"github.com/opposia/waitlist/internal/notify"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
	block    chan struct{}
	panics   bool
}

func (r *recordingSender) Send(ctx context.Context, msg notify.Message) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.panics {
		panic("sender exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.err
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) sent() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.messages...)
}

func notifyConfig() config.NotifyConfig {
	return config.NotifyConfig{
		From:    "onboarding@resend.dev",
		To:      "ops@example.com",
		Subject: "New Waitlist Signup!",
		Timeout: time.Second,
	}
}

func TestRenderNotificationEscapes(t *testing.T) {
	html, text, err := RenderNotification(Signup{
		Email:     `a&b'<x>"@example.com`,
		Timestamp: "2025-01-02T03:04:05.000Z",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "a&amp;b&#39;&lt;x&gt;&#34;@example.com")
	assert.NotContains(t, html, "<x>")
	assert.Contains(t, html, "Thu, 02 Jan 2025 03:04:05 UTC")
	assert.Contains(t, text, `a&b'<x>"@example.com`)
}

func TestDispatcherDelivers(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, notifyConfig(), nil)

	d.Notify(context.Background(), Signup{Email: "a@example.com", Timestamp: "2025-01-02T03:04:05.000Z"})
	d.Wait()

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ops@example.com", msgs[0].To)
	assert.Equal(t, "onboarding@resend.dev", msgs[0].From)
	assert.Equal(t, "New Waitlist Signup!", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, "a@example.com")
}

func TestDispatcherOutlivesRequestContext(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := NewDispatcher(sender, notifyConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, Signup{Email: "a@example.com"})
	cancel()
	close(sender.block)
	d.Wait()

	assert.Len(t, sender.sent(), 1)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	d := NewDispatcher(&recordingSender{err: errors.New("provider down")}, notifyConfig(), nil)
	assert.NotPanics(t, func() {
		d.Notify(context.Background(), Signup{Email: "a@example.com"})
		d.Wait()
	})

	d = NewDispatcher(&recordingSender{panics: true}, notifyConfig(), nil)
	assert.NotPanics(t, func() {
		d.Notify(context.Background(), Signup{Email: "a@example.com"})
		d.Wait()
	})
}

func TestDispatcherTimeout(t *testing.T) {
	cfg := notifyConfig()
	cfg.Timeout = 20 * time.Millisecond
	sender := &recordingSender{block: make(chan struct{})}
	d := NewDispatcher(sender, cfg, nil)

	d.Notify(context.Background(), Signup{Email: "a@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.True(t, d.Drain(ctx))
	assert.Empty(t, sender.sent())
}

func TestDispatcherDrainDeadline(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	cfg := notifyConfig()
	cfg.Timeout = time.Minute
	d := NewDispatcher(sender, cfg, nil)

	d.Notify(context.Background(), Signup{Email: "a@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, d.Drain(ctx))

	close(sender.block)
	d.Wait()
}

func TestDispatcherBudget(t *testing.T) {
	cfg := notifyConfig()
	cfg.RatePerMinute = 1
	cfg.Burst = 2
	sender := &recordingSender{}
	d := NewDispatcher(sender, cfg, nil)

	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), Signup{Email: "a@example.com"})
	}
	d.Wait()

	assert.Len(t, sender.sent(), 2)
}

func TestDispatcherNilSender(t *testing.T) {
	d := NewDispatcher(nil, config.NotifyConfig{}, nil)
	assert.Equal(t, defaultNotifyTimeout, d.timeout)
	assert.NoError(t, d.Deliver(context.Background(), Signup{Email: "a@example.com"}))
}
