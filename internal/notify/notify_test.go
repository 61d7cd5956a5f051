package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/opposia/waitlist/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNewSelectsDriver(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.NotifyConfig
		want    string
		wantErr string
	}{
		{name: "default", cfg: config.NotifyConfig{}, want: DriverLog},
		{name: "log", cfg: config.NotifyConfig{Driver: "LOG"}, want: DriverLog},
		{name: "none", cfg: config.NotifyConfig{Driver: "none"}, want: DriverNone},
		{name: "resend", cfg: config.NotifyConfig{Driver: "resend", APIKey: "re_123", To: "ops@example.com"}, want: DriverResend},
		{name: "resend without key", cfg: config.NotifyConfig{Driver: "resend", To: "ops@example.com"}, wantErr: "api_key"},
		{name: "resend without recipient", cfg: config.NotifyConfig{Driver: "resend", APIKey: "re_123"}, wantErr: "notify.to"},
		{name: "smtp", cfg: config.NotifyConfig{Driver: "smtp", To: "ops@example.com", SMTP: config.SMTPConfig{Host: "mail.local"}}, want: DriverSMTP},
		{name: "smtp without host", cfg: config.NotifyConfig{Driver: "smtp", To: "ops@example.com"}, wantErr: "smtp.host"},
		{name: "unknown", cfg: config.NotifyConfig{Driver: "pigeon"}, wantErr: "unsupported"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender, err := New(tc.cfg, nil)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, sender.Name())
		})
	}
}

func TestResendSend(t *testing.T) {
	var captured map[string]any
	var auth string
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		auth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		return jsonResponse(http.StatusOK, `{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`), nil
	})}

	sender := NewResend("re_test", httpClient)
	err := sender.Send(context.Background(), Message{
		From:    "onboarding@resend.dev",
		To:      "ops@example.com",
		Subject: "New Waitlist Signup!",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_test", auth)
	assert.Equal(t, "onboarding@resend.dev", captured["from"])
	assert.Equal(t, []any{"ops@example.com"}, captured["to"])
	assert.Equal(t, "New Waitlist Signup!", captured["subject"])
	assert.Equal(t, "<p>hi</p>", captured["html"])
}

func TestResendSendFailure(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}

	err := NewResend("re_test", httpClient).Send(context.Background(), Message{To: "ops@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resend")
}

func TestSMTPSendUsesBuiltMessage(t *testing.T) {
	sender := NewSMTP(config.SMTPConfig{Host: "mail.local"})

	var from string
	var to []string
	var raw bytes.Buffer
	sender.send = func(m *gomail.Message) error {
		return gomail.Send(gomail.SendFunc(func(f string, t []string, msg io.WriterTo) error {
			from, to = f, t
			_, err := msg.WriteTo(&raw)
			return err
		}), m)
	}

	err := sender.Send(context.Background(), Message{
		From:    "onboarding@example.com",
		To:      "ops@example.com",
		Subject: "New Waitlist Signup!",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, "onboarding@example.com", from)
	assert.Equal(t, []string{"ops@example.com"}, to)
	assert.Contains(t, raw.String(), "Subject: New Waitlist Signup!")
	assert.Contains(t, raw.String(), "text/html")
}

func TestSMTPSendFailureAndCancel(t *testing.T) {
	sender := NewSMTP(config.SMTPConfig{Host: "mail.local", Port: 2525})
	sender.send = func(*gomail.Message) error { return errors.New("relay down") }

	err := sender.Send(context.Background(), Message{To: "ops@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.Send(ctx, Message{}), context.Canceled)
}

func TestBuildMessageWithoutText(t *testing.T) {
	m := buildMessage(Message{From: "a@example.com", To: "b@example.com", Subject: "s", HTML: "<b>x</b>"})
	assert.Equal(t, []string{"b@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"s"}, m.GetHeader("Subject"))
}

func TestLogAndNopSenders(t *testing.T) {
	logger, err := logging.NewCLI("waitlist-test")
	require.NoError(t, err)

	assert.NoError(t, NewLog(logger).Send(context.Background(), Message{To: "ops@example.com"}))
	assert.NoError(t, NewLog(nil).Send(context.Background(), Message{}))
	assert.NoError(t, Nop{}.Send(context.Background(), Message{}))
}
