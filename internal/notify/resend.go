package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
)

var defaultResendHTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}

// Resend sends through the Resend HTTP API.
type Resend struct {
	client *resend.Client
}

// NewResend creates a Resend sender. A nil httpClient uses a client with a
// 15s timeout.
func NewResend(apiKey string, httpClient *http.Client) *Resend {
	if httpClient == nil {
		httpClient = defaultResendHTTPClient
	}
	return &Resend{client: resend.NewCustomClient(httpClient, apiKey)}
}

func (r *Resend) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

func (r *Resend) Name() string { return DriverResend }
