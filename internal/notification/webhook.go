package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookNotifier POSTs alerts as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *resty.Client
}

// NewWebhookNotifier creates a webhook notifier that retries transient
// failures twice.
func NewWebhookNotifier(url string) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &WebhookNotifier{url: url, client: client}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"level":    alert.Level,
			"symbol":   alert.Symbol,
			"rule":     alert.Rule,
			"category": alert.Category,
			"title":    alert.Title,
			"message":  alert.Message,
			"as_of":    alert.AsOf.Format("2006-01-02"),
			"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode())
	}

	log.Printf("[webhook] sent alert to %s: %s", w.url, alert.Title)
	return nil
}
