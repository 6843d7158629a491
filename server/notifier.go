package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	zap "go.uber.org/zap"
)

// Notifier delivers subscription events to callback URLs
type Notifier interface {
	// Notify posts event to callbackURL. An empty callbackURL delivers to the
	// notifier's fallback webhook, if any.
	Notify(ctx context.Context, callbackURL string, event cloudevents.Event) error
}

// WebhookNotifier posts structured-mode CloudEvents over HTTP
type WebhookNotifier struct {
	httpClient *http.Client
	logger     *zap.Logger
	fallback   string
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier; fallbackURL receives events that
// carry no callback of their own
func NewWebhookNotifier(logger *zap.Logger, fallbackURL string, timeout time.Duration) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:   logger,
		fallback: fallbackURL,
	}
}

// Notify posts the event
func (n *WebhookNotifier) Notify(ctx context.Context, callbackURL string, event cloudevents.Event) error {
	if callbackURL == "" {
		callbackURL = n.fallback
	}
	if callbackURL == "" {
		n.logger.Debug("no callback for event, dropping", zap.String("event_id", event.ID()))
		return nil
	}

	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", cloudevents.ApplicationCloudEventsJSON)
	req.Header.Set("User-Agent", "menu-agents-gateway/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver event: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			n.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("event webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("event delivered",
		zap.String("event_id", event.ID()),
		zap.String("event_type", event.Type()),
		zap.String("callback_url", callbackURL),
		zap.Int("status_code", resp.StatusCode))

	return nil
}

// NoopNotifier drops every event
type NoopNotifier struct{}

var _ Notifier = (*NoopNotifier)(nil)

// Notify does nothing
func (NoopNotifier) Notify(ctx context.Context, callbackURL string, event cloudevents.Event) error {
	return nil
}
