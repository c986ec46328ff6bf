package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hunters-code/adol-agents/internal/events"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

const webhookTimeout = 5 * time.Second

// WebhookSink POSTs seller events as JSON to a configured endpoint.
type WebhookSink struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWebhookSink creates a webhook sink. Returns nil when url is empty so
// callers can pass the result straight to NewService.
func NewWebhookSink(url string, logger *logging.Logger) *WebhookSink {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger,
	}
}

// Deliver posts the envelope to the webhook endpoint.
func (s *WebhookSink) Deliver(ctx context.Context, env events.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("notify: encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook delivery: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}

	s.logger.Debug("notify: webhook delivered", "event_type", env.EventType, "aggregate", env.Aggregate)
	return nil
}
