package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hunters-code/adol-agents/internal/events"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// EmailSink emails action-required alerts to the seller via SendGrid.
// Informational updates are not emailed; the webhook and log sinks carry
// those.
type EmailSink struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	toEmail   string
	logger    *logging.Logger
}

// EmailConfig holds configuration for the SendGrid sink.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ToEmail   string
}

// NewEmailSink creates a SendGrid-backed sink. Returns nil when the API key
// or destination address is missing.
func NewEmailSink(cfg EmailConfig, logger *logging.Logger) *EmailSink {
	if cfg.APIKey == "" || cfg.ToEmail == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Adol Negotiator"
	}
	return &EmailSink{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		toEmail:   cfg.ToEmail,
		logger:    logger,
	}
}

// Deliver emails the event when it needs seller attention.
func (s *EmailSink) Deliver(ctx context.Context, env events.Envelope) error {
	var subject string
	switch env.EventType {
	case events.SellerActionRequiredV1{}.EventType():
		subject = "Action required: a buyer needs your answer"
	case events.DealClosedV1{}.EventType():
		subject = "Deal closed"
	default:
		return nil
	}

	body, err := formatEventBody(env)
	if err != nil {
		return err
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", s.toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, body)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("notify: alert emailed", "event_type", env.EventType, "to", s.toEmail)
	return nil
}

func formatEventBody(env events.Envelope) (string, error) {
	switch env.EventType {
	case events.SellerActionRequiredV1{}.EventType():
		var evt events.SellerActionRequiredV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return "", fmt.Errorf("notify: decode action_required payload: %w", err)
		}
		body := fmt.Sprintf("Product %s, thread %s:\n%s\n\nReason: %s",
			evt.ProductID, evt.ThreadID, evt.Message, evt.Reason)
		if evt.MissingFactKey != "" {
			body += fmt.Sprintf("\nMissing fact: %s", evt.MissingFactKey)
		}
		if evt.BuyerMessage != "" {
			body += fmt.Sprintf("\nBuyer asked: %s", evt.BuyerMessage)
		}
		return body, nil
	case events.DealClosedV1{}.EventType():
		var evt events.DealClosedV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return "", fmt.Errorf("notify: decode deal_closed payload: %w", err)
		}
		return fmt.Sprintf("Product %s sold for %d after %d turns (thread %s).",
			evt.ProductID, evt.FinalPrice, evt.Turns, evt.ThreadID), nil
	}
	return "", nil
}
