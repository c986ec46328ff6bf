// Package notify delivers negotiation events to the seller. The core emits a
// structured event per turn; this package wraps it in an envelope and fans it
// out to the configured sinks (webhook, email, log). Delivery failures are
// logged and never block a negotiation turn.
package notify

import (
	"context"

	"github.com/hunters-code/adol-agents/internal/events"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// Sink delivers one enveloped seller event.
type Sink interface {
	Deliver(ctx context.Context, env events.Envelope) error
}

// Service fans seller events out to every configured sink.
type Service struct {
	sinks  []Sink
	logger *logging.Logger
}

// NewService creates a notification service. Nil sinks are skipped.
func NewService(logger *logging.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Service{sinks: kept, logger: logger}
}

// Publish envelopes the event and delivers it to all sinks. Sink errors are
// logged; the first error is returned for observability but callers treat
// publishing as best-effort.
func (s *Service) Publish(ctx context.Context, aggregate, correlationID string, evt events.CanonicalEvent) error {
	env, err := events.NewEnvelope(aggregate, correlationID, evt)
	if err != nil {
		s.logger.Error("notify: failed to build envelope", "error", err, "aggregate", aggregate)
		return err
	}

	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, env); err != nil {
			s.logger.Error("notify: sink delivery failed",
				"error", err,
				"event_type", env.EventType,
				"aggregate", env.Aggregate,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
