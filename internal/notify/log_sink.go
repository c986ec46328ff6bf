package notify

import (
	"context"

	"github.com/hunters-code/adol-agents/internal/events"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// LogSink writes every seller event to the structured log. It is always
// configured so a turn's seller-facing output is never silently lost, even
// when no webhook or email destination is set up.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs the envelope.
func (s *LogSink) Deliver(_ context.Context, env events.Envelope) error {
	s.logger.Info("seller event",
		"event_id", env.EventID.String(),
		"event_type", env.EventType,
		"aggregate", env.Aggregate,
		"correlation_id", env.CorrelationID,
		"payload", string(env.Payload),
	)
	return nil
}
