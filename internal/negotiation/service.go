package negotiation

import (
	"context"
	"time"

	"github.com/hunters-code/adol-agents/internal/language"
)

// TurnRequest is one inbound buyer message on a chat thread. The product id
// is carried in the message itself as the first whitespace token.
type TurnRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// TurnResult is the outcome of processing one turn.
type TurnResult struct {
	ProductID    string            `json:"product_id,omitempty"`
	ThreadID     string            `json:"thread_id"`
	ToBuyer      string            `json:"to_buyer"`
	ToSeller     *SellerNote       `json:"to_seller,omitempty"`
	Offer        int64             `json:"offer,omitempty"`
	Decision     string            `json:"decision,omitempty"`
	CounterPrice int64             `json:"counter_price,omitempty"`
	Status       Status            `json:"status,omitempty"`
	Language     language.Language `json:"language,omitempty"`
}

// Decision labels for turns that carry no pricing verdict.
const (
	decisionGreeting   = "greeting"
	decisionInquiry    = "inquiry"
	decisionFactAnswer = "fact_answer"
	decisionUsageHint  = "usage_hint"
)

// Service is the negotiation application boundary consumed by the HTTP
// handlers, the webchat ingress and the queue workers.
type Service interface {
	// ProcessTurn runs the full turn state machine for one buyer message.
	// Every turn yields a buyer-facing reply, including malformed ones.
	ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
	// GetState returns the current thread state.
	GetState(ctx context.Context, key Key) (*State, error)
	// RecordSellerFact stores a seller answer on every thread of a
	// product, pushes it to the catalog, and reports how many escalated
	// threads it reopened.
	RecordSellerFact(ctx context.Context, productID, factKey, value string) (int, error)
	// Stats reports aggregate activity counters.
	Stats(ctx context.Context) (StatsSnapshot, error)
	// EvictIdle removes threads idle since before olderThan.
	EvictIdle(ctx context.Context, olderThan time.Time) ([]Key, error)
}
