// Package negotiation implements the conversational negotiation core: the
// per-thread state machine, the memory store, offer parsing, the response
// composer and the queue-backed dispatcher that serializes turns per key.
package negotiation

import (
	"errors"
	"fmt"
	"time"

	"github.com/hunters-code/adol-agents/internal/language"
)

// Sentinel errors for the negotiation core. See also catalog.ErrNotFound and
// catalog.ErrUnavailable for the collaborator boundary.
var (
	// ErrMalformedInput indicates the message carried no recognizable
	// product id token. The caller replies with a usage hint and no state
	// is mutated.
	ErrMalformedInput = errors.New("negotiation: malformed input")

	// ErrInvariantViolation indicates a programming or data bug: a counter
	// that rose mid-thread or an illegal status transition. It is always
	// surfaced, never swallowed.
	ErrInvariantViolation = errors.New("negotiation: invariant violation")

	// ErrGenerationUnavailable indicates the text-generation capability
	// failed. The composer recovers with templated replies.
	ErrGenerationUnavailable = errors.New("negotiation: text generation unavailable")
)

// Status is the lifecycle stage of a negotiation thread.
type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusEscalated Status = "escalated"
	StatusClosed    Status = "closed"
)

// Terminal reports whether no further turns are processed for this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusClosed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal. Transitions
// are one-directional except OPEN<->ESCALATED: a seller response reopens an
// escalated thread.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusOpen:
		return true
	case StatusEscalated:
		return next == StatusOpen || next.Terminal()
	default:
		// Terminal states never move.
		return false
	}
}

// Key identifies one negotiation thread: one buyer haggling over one product.
type Key struct {
	ProductID string `json:"product_id"`
	ThreadID  string `json:"thread_id"`
}

// String renders the key in its canonical "productID:threadID" form, used as
// the aggregate id on seller events and as the storage key.
func (k Key) String() string {
	return k.ProductID + ":" + k.ThreadID
}

// Turn records one buyer message and the agent's reaction to it.
type Turn struct {
	BuyerMessage string    `json:"buyer_message"`
	Offer        int64     `json:"offer,omitempty"`
	Decision     string    `json:"decision"`
	CounterPrice int64     `json:"counter_price,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// State is the mutable per-thread negotiation record. The dispatcher
// guarantees a single writer per key; concurrent reads of other keys are
// safe.
type State struct {
	Key   Key    `json:"key"`
	Turns []Turn `json:"turns"`

	// CurrentCounter is the last price the agent asked for. It starts at
	// the listing price and never increases.
	CurrentCounter int64 `json:"current_counter"`
	// HighestOffer tracks the best numeric offer seen from the buyer.
	HighestOffer int64 `json:"highest_offer"`
	// PriceTurns counts turns that carried a numeric offer.
	PriceTurns int `json:"price_turns"`

	Status   Status            `json:"status"`
	Language language.Language `json:"language,omitempty"`

	// Facts holds seller-supplied answers keyed by a derived fact key,
	// e.g. "charging_port_condition" -> "no scratches".
	Facts map[string]string `json:"facts,omitempty"`
	// PendingFactKey is set while the thread is escalated waiting for the
	// seller to answer a specific question.
	PendingFactKey string `json:"pending_fact_key,omitempty"`

	// FinalPrice is the settled price once the status is accepted.
	FinalPrice int64 `json:"final_price,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version supports compare-and-set updates in stores that need it.
	Version int64 `json:"version"`
}

// NewState opens a negotiation for a key. The listing price seeds the
// current counter: the listing is the agent's opening ask.
func NewState(key Key, listingPrice int64, now time.Time) *State {
	return &State{
		Key:            key,
		CurrentCounter: listingPrice,
		Status:         StatusOpen,
		Facts:          make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TurnCount returns the number of recorded turns.
func (s *State) TurnCount() int {
	return len(s.Turns)
}

// ApplyTurn appends a turn, enforcing the monotonic-counter invariant: a
// counter above the previous ask is rejected with ErrInvariantViolation.
func (s *State) ApplyTurn(turn Turn) error {
	if turn.CounterPrice > 0 && s.CurrentCounter > 0 && turn.CounterPrice > s.CurrentCounter {
		return fmt.Errorf("%w: counter %d above previous %d for %s",
			ErrInvariantViolation, turn.CounterPrice, s.CurrentCounter, s.Key)
	}

	s.Turns = append(s.Turns, turn)
	if turn.Offer > 0 {
		s.PriceTurns++
		if turn.Offer > s.HighestOffer {
			s.HighestOffer = turn.Offer
		}
	}
	if turn.CounterPrice > 0 {
		s.CurrentCounter = turn.CounterPrice
	}
	s.UpdatedAt = turn.Timestamp
	return nil
}

// SetStatus validates and applies a status transition.
func (s *State) SetStatus(next Status) error {
	if !s.Status.CanTransition(next) {
		return fmt.Errorf("%w: illegal status transition %s -> %s for %s",
			ErrInvariantViolation, s.Status, next, s.Key)
	}
	s.Status = next
	return nil
}

// RecordFact upserts a learned fact. Re-recording the same key overwrites,
// which makes the operation idempotent. Recording the pending fact reopens
// an escalated thread.
func (s *State) RecordFact(key, value string) {
	if s.Facts == nil {
		s.Facts = make(map[string]string)
	}
	s.Facts[key] = value
	if s.Status == StatusEscalated && s.PendingFactKey == key {
		s.Status = StatusOpen
		s.PendingFactKey = ""
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() *State {
	cp := *s
	cp.Turns = append([]Turn(nil), s.Turns...)
	if s.Facts != nil {
		cp.Facts = make(map[string]string, len(s.Facts))
		for k, v := range s.Facts {
			cp.Facts[k] = v
		}
	}
	return &cp
}
