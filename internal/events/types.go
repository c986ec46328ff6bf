package events

import "time"

// Kind values for seller-facing notifications.
const (
	KindUpdate         = "update"
	KindActionRequired = "action_required"
	KindDealClosed     = "deal_closed"
)

// NegotiationUpdateV1 is an informational event: the agent countered or
// declined on the seller's behalf and no seller action is needed.
type NegotiationUpdateV1 struct {
	SellerID     string    `json:"seller_id"`
	ProductID    string    `json:"product_id"`
	ThreadID     string    `json:"thread_id"`
	Decision     string    `json:"decision"`
	BuyerOffer   int64     `json:"buyer_offer,omitempty"`
	CounterPrice int64     `json:"counter_price,omitempty"`
	Message      string    `json:"message"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (NegotiationUpdateV1) EventType() string { return "negotiation.update.v1" }

// SellerActionRequiredV1 asks the seller to intervene: a buyer question the
// agent cannot answer from known facts, or a thread that hit the turn limit.
type SellerActionRequiredV1 struct {
	SellerID       string    `json:"seller_id"`
	ProductID      string    `json:"product_id"`
	ThreadID       string    `json:"thread_id"`
	Reason         string    `json:"reason"`
	MissingFactKey string    `json:"missing_fact_key,omitempty"`
	BuyerMessage   string    `json:"buyer_message,omitempty"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (SellerActionRequiredV1) EventType() string { return "negotiation.action_required.v1" }

// DealClosedV1 reports a completed sale at the final settled price.
type DealClosedV1 struct {
	SellerID   string    `json:"seller_id"`
	ProductID  string    `json:"product_id"`
	ThreadID   string    `json:"thread_id"`
	FinalPrice int64     `json:"final_price"`
	Turns      int       `json:"turns"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (DealClosedV1) EventType() string { return "negotiation.deal_closed.v1" }
