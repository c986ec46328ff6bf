// Package pricing implements the deterministic negotiation policy: it derives
// target/minimum thresholds from a listing price and decides whether a buyer
// offer is accepted, countered, rejected or escalated. It performs no I/O, so
// the rest of the system can treat it as a pure bound on what the language
// model is allowed to agree to.
package pricing

import (
	"errors"
	"math"
)

// ErrInvalidPrice indicates a non-positive listing price.
var ErrInvalidPrice = errors.New("pricing: listing price must be positive")

// Thresholds are derived from the current listing price on every turn and
// never cached. Invariant: Minimum <= Target <= Listing.
type Thresholds struct {
	Listing int64
	Target  int64
	Minimum int64
}

// ComputeThresholds derives settlement thresholds for a listing price,
// applying any category override configured for categoryID.
func ComputeThresholds(listing int64, categoryID string, cfg Config) (Thresholds, error) {
	if listing <= 0 {
		return Thresholds{}, ErrInvalidPrice
	}

	r := cfg.ratiosFor(categoryID)
	target := int64(math.Round(float64(listing) * r.Target))
	minimum := int64(math.Round(float64(listing) * r.Min))

	if target > listing {
		target = listing
	}
	if minimum > target {
		minimum = target
	}
	if minimum < 1 {
		minimum = 1
	}

	return Thresholds{Listing: listing, Target: target, Minimum: minimum}, nil
}

// DecisionKind classifies the policy outcome for one buyer offer.
type DecisionKind string

const (
	Accept   DecisionKind = "accept"
	Counter  DecisionKind = "counter"
	Reject   DecisionKind = "reject"
	Escalate DecisionKind = "escalate"
)

// Decision is the policy verdict. Price is the agreed price for Accept and
// the asking price for Counter; it is zero otherwise.
type Decision struct {
	Kind   DecisionKind
	Price  int64
	Reason string
}

const (
	ReasonTurnLimit    = "price turn limit reached"
	ReasonBelowMinimum = "offer below minimum after floor counter"
)

// OfferContext carries the slice of negotiation state the policy needs.
type OfferContext struct {
	// CurrentCounter is the last price the agent asked for. A fresh
	// negotiation starts at the listing price, which is the agent's
	// opening ask.
	CurrentCounter int64
	// PriceTurns counts prior turns that carried a numeric offer.
	PriceTurns int
}

// EvaluateOffer decides how to respond to a buyer offer. The counter sequence
// it produces is non-increasing: the agent never raises its ask mid-thread.
func EvaluateOffer(offer int64, th Thresholds, st OfferContext, cfg Config) Decision {
	if st.PriceTurns >= cfg.maxPriceTurns() {
		return Decision{Kind: Escalate, Reason: ReasonTurnLimit}
	}

	// Never sell above list, and never leave an at-or-above-target offer
	// on the table.
	if offer > th.Listing {
		return Decision{Kind: Accept, Price: th.Listing}
	}
	if offer >= th.Target {
		return Decision{Kind: Accept, Price: offer}
	}
	if st.CurrentCounter > 0 && offer >= st.CurrentCounter {
		return Decision{Kind: Accept, Price: offer}
	}

	if offer >= th.Minimum {
		return Decision{Kind: Counter, Price: counterPrice(offer, th, st, cfg)}
	}

	// Below minimum: anchor at target on the first offer, decline once the
	// buyer has already been countered at the floor, hold the current ask
	// otherwise.
	if st.PriceTurns == 0 || st.CurrentCounter <= 0 {
		return Decision{Kind: Counter, Price: th.Target}
	}
	if st.CurrentCounter <= th.Minimum {
		return Decision{Kind: Reject, Reason: ReasonBelowMinimum}
	}
	return Decision{Kind: Counter, Price: st.CurrentCounter}
}

// counterPrice splits the gap between the offer and the current ask, floored
// at the target, rounded to the configured increment, and clamped so the ask
// never rises and never dips under the minimum.
func counterPrice(offer int64, th Thresholds, st OfferContext, cfg Config) int64 {
	mid := (offer + st.CurrentCounter) / 2
	price := th.Target
	if mid > price {
		price = mid
	}

	price = roundToIncrement(price, cfg.increment())

	if st.CurrentCounter > 0 && price > st.CurrentCounter {
		price = st.CurrentCounter
	}
	if price > th.Listing {
		price = th.Listing
	}
	if price < th.Minimum {
		price = th.Minimum
	}
	return price
}

func roundToIncrement(v, inc int64) int64 {
	if inc <= 1 {
		return v
	}
	half := inc / 2
	return ((v + half) / inc) * inc
}
