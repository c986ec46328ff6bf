package pricing

import (
	"errors"
	"testing"
)

func TestComputeThresholdsDefaults(t *testing.T) {
	th, err := ComputeThresholds(1400000, "", DefaultConfig())
	if err != nil {
		t.Fatalf("ComputeThresholds() error = %v", err)
	}
	if th.Target != 1190000 {
		t.Errorf("target = %d, want 1190000", th.Target)
	}
	if th.Minimum != 980000 {
		t.Errorf("minimum = %d, want 980000", th.Minimum)
	}
	if th.Listing != 1400000 {
		t.Errorf("listing = %d, want 1400000", th.Listing)
	}
}

func TestComputeThresholdsOrdering(t *testing.T) {
	// Minimum <= Target <= Listing must hold for any positive price.
	prices := []int64{1, 2, 3, 7, 99, 1000, 12345, 150000, 1399999, 987654321}
	for _, p := range prices {
		th, err := ComputeThresholds(p, "", DefaultConfig())
		if err != nil {
			t.Fatalf("ComputeThresholds(%d) error = %v", p, err)
		}
		if th.Minimum > th.Target || th.Target > th.Listing {
			t.Errorf("ordering broken for %d: min=%d target=%d listing=%d",
				p, th.Minimum, th.Target, th.Listing)
		}
		if th.Minimum < 1 {
			t.Errorf("minimum below 1 for %d: %d", p, th.Minimum)
		}
	}
}

func TestComputeThresholdsInvalidPrice(t *testing.T) {
	for _, p := range []int64{0, -1, -1400000} {
		if _, err := ComputeThresholds(p, "", DefaultConfig()); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("ComputeThresholds(%d) error = %v, want ErrInvalidPrice", p, err)
		}
	}
}

func TestComputeThresholdsCategoryOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CategoryOverrides = map[string]Ratios{
		"electronics": {Target: 0.9, Min: 0.8},
	}

	th, err := ComputeThresholds(1000000, "electronics", cfg)
	if err != nil {
		t.Fatalf("ComputeThresholds() error = %v", err)
	}
	if th.Target != 900000 || th.Minimum != 800000 {
		t.Errorf("override not applied: target=%d minimum=%d", th.Target, th.Minimum)
	}

	th, err = ComputeThresholds(1000000, "furniture", cfg)
	if err != nil {
		t.Fatalf("ComputeThresholds() error = %v", err)
	}
	if th.Target != 850000 || th.Minimum != 700000 {
		t.Errorf("defaults not applied for other category: target=%d minimum=%d", th.Target, th.Minimum)
	}
}

func TestParseCategoryOverrides(t *testing.T) {
	overrides, err := ParseCategoryOverrides(`{"books": {"target": 0.8, "min": 0.6}}`)
	if err != nil {
		t.Fatalf("ParseCategoryOverrides() error = %v", err)
	}
	if overrides["books"].Target != 0.8 {
		t.Errorf("target = %f, want 0.8", overrides["books"].Target)
	}

	if _, err := ParseCategoryOverrides(`{"bad": {"target": 0.5, "min": 0.9}}`); err == nil {
		t.Error("expected error for min > target")
	}
	if overrides, err := ParseCategoryOverrides(""); err != nil || overrides != nil {
		t.Errorf("empty input should yield nil, nil; got %v, %v", overrides, err)
	}
}

func TestEvaluateOffer(t *testing.T) {
	cfg := DefaultConfig()
	th, _ := ComputeThresholds(1400000, "", cfg)
	fresh := OfferContext{CurrentCounter: th.Listing, PriceTurns: 0}

	tests := []struct {
		name      string
		offer     int64
		st        OfferContext
		wantKind  DecisionKind
		wantPrice int64
	}{
		{
			name:      "above listing accepts at listing",
			offer:     1500000,
			st:        fresh,
			wantKind:  Accept,
			wantPrice: 1400000,
		},
		{
			name:      "at target accepts at offer",
			offer:     1190000,
			st:        fresh,
			wantKind:  Accept,
			wantPrice: 1190000,
		},
		{
			name:      "above target accepts at offer",
			offer:     1300000,
			st:        fresh,
			wantKind:  Accept,
			wantPrice: 1300000,
		},
		{
			name:      "matching the current counter accepts",
			offer:     1100000,
			st:        OfferContext{CurrentCounter: 1100000, PriceTurns: 2},
			wantKind:  Accept,
			wantPrice: 1100000,
		},
		{
			name:      "first below-minimum offer anchors at target",
			offer:     800000,
			st:        fresh,
			wantKind:  Counter,
			wantPrice: 1190000,
		},
		{
			name:     "below minimum after floor counter rejects",
			offer:    900000,
			st:       OfferContext{CurrentCounter: th.Minimum, PriceTurns: 2},
			wantKind: Reject,
		},
		{
			name:      "below minimum mid-thread holds current ask",
			offer:     500000,
			st:        OfferContext{CurrentCounter: 1190000, PriceTurns: 1},
			wantKind:  Counter,
			wantPrice: 1190000,
		},
		{
			name:      "mid-range offer counters at gap midpoint from listing",
			offer:     1000000,
			st:        fresh,
			wantKind:  Counter,
			wantPrice: 1200000, // round((1000000+1400000)/2)
		},
		{
			name:      "mid-range offer never raises the ask",
			offer:     1000000,
			st:        OfferContext{CurrentCounter: 1190000, PriceTurns: 1},
			wantKind:  Counter,
			wantPrice: 1190000,
		},
		{
			name:     "turn ceiling escalates regardless of price",
			offer:    1300000,
			st:       OfferContext{CurrentCounter: 1190000, PriceTurns: 6},
			wantKind: Escalate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateOffer(tt.offer, th, tt.st, cfg)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if tt.wantPrice != 0 && got.Price != tt.wantPrice {
				t.Errorf("price = %d, want %d", got.Price, tt.wantPrice)
			}
		})
	}
}

func TestEvaluateOfferCounterSequenceNonIncreasing(t *testing.T) {
	cfg := DefaultConfig()
	th, _ := ComputeThresholds(1400000, "", cfg)

	st := OfferContext{CurrentCounter: th.Listing}
	offers := []int64{850000, 1000000, 1050000, 990000, 1100000}

	var counters []int64
	for _, offer := range offers {
		d := EvaluateOffer(offer, th, st, cfg)
		if d.Kind == Accept || d.Kind == Reject || d.Kind == Escalate {
			break
		}
		counters = append(counters, d.Price)
		st.CurrentCounter = d.Price
		st.PriceTurns++
	}

	for i := 1; i < len(counters); i++ {
		if counters[i] > counters[i-1] {
			t.Fatalf("counter sequence increased: %v", counters)
		}
	}
	for _, c := range counters {
		if c < th.Minimum {
			t.Fatalf("counter %d below minimum %d", c, th.Minimum)
		}
	}
}

func TestEvaluateOfferSpecScenario(t *testing.T) {
	// Listing 1,400,000: 800,000 anchors at 1,190,000; 1,000,000 is
	// countered between the offer and the prior ask without dipping under
	// 980,000; 1,300,000 is accepted as offered.
	cfg := DefaultConfig()
	th, _ := ComputeThresholds(1400000, "", cfg)
	st := OfferContext{CurrentCounter: th.Listing, PriceTurns: 0}

	d := EvaluateOffer(800000, th, st, cfg)
	if d.Kind != Counter || d.Price != 1190000 {
		t.Fatalf("first offer: got %s at %d, want counter at 1190000", d.Kind, d.Price)
	}
	st.CurrentCounter = d.Price
	st.PriceTurns++

	d = EvaluateOffer(1000000, th, st, cfg)
	if d.Kind != Counter {
		t.Fatalf("second offer: got %s, want counter", d.Kind)
	}
	if d.Price < 1000000 || d.Price > st.CurrentCounter || d.Price < 980000 {
		t.Fatalf("second counter %d outside [1000000, %d]", d.Price, st.CurrentCounter)
	}
	st.CurrentCounter = d.Price
	st.PriceTurns++

	d = EvaluateOffer(1300000, th, st, cfg)
	if d.Kind != Accept || d.Price != 1300000 {
		t.Fatalf("third offer: got %s at %d, want accept at 1300000", d.Kind, d.Price)
	}
}

func TestRoundToIncrement(t *testing.T) {
	tests := []struct {
		v, inc, want int64
	}{
		{1095000, 1000, 1095000},
		{1095400, 1000, 1095000},
		{1095500, 1000, 1096000},
		{1234, 1, 1234},
		{1234, 0, 1234},
	}
	for _, tt := range tests {
		if got := roundToIncrement(tt.v, tt.inc); got != tt.want {
			t.Errorf("roundToIncrement(%d, %d) = %d, want %d", tt.v, tt.inc, got, tt.want)
		}
	}
}
