package negotiation

import "testing"

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"is this still available?", true},
		{"how is the battery", true},
		{"apakah masih ada", true},
		{"berapa harga terakhir", true},
		{"masih mulus?", true},
		{"i'll take it", false},
		{"deal", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsQuestion(tt.message); got != tt.want {
			t.Errorf("IsQuestion(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestMatchFactAspect(t *testing.T) {
	tests := []struct {
		message string
		wantKey string
		wantOK  bool
	}{
		{"how is the battery health?", "battery_health", true},
		{"baterai masih awet?", "battery_health", true},
		{"is the charging port scratched?", "charging_port_condition", true},
		{"ada lecet tidak?", "body_condition", true},
		{"masih garansi?", "warranty_status", true},
		{"does it come with the box?", "accessories_included", true},
		{"this is important to me", "", false},
		{"is it still available?", "", false},
		{"boleh nego?", "", false},
	}
	for _, tt := range tests {
		key, ok := MatchFactAspect(tt.message)
		if ok != tt.wantOK || key != tt.wantKey {
			t.Errorf("MatchFactAspect(%q) = (%q, %v), want (%q, %v)", tt.message, key, ok, tt.wantKey, tt.wantOK)
		}
	}
}

func TestAnswerFromFacts(t *testing.T) {
	facts := map[string]string{
		"battery_health": "88%, replaced last year",
	}

	answer, key, ok := AnswerFromFacts("how is the battery?", facts)
	if !ok || key != "battery_health" || answer != "88%, replaced last year" {
		t.Errorf("got (%q, %q, %v), want the recorded fact", answer, key, ok)
	}

	// Aspect matched but unanswered: key is returned so the engine can
	// escalate with it.
	answer, key, ok = AnswerFromFacts("masih garansi?", facts)
	if ok || key != "warranty_status" || answer != "" {
		t.Errorf("got (%q, %q, %v), want unanswered warranty aspect", answer, key, ok)
	}

	// Non-aspect questions never resolve to a fact key.
	if _, key, _ := AnswerFromFacts("is it available?", facts); key != "" {
		t.Errorf("generic question matched key %q", key)
	}
}

func TestNormalizeFactKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Battery Health", "battery_health"},
		{" charging-port condition ", "charging_port_condition"},
		{"warranty_status", "warranty_status"},
		{"__weird__", "weird"},
	}
	for _, tt := range tests {
		if got := NormalizeFactKey(tt.in); got != tt.want {
			t.Errorf("NormalizeFactKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
