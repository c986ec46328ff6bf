package negotiation

import (
	"errors"
	"testing"

	"github.com/hunters-code/adol-agents/internal/language"
)

func TestSplitProductID(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantID  string
		wantMsg string
		wantErr bool
	}{
		{"id then message", "iphone-13 masih ada?", "iphone-13", "masih ada?", false},
		{"id only", "SKU_8842", "SKU_8842", "", false},
		{"hash prefix", "#iphone-13 is it available?", "iphone-13", "is it available?", false},
		{"leading whitespace", "  iphone-13  boleh nego?", "iphone-13", "boleh nego?", false},
		{"empty", "   ", "", "", true},
		{"too short", "ab hello", "", "", true},
		{"punctuation token", "??? what is this", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, rest, err := SplitProductID(tt.message)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedInput) {
					t.Fatalf("err = %v, want ErrMalformedInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID || rest != tt.wantMsg {
				t.Errorf("got (%q, %q), want (%q, %q)", id, rest, tt.wantID, tt.wantMsg)
			}
		})
	}
}

func TestExtractOffer(t *testing.T) {
	tests := []struct {
		message string
		want    int64
		found   bool
	}{
		{"is it still available?", 0, false},
		{"boleh nego?", 0, false},
		{"can we meet at 3?", 0, false},
		{"$150", 150, true},
		{"i can pay 150 dollars", 150, true},
		{"I'll offer $1,234.50", 1235, true},
		{"950 ribu boleh?", 950_000, true},
		{"950rb?", 950_000, true},
		{"1,5 juta gimana?", 1_500_000, true},
		{"2jt deh", 2_000_000, true},
		{"saya tawar 950.000", 950_000, true},
		{"bayar Rp 1.000.000 cash", 1_000_000, true},
		{"Rp1.300.000 final", 1_300_000, true},
		{"how about 800000", 800_000, true},
		{"1.000.000?", 1_000_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got, found := ExtractOffer(tt.message)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("offer = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount int64
		lang   language.Language
		want   string
	}{
		{1_400_000, language.ID, "Rp1.400.000"},
		{950_000, language.ID, "Rp950.000"},
		{0, language.ID, "Rp0"},
		{1_400_000, language.EN, "$1,400,000"},
		{150, language.EN, "$150"},
		{1_400_000, language.Unknown, "$1,400,000"},
	}

	for _, tt := range tests {
		if got := FormatPrice(tt.amount, tt.lang); got != tt.want {
			t.Errorf("FormatPrice(%d, %s) = %q, want %q", tt.amount, tt.lang, got, tt.want)
		}
	}
}
