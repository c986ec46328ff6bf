package negotiation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hunters-code/adol-agents/internal/language"
)

// productIDPattern matches the id shapes the catalog issues: slug-like tokens
// with letters, digits, hyphens and underscores.
var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,63}$`)

// SplitProductID extracts the product id from the first whitespace-delimited
// token of a buyer message and returns the remainder of the message. A
// missing or malformed token yields ErrMalformedInput; callers answer with a
// usage hint and mutate no state.
func SplitProductID(message string) (productID, rest string, err error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty message", ErrMalformedInput)
	}

	token := trimmed
	if i := strings.IndexFunc(trimmed, isSpace); i >= 0 {
		token, rest = trimmed[:i], strings.TrimSpace(trimmed[i:])
	}
	token = strings.TrimPrefix(token, "#")
	if !productIDPattern.MatchString(token) {
		return "", "", fmt.Errorf("%w: %q is not a product id", ErrMalformedInput, token)
	}
	return token, rest, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// offerPattern pairs a compiled expression with the multiplier its captured
// number carries. Patterns are tried in order; the first match wins.
type offerPattern struct {
	re         *regexp.Regexp
	multiplier float64
}

var offerPatterns = []offerPattern{
	// USD forms.
	{regexp.MustCompile(`\$\s*(\d+(?:[.,]\d{3})*(?:\.\d{1,2})?)`), 1},
	{regexp.MustCompile(`(\d+(?:[.,]\d{3})*(?:\.\d{1,2})?)\s*dollars?`), 1},

	// IDR shorthand: "950 ribu" / "950rb", "1,5 juta" / "2jt".
	{regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)\s*(?:ribu|rb)\b`), 1_000},
	{regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)\s*(?:juta|jt)\b`), 1_000_000},

	// Explicit offer verbs in either language.
	{regexp.MustCompile(`(?:offer|pay|tawar|bayar)\s+(?:rp\.?\s*)?\$?\s*(\d+(?:[.,]\d{3})*)`), 1},

	// Rp-prefixed amounts: "Rp 1.000.000".
	{regexp.MustCompile(`rp\.?\s*(\d+(?:[.,]\d{3})*)`), 1},

	// Bare grouped amounts: "1.000.000". Requires at least one separator
	// group so stray small numbers ("jam 3") are not read as offers.
	{regexp.MustCompile(`\b(\d{1,3}(?:[.,]\d{3})+)\b`), 1},

	// Bare large amounts without separators: "950000".
	{regexp.MustCompile(`\b(\d{4,})\b`), 1},
}

// ExtractOffer scans a buyer message for a monetary offer. It understands USD
// forms ($150, 150 dollars), Indonesian shorthand (950 ribu, 1,5 juta) and
// plain rupiah amounts with or without an Rp prefix. The boolean reports
// whether any offer was found.
func ExtractOffer(message string) (int64, bool) {
	lower := strings.ToLower(message)
	for _, p := range offerPatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		amount, ok := parseAmount(m[1], p.multiplier)
		if !ok || amount <= 0 {
			continue
		}
		return amount, true
	}
	return 0, false
}

// parseAmount interprets digit groups separated by "." or "," as thousands
// when the multiplier is 1, and as a decimal fraction when the number carries
// a shorthand multiplier ("1,5 juta" is 1.5 million, not 15 thousand).
func parseAmount(raw string, multiplier float64) (int64, bool) {
	var v float64
	var err error
	if multiplier > 1 {
		v, err = strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	} else {
		stripped := strings.NewReplacer(".", "", ",", "").Replace(raw)
		// "$1,234.56": the final group of one or two digits after a dot
		// is cents, not thousands.
		if i := strings.LastIndex(raw, "."); i >= 0 && len(raw)-i-1 < 3 {
			whole := strings.NewReplacer(".", "", ",", "").Replace(raw[:i])
			stripped = whole + "." + raw[i+1:]
		}
		v, err = strconv.ParseFloat(stripped, 64)
	}
	if err != nil {
		return 0, false
	}
	return int64(math.Round(v * multiplier)), true
}

// FormatPrice renders a price in the buyer's language: dot-grouped rupiah for
// Indonesian, comma-grouped dollars otherwise.
func FormatPrice(amount int64, lang language.Language) string {
	if lang == language.ID {
		return "Rp" + groupDigits(amount, ".")
	}
	return "$" + groupDigits(amount, ",")
}

func groupDigits(v int64, sep string) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
