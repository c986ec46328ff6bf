package negotiation

import (
	"regexp"
	"strings"
)

// factAspect maps the vocabulary of a product question, in both languages, to
// a canonical fact key. Seller answers are stored and matched under that key,
// so the same question never escalates twice.
type factAspect struct {
	key      string
	triggers []string
}

var factAspects = []factAspect{
	{"battery_health", []string{"battery", "baterai", "batre", "batere"}},
	{"charging_port_condition", []string{"charging port", "charger port", "port", "colokan", "lubang cas", "charging"}},
	{"screen_condition", []string{"screen", "display", "layar", "lcd", "crack", "retak"}},
	{"body_condition", []string{"scratch", "scratches", "dent", "lecet", "goresan", "mulus", "body"}},
	{"warranty_status", []string{"warranty", "garansi"}},
	{"accessories_included", []string{"accessories", "box", "charger", "kelengkapan", "dus", "fullset", "full set"}},
	{"purchase_date", []string{"how old", "bought", "purchase date", "umur", "beli kapan", "tahun berapa"}},
	{"defects", []string{"defect", "issue", "problem", "broken", "rusak", "minus", "kendala", "cacat"}},
}

var questionMarkers = []string{
	// English interrogatives.
	"how", "what", "when", "where", "why", "which", "is ", "are ", "does ",
	"do ", "can ", "any ",
	// Indonesian interrogatives.
	"apa", "apakah", "berapa", "gimana", "bagaimana", "kapan", "dimana",
	"kenapa", "masih", "ada ",
}

// IsQuestion reports whether a buyer message reads as a question.
func IsQuestion(message string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(message))
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "?") {
		return true
	}
	for _, marker := range questionMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// MatchFactAspect identifies which product aspect a message asks about and
// returns its canonical fact key. Only aspect-specific questions match;
// generic availability chatter does not.
func MatchFactAspect(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, aspect := range factAspects {
		for _, trigger := range aspect.triggers {
			if containsWord(lower, trigger) {
				return aspect.key, true
			}
		}
	}
	return "", false
}

// AnswerFromFacts resolves an aspect question against recorded seller facts.
// It returns the stored answer and the fact key it matched.
func AnswerFromFacts(message string, facts map[string]string) (answer, factKey string, ok bool) {
	key, matched := MatchFactAspect(message)
	if !matched {
		return "", "", false
	}
	if value, exists := facts[key]; exists && strings.TrimSpace(value) != "" {
		return value, key, true
	}
	return "", key, false
}

// NormalizeFactKey canonicalizes a seller-supplied key: lowercased,
// non-alphanumerics collapsed to single underscores.
func NormalizeFactKey(key string) string {
	lower := strings.ToLower(strings.TrimSpace(key))
	cleaned := nonFactKeyRunes.ReplaceAllString(lower, "_")
	return strings.Trim(cleaned, "_")
}

var nonFactKeyRunes = regexp.MustCompile(`[^a-z0-9]+`)

// containsWord matches a trigger on word boundaries so "port" does not fire
// on "important".
func containsWord(text, trigger string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], trigger)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(trigger)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
