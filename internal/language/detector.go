// Package language classifies buyer messages as English or Indonesian so
// replies can be composed in the buyer's locale. Detection is lexical and
// fully deterministic: the same input always yields the same result.
package language

import "strings"

// Language is the detected locale of a buyer message.
type Language string

const (
	EN      Language = "en"
	ID      Language = "id"
	Unknown Language = ""
)

// indonesianLexicon holds common Indonesian words, including marketplace
// vocabulary (tawar, nego, COD) that buyers use when haggling.
var indonesianLexicon = []string{
	"apa", "yang", "ini", "itu", "saya", "kamu", "dengan", "untuk",
	"dari", "ke", "di", "pada", "adalah", "akan", "sudah", "belum",
	"bisa", "tidak", "ya", "berapa", "harga", "jual", "beli", "tawar",
	"nego", "cod", "transfer", "kirim", "barang", "kondisi", "masih",
	"ada", "gimana", "bagaimana", "ambil", "lokasi", "dimana", "kapan",
	"jam", "hari", "minggu", "bulan", "ribu", "juta", "boleh", "mau",
}

// detectionThreshold is the number of lexicon hits required before a message
// is classified as Indonesian.
const detectionThreshold = 2

// Detect classifies the language of a message. Messages with no usable
// signal return Unknown; callers fall back to the thread's previous
// language, then English.
func Detect(text string) Language {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	words := make(map[string]struct{}, len(fields))
	alpha := 0
	for _, f := range fields {
		words[f] = struct{}{}
		if f[0] >= 'a' && f[0] <= 'z' {
			alpha++
		}
	}
	// Empty or purely numeric messages carry no language signal.
	if alpha == 0 {
		return Unknown
	}

	hits := 0
	for _, w := range indonesianLexicon {
		if _, ok := words[w]; ok {
			hits++
			if hits >= detectionThreshold {
				return ID
			}
		}
	}

	// A lone Indonesian word in an otherwise unclassifiable one-word
	// message is still a stronger signal than nothing.
	if hits == 1 && len(fields) == 1 {
		return ID
	}
	return EN
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
}
