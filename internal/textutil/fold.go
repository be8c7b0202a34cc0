package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases text and strips combining marks so "Actúa" matches "actua".
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return cases.Fold().String(folded)
}

// ContainsAnyWord reports whether any of the folded words or phrases occurs in
// text on word boundaries.
func ContainsAnyWord(text string, words []string) bool {
	haystack := " " + strings.Join(Tokenize(text), " ") + " "
	for _, word := range words {
		needle := strings.Join(Tokenize(word), " ")
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, " "+needle+" ") {
			return true
		}
	}
	return false
}

// Title converts text to title case using neutral language rules.
func Title(text string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(text))
}

// Clip trims text to at most limit runes, replacing the tail with an ellipsis
// when it had to be shortened. Whitespace runs are collapsed first.
func Clip(text string, limit int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if limit <= 0 {
		return ""
	}
	r := []rune(cleaned)
	if len(r) <= limit {
		return cleaned
	}
	if limit == 1 {
		return "…"
	}
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
