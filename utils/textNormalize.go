package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var mongolianFold = strings.NewReplacer("ө", "о", "ү", "у", "ё", "е")

// NormalizeText applies NFKC, Mongolian lower-casing, turns punctuation and
// symbols into spaces and collapses whitespace.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Lower(language.Mongolian).String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// FoldMongolian maps ө/ү/ё to the vowels people type when the Mongolian
// keyboard layout is missing.
func FoldMongolian(s string) string {
	return mongolianFold.Replace(s)
}

// SearchKey is the folded, normalised form stored next to searchable names.
func SearchKey(parts ...string) string {
	return FoldMongolian(NormalizeText(strings.Join(parts, " ")))
}

// HasCyrillic reports whether any rune is Cyrillic.
func HasCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
