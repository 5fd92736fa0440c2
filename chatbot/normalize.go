package chatbot

import (
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

// Text is one message prepared for matching.
type Text struct {
	// Normalized is lower-cased, punctuation-free and transliterated when typed in Latin.
	Normalized string
	// Folded is Normalized with ө/ү folded, used for every comparison.
	Folded string
	// Latin holds the untransliterated tokens of a Latin-typed message.
	Latin  []string
	Tokens []string
}

func Prepare(raw string) Text {
	normalized := utils.NormalizeText(raw)
	var latin []string
	if normalized != "" && !utils.HasCyrillic(normalized) {
		latin = strings.Fields(normalized)
		normalized = Transliterate(normalized)
	}
	folded := utils.FoldMongolian(normalized)
	return Text{
		Normalized: normalized,
		Folded:     folded,
		Latin:      latin,
		Tokens:     strings.Fields(folded),
	}
}

// candidates are the tokens a keyword may match: the folded ones plus the
// original Latin spelling.
func (t Text) candidates() []string {
	if len(t.Latin) == 0 {
		return t.Tokens
	}
	out := make([]string, 0, len(t.Tokens)+len(t.Latin))
	out = append(out, t.Tokens...)
	return append(out, t.Latin...)
}

func (t Text) hasPrefix(stem string) bool {
	for _, tok := range t.candidates() {
		if strings.HasPrefix(tok, stem) {
			return true
		}
	}
	return false
}

func (t Text) hasPhrase(phrase string) bool {
	if strings.Contains(t.Folded, phrase) {
		return true
	}
	return len(t.Latin) > 0 && strings.Contains(strings.Join(t.Latin, " "), phrase)
}
