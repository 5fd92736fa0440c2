package chatbot

import "strings"

// Latin-typed Mongolian, two-letter spellings first.
var latinDigraphs = map[string]string{
	"kh": "х", "ts": "ц", "ch": "ч", "sh": "ш",
	"ya": "я", "yu": "ю", "yo": "ё", "ye": "е",
	"ai": "ай", "oi": "ой", "ui": "уй", "ei": "эй", "ii": "ий",
}

var latinLetters = map[rune]string{
	'a': "а", 'b': "б", 'c': "ц", 'd': "д", 'e': "э", 'f': "ф", 'g': "г",
	'h': "х", 'i': "и", 'j': "ж", 'k': "к", 'l': "л", 'm': "м", 'n': "н",
	'o': "о", 'p': "п", 'q': "к", 'r': "р", 's': "с", 't': "т", 'u': "у",
	'v': "в", 'w': "в", 'x': "х", 'y': "ы", 'z': "з",
}

// Transliterate converts lower-case Latin-typed Mongolian to Cyrillic.
// Digits, spaces and anything outside the table pass through unchanged.
func Transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if i+1 < len(runes) {
			if cyr, ok := latinDigraphs[string(runes[i:i+2])]; ok {
				b.WriteString(cyr)
				i++
				continue
			}
		}
		if cyr, ok := latinLetters[runes[i]]; ok {
			b.WriteString(cyr)
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}
