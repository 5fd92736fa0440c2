package chatbot

import (
	"regexp"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

type Entities struct {
	OrderNumber  string   `json:"order_number,omitempty"`
	TrackingCode string   `json:"tracking_code,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	ProductTerms []string `json:"product_terms,omitempty"`
}

var (
	orderPrefixPattern = regexp.MustCompile(`(?i)\bORD-?(\d+)\b`)
	orderHashPattern   = regexp.MustCompile(`#(\d{3,10})\b`)
	numberPattern      = regexp.MustCompile(`\b\d{3,10}\b`)
	phonePattern       = regexp.MustCompile(`\b[6-9]\d{7}\b`)
	trackingPattern    = regexp.MustCompile(`\b[0-9A-Za-z]{27}\b`)
)

var stopWords = []string{
	"би", "та", "танай", "манай", "энэ", "тэр", "юу", "вэ", "уу", "үү", "юм", "бол", "нь", "ба",
	"байна", "байгаа", "бий", "байх", "шиг", "ямар", "хэрэгтэй", "авах", "авъя", "гэсэн",
	"өгөөч", "өгнө", "болох", "мөн", "дээ", "даа", "хаана", "яаж", "бн", "бэ", "орд",
}

// extractEntities reads entities from the raw message, so '#' and 'ORD-'
// survive normalisation.
func (c *Classifier) extractEntities(raw string, text Text) Entities {
	var e Entities
	if m := orderPrefixPattern.FindStringSubmatch(raw); m != nil {
		e.OrderNumber = m[1]
	} else if m := orderHashPattern.FindStringSubmatch(raw); m != nil {
		e.OrderNumber = m[1]
	}
	if m := trackingPattern.FindString(raw); m != "" && hasLetterAndDigit(m) {
		e.TrackingCode = m
	}
	for _, p := range phonePattern.FindAllString(raw, -1) {
		if phone, err := utils.NormalizePhoneNumber(p, ""); err == nil && p != e.OrderNumber {
			e.Phone = phone
			break
		}
	}
	if e.OrderNumber == "" {
		for _, n := range numberPattern.FindAllString(raw, -1) {
			if e.Phone != "" && strings.HasSuffix(e.Phone, n) {
				continue
			}
			e.OrderNumber = n
			break
		}
	}
	e.ProductTerms = c.productTerms(text)
	return e
}

// productTerms keeps the words left after dropping digits, stop words and
// anything an intent keyword already explains.
func (c *Classifier) productTerms(text Text) []string {
	keywords := c.rules.keywords()
	isKeyword := func(tok string) bool {
		for _, kw := range keywords {
			if strings.HasPrefix(tok, kw) {
				return true
			}
		}
		return false
	}
	var terms []string
	for i, tok := range text.Tokens {
		if len([]rune(tok)) < 2 || isDigits(tok) || c.stop[tok] || isKeyword(tok) {
			continue
		}
		terms = append(terms, tok)
		// the Latin spelling lines up with its transliteration word for word
		if i < len(text.Latin) {
			terms = append(terms, text.Latin[i])
		}
	}
	return utils.UniqueSlice(terms)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		default:
			letter = true
		}
	}
	return letter && digit
}
