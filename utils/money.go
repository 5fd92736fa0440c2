package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney accepts user-formatted amounts such as "20,000", "₮ 20,000",
// "MNT -20000" or "12500₮" and returns the decimal value.
func ParseMoney(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		for _, token := range []string{",", "₮", "MNT", "mnt", "төг", "Төг"} {
			s = strings.ReplaceAll(s, token, "")
		}
		s = strings.TrimSpace(s)
		neg := false
		if strings.HasPrefix(s, "-") {
			neg = true
			s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
		}
		var b strings.Builder
		for _, r := range s {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		clean := b.String()
		if clean == "" {
			return decimal.Zero, fmt.Errorf("invalid value")
		}
		if neg {
			clean = "-" + clean
		}
		return decimal.NewFromString(clean)
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	default:
		return decimal.Zero, fmt.Errorf("invalid value")
	}
}

// FormatMNT renders an amount the way receipts show it: 12,500₮.
func FormatMNT(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "₮"
	if neg {
		return "-" + out
	}
	return out
}
