package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntities_OrderNumber(t *testing.T) {
	c := newTestClassifier(t)
	cases := map[string]string{
		"ORD-000123 хаана явна":    "000123",
		"ord123 захиалга":          "123",
		"захиалга #1023":           "1023",
		"1023 дугаартай захиалга":  "1023",
		"#12345678 захиалга":       "12345678",
		"захиалга хаана байна":     "",
		"12 ширхэг авмаар байна":   "",
	}
	for text, want := range cases {
		assert.Equal(t, want, c.Classify(text).Entities.OrderNumber, text)
	}
}

func TestEntities_Phone(t *testing.T) {
	c := newTestClassifier(t)
	e := c.Classify("Миний утас 99112233").Entities
	assert.Equal(t, "+97699112233", e.Phone)
	assert.Empty(t, e.OrderNumber)

	e = c.Classify("#99112233 захиалга").Entities
	assert.Empty(t, e.Phone)
	assert.Equal(t, "99112233", e.OrderNumber)
}

func TestEntities_TrackingCode(t *testing.T) {
	c := newTestClassifier(t)
	e := c.Classify("track ptgUzEjfebzJ6sZWdoHIxrXl0gq").Entities
	assert.Equal(t, "ptgUzEjfebzJ6sZWdoHIxrXl0gq", e.TrackingCode)
}

func TestEntities_ProductTerms(t *testing.T) {
	c := newTestClassifier(t)
	assert.Equal(t, []string{"гутал"}, c.Classify("Гутал байгаа юу?").Entities.ProductTerms)
	assert.Equal(t, []string{"улаан", "цамц"}, c.Classify("улаан цамц ямар үнэтэй вэ").Entities.ProductTerms)
	assert.Equal(t, []string{"гутал", "gutal"}, c.Classify("gutal baigaa yu").Entities.ProductTerms)
}
