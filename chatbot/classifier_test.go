package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return NewClassifier(rules)
}

func TestTransliterate(t *testing.T) {
	cases := map[string]string{
		"zahialga":   "захиалга",
		"tsag":       "цаг",
		"baina":      "байна",
		"shine":      "шинэ",
		"hurgelt":    "хургэлт",
		"yostoi":     "ёстой",
		"khaana 123": "хаана 123",
	}
	for in, want := range cases {
		assert.Equal(t, want, Transliterate(in), in)
	}
}

func TestPrepare_LatinIsTransliterated(t *testing.T) {
	text := Prepare("Zahialga HAANA")
	assert.Equal(t, "захиалга хаана", text.Normalized)
	assert.Equal(t, []string{"zahialga", "haana"}, text.Latin)

	text = Prepare("Үнэ хэд вэ?")
	assert.Equal(t, "үнэ хэд вэ", text.Normalized)
	assert.Equal(t, "унэ хэд вэ", text.Folded)
	assert.Empty(t, text.Latin)
}

func TestClassify_Intents(t *testing.T) {
	c := newTestClassifier(t)
	cases := []struct {
		text   string
		intent string
	}{
		{"Сайн байна уу", "greeting"},
		{"Миний захиалгын статус", "order_status"},
		{"Хүргэлтийн төлбөр хэд вэ?", "delivery_fee"},
		{"hurgelt hed ve", "delivery_fee"},
		{"Хүргэлт хийдэг үү", "delivery_info"},
		{"Гутал байгаа юу?", "stock_check"},
		{"ажилтантай холбогдмоор байна", "human_handoff"},
		{"захиалга буцаах боломжтой юу", "return_policy"},
		{"Ажлын цаг хэд хүртэл вэ", "hours"},
		{"Танай хаяг", "location"},
		{"qpay-аар төлж болох уу", "payment"},
		{"Баярлалаа", "thanks"},
	}
	for _, tc := range cases {
		res := c.Classify(tc.text)
		assert.Equal(t, tc.intent, res.Intent, "%q scores=%v", tc.text, res.Scores)
	}
}

func TestClassify_ScoreAndConfidence(t *testing.T) {
	c := newTestClassifier(t)

	res := c.Classify("Хүргэлтийн төлбөр хэд вэ?")
	require.Equal(t, "delivery_fee", res.Intent)
	// толбор + хэд + phrase "хүргэлтийн төлбөр"
	assert.Equal(t, 4, res.Score)
	// runner-up delivery_info: хүргэлт + хүргэ
	assert.InDelta(t, 4.0/6.0, res.Confidence, 1e-9)

	res = c.Classify("Сайн байна уу")
	assert.Equal(t, 3, res.Score)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestClassify_Unknown(t *testing.T) {
	c := newTestClassifier(t)
	for _, text := range []string{"", "   ", "asdfgh", "?!"} {
		res := c.Classify(text)
		assert.Equal(t, IntentUnknown, res.Intent, text)
		assert.Zero(t, res.Confidence)
	}
}

func TestClassify_NegativeKeywordVetoes(t *testing.T) {
	c := newTestClassifier(t)
	res := c.Classify("захиалга буцаах")
	for _, s := range res.Scores {
		assert.NotEqual(t, "order_status", s.Intent)
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	c := newTestClassifier(t)
	first := c.Classify("hurgelt hed ve")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Classify("hurgelt hed ve"))
	}
}

func TestClassify_TieGoesToLowerPriority(t *testing.T) {
	rules, err := ParseRules([]byte(`
intents:
  - name: zeta
    priority: 1
    keywords: [бараа]
  - name: alpha
    priority: 2
    keywords: [бараа]
  - name: beta
    priority: 2
    keywords: [бараа]
`))
	require.NoError(t, err)
	res := NewClassifier(rules).Classify("бараа")
	assert.Equal(t, "zeta", res.Intent)
	assert.Equal(t, 0.5, res.Confidence)

	rules.Intents = rules.Intents[1:]
	assert.Equal(t, "alpha", NewClassifier(rules).Classify("бараа").Intent)
}

func TestParseRules_Rejects(t *testing.T) {
	_, err := ParseRules([]byte(`intents: []`))
	assert.Error(t, err)

	_, err = ParseRules([]byte(`
intents:
  - name: a
    keywords: [x]
  - name: a
    keywords: [y]
`))
	assert.Error(t, err)

	_, err = ParseRules([]byte(`
intents:
  - name: empty
`))
	assert.Error(t, err)
}

func TestParseRules_FoldsKeywords(t *testing.T) {
	rules, err := ParseRules([]byte(`
intents:
  - name: stock
    keywords: [Үлдэгдэл]
    phrases: ["Байгаа  ЮУ?"]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"улдэгдэл"}, rules.Intents[0].Keywords)
	assert.Equal(t, []string{"байгаа юу"}, rules.Intents[0].Phrases)
	assert.Equal(t, 1, rules.MinScore)
}
