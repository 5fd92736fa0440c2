package chatbot

import (
	"sort"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

type Score struct {
	Intent string `json:"intent"`
	Score  int    `json:"score"`
}

type Result struct {
	Intent     string   `json:"intent"`
	Score      int      `json:"score"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
	Normalized string   `json:"normalized"`
	// Scores lists every intent that scored, best first.
	Scores []Score `json:"scores,omitempty"`
}

type Classifier struct {
	rules *RuleSet
	stop  map[string]bool
}

func NewClassifier(rules *RuleSet) *Classifier {
	stop := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		stop[utils.SearchKey(w)] = true
	}
	return &Classifier{rules: rules, stop: stop}
}

func scoreRule(r *Rule, text Text) int {
	for _, neg := range r.Negative {
		if text.hasPrefix(neg) {
			return 0
		}
	}
	score := 0
	for _, kw := range r.Keywords {
		if text.hasPrefix(kw) {
			score++
		}
	}
	for _, ph := range r.Phrases {
		if text.hasPhrase(ph) {
			score += 2
		}
	}
	return score
}

// Classify scores every intent and picks the best. Equal scores go to the
// lower priority, then the name, so the result never depends on map order.
func (c *Classifier) Classify(raw string) Result {
	text := Prepare(raw)
	result := Result{
		Intent:     IntentUnknown,
		Normalized: text.Normalized,
		Entities:   c.extractEntities(raw, text),
	}

	var scores []Score
	for i := range c.rules.Intents {
		if s := scoreRule(&c.rules.Intents[i], text); s > 0 {
			scores = append(scores, Score{Intent: c.rules.Intents[i].Name, Score: s})
		}
	}
	// Intents are already sorted by priority then name; a stable sort keeps that order for ties.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	result.Scores = scores

	if len(scores) == 0 || scores[0].Score < c.rules.MinScore {
		return result
	}
	top := scores[0]
	result.Intent = top.Intent
	result.Score = top.Score
	result.Confidence = 1
	if len(scores) > 1 {
		result.Confidence = float64(top.Score) / float64(top.Score+scores[1].Score)
	}
	return result
}
