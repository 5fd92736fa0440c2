package chatbot

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gopkg.in/yaml.v3"
)

//go:embed intents.yaml
var defaultIntents []byte

const IntentUnknown = "unknown"

type Rule struct {
	Name     string   `yaml:"name"`
	Priority int      `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
	Phrases  []string `yaml:"phrases"`
	Negative []string `yaml:"negative"`
	Replies  []string `yaml:"replies"`

	// Missing replies are used when the intent needs data the message did not give.
	Missing []string `yaml:"missing"`
}

type RuleSet struct {
	MinScore int      `yaml:"min_score"`
	Fallback []string `yaml:"fallback"`
	Intents  []Rule   `yaml:"intents"`
}

// ParseRules reads a YAML rule set and normalises every keyword and phrase
// the same way incoming messages are normalised.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse intents: %w", err)
	}
	if rs.MinScore <= 0 {
		rs.MinScore = 1
	}
	if len(rs.Intents) == 0 {
		return nil, fmt.Errorf("parse intents: no intents defined")
	}
	seen := make(map[string]bool, len(rs.Intents))
	for i := range rs.Intents {
		r := &rs.Intents[i]
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" || r.Name == IntentUnknown {
			return nil, fmt.Errorf("parse intents: invalid intent name %q", r.Name)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("parse intents: duplicate intent %q", r.Name)
		}
		seen[r.Name] = true
		if len(r.Keywords) == 0 && len(r.Phrases) == 0 {
			return nil, fmt.Errorf("parse intents: %s has no keywords or phrases", r.Name)
		}
		r.Keywords = foldAll(r.Keywords)
		r.Phrases = foldAll(r.Phrases)
		r.Negative = foldAll(r.Negative)
	}
	sort.SliceStable(rs.Intents, func(i, j int) bool {
		if rs.Intents[i].Priority != rs.Intents[j].Priority {
			return rs.Intents[i].Priority < rs.Intents[j].Priority
		}
		return rs.Intents[i].Name < rs.Intents[j].Name
	})
	return &rs, nil
}

// foldAll keeps Latin entries as typed, so "qpay" matches the raw Latin token.
func foldAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if k := utils.SearchKey(v); k != "" {
			out = append(out, k)
		}
	}
	return utils.UniqueSlice(out)
}

func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultIntents)
}

// LoadRules reads path, or the embedded defaults when path is empty.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(data)
}

func (rs *RuleSet) Rule(name string) (*Rule, bool) {
	for i := range rs.Intents {
		if rs.Intents[i].Name == name {
			return &rs.Intents[i], true
		}
	}
	return nil, false
}

// keywords returns every keyword of every intent, used to strip intent words
// from product search terms.
func (rs *RuleSet) keywords() []string {
	var out []string
	for _, r := range rs.Intents {
		out = append(out, r.Keywords...)
	}
	return out
}
