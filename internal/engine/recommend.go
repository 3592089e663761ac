package engine

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/pkg/logger"
)

// RuleEngine appends operator-authored recommendations when a triage run
// matches a rule. A nil engine recommends nothing.
type RuleEngine struct {
	rules  []Rule
	logger logger.Logger
}

// Rule is one entry in the rulepack.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch lists the optional constraints a run must satisfy. Absent
// constraints match everything.
type RuleMatch struct {
	Service       string   `yaml:"service"`
	Kinds         []string `yaml:"kinds"`
	TitleContains []string `yaml:"title_contains"`
	MinScore      float64  `yaml:"min_score"`
}

// RuleFile is the YAML root structure.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads the rulepack at path. An empty path or a missing file
// disables the engine rather than failing.
func NewRuleEngine(path string, log logger.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RuleEngine{rules: file.Rules, logger: log}, nil
}

// Recommend returns the recommendations of every rule the run matches,
// deduplicated, in rulepack order.
func (e *RuleEngine) Recommend(service string, candidates []models.Candidate) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.Service != "" && !strings.EqualFold(rule.Match.Service, service) {
			continue
		}
		if len(rule.Match.Kinds) > 0 && !candidatesHaveKind(candidates, rule.Match.Kinds) {
			continue
		}
		if len(rule.Match.TitleContains) > 0 && !candidateTitlesContain(candidates, rule.Match.TitleContains) {
			continue
		}
		if rule.Match.MinScore > 0 && !candidatesReachScore(candidates, rule.Match.MinScore) {
			continue
		}
		matched = appendUnique(matched, rule.Recommendations...)
	}
	return matched
}

func candidatesHaveKind(candidates []models.Candidate, kinds []string) bool {
	for _, c := range candidates {
		for _, k := range kinds {
			if strings.EqualFold(string(c.Kind), k) {
				return true
			}
		}
	}
	return false
}

func candidateTitlesContain(candidates []models.Candidate, keywords []string) bool {
	for _, c := range candidates {
		title := strings.ToLower(c.Title)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

func candidatesReachScore(candidates []models.Candidate, min float64) bool {
	for _, c := range candidates {
		if c.Score >= min {
			return true
		}
	}
	return false
}

// recommendHeuristics emits the built-in next-step guidance in a fixed order.
func recommendHeuristics(symptom models.Symptom, clusters []models.LogCluster, events []models.EventItem) []string {
	var recs []string
	if pc := symptom.PercentChange; pc != nil && *pc > 20 {
		recs = append(recs, "Confirm the regression start time using the incident window and the symptom peak timestamp.")
	}
	if len(clusters) > 0 {
		recs = append(recs, "Inspect the top log signature(s) and trace correlation (if available) to identify the failing component.")
	}
	if len(events) > 0 {
		recs = append(recs, "Review deploy/config/autoscaling events near the incident start for temporal alignment.")
	}
	recs = append(recs, "If APM is enabled, pivot to the slowest endpoints and downstream services during the incident window.")
	return recs
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
