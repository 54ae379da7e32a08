package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

const (
	highKeywordWeight = 2
	lowKeywordPenalty = 3

	// DefaultThreshold applies when the rules file omits one.
	DefaultThreshold = 2
)

// KeywordRules is the weighted keyword table driving the rule scorer.
// high_priority maps category names to keyword lists; all categories are
// flattened into one scoring set.
type KeywordRules struct {
	HighPriority map[string][]string `json:"high_priority"`
	LowPriority  []string            `json:"low_priority"`
	Threshold    int                 `json:"threshold"`
}

// LoadRules reads and validates a keyword rules JSON file.
func LoadRules(path string) (*KeywordRules, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rules KeywordRules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if rules.Threshold == 0 {
		rules.Threshold = DefaultThreshold
	}
	if rules.Threshold < 0 {
		return nil, fmt.Errorf("invalid threshold %d (must be positive)", rules.Threshold)
	}
	if len(rules.HighPriority) == 0 {
		return nil, fmt.Errorf("rules file %s has no high_priority categories", path)
	}
	return &rules, nil
}

// Scorer scores free text against a keyword table. It is a pure function
// of (text, rules): no side effects, safe for concurrent use.
type Scorer struct {
	high      []*regexp.Regexp
	low       []*regexp.Regexp
	threshold int
}

// NewScorer compiles the keyword table into whole-word matchers.
// The flattened high-priority list is not deduplicated: a keyword listed
// under two categories scores twice.
func NewScorer(rules *KeywordRules) (*Scorer, error) {
	threshold := rules.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	s := &Scorer{threshold: threshold}

	// Sort category names so the flattened order is stable.
	categories := make([]string, 0, len(rules.HighPriority))
	for name := range rules.HighPriority {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	for _, name := range categories {
		for _, kw := range rules.HighPriority[name] {
			re, err := compileKeyword(kw)
			if err != nil {
				return nil, fmt.Errorf("high_priority.%s: %w", name, err)
			}
			s.high = append(s.high, re)
		}
	}
	for _, kw := range rules.LowPriority {
		re, err := compileKeyword(kw)
		if err != nil {
			return nil, fmt.Errorf("low_priority: %w", err)
		}
		s.low = append(s.low, re)
	}
	return s, nil
}

// compileKeyword builds a case-insensitive whole-word matcher for a keyword.
func compileKeyword(kw string) (*regexp.Regexp, error) {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return nil, fmt.Errorf("empty keyword")
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
	if err != nil {
		return nil, fmt.Errorf("compile keyword %q: %w", kw, err)
	}
	return re, nil
}

// Score returns the weighted keyword score for text: +2 for each
// high-priority keyword present as a whole word, -3 for each low-priority
// term present. Empty text scores 0.
func (s *Scorer) Score(text string) int {
	text = strings.ToLower(text)
	score := 0
	for _, re := range s.high {
		if re.MatchString(text) {
			score += highKeywordWeight
		}
	}
	for _, re := range s.low {
		if re.MatchString(text) {
			score -= lowKeywordPenalty
		}
	}
	return score
}

// IsHighPriority reports whether text scores at or above the threshold.
func (s *Scorer) IsHighPriority(text string) bool {
	return s.Score(text) >= s.threshold
}

// Threshold returns the score required for a high-priority decision.
func (s *Scorer) Threshold() int {
	return s.threshold
}
