package quality

import (
	"math"
	"regexp"
	"strings"

	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/policy"
)

// Check names, reported by Assess
const (
	CheckPII        = "pii"
	CheckBias       = "bias"
	CheckSafety     = "safety"
	CheckProvenance = "provenance"
)

// Assessment itemizes which checks fired for one document
type Assessment struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues"`
}

// Scorer rates ingested content with four independent binary checks. Each
// triggered check costs 1/denominator of the range.
type Scorer struct {
	pii         []*regexp.Regexp
	bias        *policy.TermMatcher
	safety      *policy.TermMatcher
	denominator float64
}

// NewScorer builds a scorer from the quality table and the gate vocabularies
func NewScorer(q config.QualityPolicy, gate config.GatePolicy) (*Scorer, error) {
	patterns := make([]*regexp.Regexp, 0, len(q.PIIPatterns))
	for _, p := range q.PIIPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	denominator := q.PenaltyDenominator
	if denominator <= 0 {
		denominator = 4
	}
	return &Scorer{
		pii:         patterns,
		bias:        policy.NewTermMatcher(gate.BiasTerms),
		safety:      policy.NewTermMatcher(gate.SafetyTerms),
		denominator: denominator,
	}, nil
}

// Score returns max(0, 1 - issues/denominator)
func (s *Scorer) Score(content string, metadata map[string]string) float64 {
	return s.Assess(content, metadata).Score
}

// Assess runs the checks and reports which ones fired
func (s *Scorer) Assess(content string, metadata map[string]string) Assessment {
	lower := strings.ToLower(content)
	issues := make([]string, 0, 4)

	// PII patterns are case sensitive (name bigrams) so they see the original text
	for _, re := range s.pii {
		if re.MatchString(content) {
			issues = append(issues, CheckPII)
			break
		}
	}
	if s.bias.Match(lower) {
		issues = append(issues, CheckBias)
	}
	if s.safety.Match(lower) {
		issues = append(issues, CheckSafety)
	}
	if !hasProvenance(metadata) {
		issues = append(issues, CheckProvenance)
	}

	return Assessment{
		Score:  math.Max(0, 1-float64(len(issues))/s.denominator),
		Issues: issues,
	}
}

func hasProvenance(metadata map[string]string) bool {
	provenance := strings.TrimSpace(metadata[research.MetaProvenance])
	license := strings.TrimSpace(metadata[research.MetaLicense])
	return provenance != "" && !strings.EqualFold(provenance, "unknown") && license != ""
}
