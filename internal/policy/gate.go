package policy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/logging"
)

var issueNotes = map[research.IssueTag]string{
	research.IssueSafetyRisk:              "hazardous or dangerous material terms present",
	research.IssueBiasDetected:            "biased or discriminatory language present",
	research.IssueHumanSubjectsProtection: "human subjects involved without IRB, ethics or consent provisions",
	research.IssueEnvironmentalImpact:     "environmental exposure without an impact assessment",
	research.IssueDualUseConcern:          "potential military, surveillance or manipulation use",
}

// Gate evaluates text against an ordered list of rules. It holds no mutable
// state after construction and is safe for concurrent use.
type Gate struct {
	rules  []Rule
	logger *zap.Logger
}

// NewGate builds the five standard categories in their fixed order followed
// by any configured extra rules.
func NewGate(cfg config.GatePolicy, logger *zap.Logger) (*Gate, error) {
	rules := []Rule{
		NewPresenceRule(research.IssueSafetyRisk, cfg.SafetyTerms),
		NewPresenceRule(research.IssueBiasDetected, cfg.BiasTerms),
		NewSafeguardRule(research.IssueHumanSubjectsProtection, cfg.HumanSubjectTerms, cfg.HumanSubjectSafeguards),
		NewSafeguardRule(research.IssueEnvironmentalImpact, cfg.EnvironmentTerms, cfg.EnvironmentSafeguards),
		NewPresenceRule(research.IssueDualUseConcern, cfg.DualUseTerms),
	}
	for _, extra := range cfg.ExtraRules {
		rule, err := NewExprRule(research.IssueTag(extra.Tag), extra.Expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return NewGateWithRules(rules, logger), nil
}

// NewGateWithRules builds a gate over an explicit rule list
func NewGateWithRules(rules []Rule, logger *zap.Logger) *Gate {
	return &Gate{rules: rules, logger: logging.OrNop(logger)}
}

// Tags lists the categories in evaluation order
func (g *Gate) Tags() []research.IssueTag {
	tags := make([]research.IssueTag, len(g.rules))
	for i, r := range g.rules {
		tags[i] = r.Tag()
	}
	return tags
}

// Evaluate runs every rule over the lower-cased text
func (g *Gate) Evaluate(text string) research.EthicsVerdict {
	text = strings.ToLower(text)

	issues := make([]research.IssueTag, 0, len(g.rules))
	seen := make(map[research.IssueTag]bool, len(g.rules))
	for _, rule := range g.rules {
		tag := rule.Tag()
		if seen[tag] {
			continue
		}
		if rule.Matches(text) {
			issues = append(issues, tag)
			seen[tag] = true
		}
	}

	verdict := research.EthicsVerdict{
		Issues:      issues,
		Approved:    len(issues) == 0,
		ReviewNotes: renderNotes(issues),
	}
	if !verdict.Approved {
		g.logger.Debug("policy gate flagged content", zap.Any("issues", issues))
	}
	return verdict
}

// EvaluateHypothesis gates the statement and every design field together
func (g *Gate) EvaluateHypothesis(h research.Hypothesis) research.EthicsVerdict {
	return g.Evaluate(h.InspectableText())
}

func renderNotes(issues []research.IssueTag) string {
	if len(issues) == 0 {
		return "Approved: no policy issues detected."
	}
	parts := make([]string, len(issues))
	for i, tag := range issues {
		if note, ok := issueNotes[tag]; ok {
			parts[i] = fmt.Sprintf("%s (%s)", tag, note)
		} else {
			parts[i] = string(tag)
		}
	}
	return "Rejected: " + strings.Join(parts, "; ") + "."
}
