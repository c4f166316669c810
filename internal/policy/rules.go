package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"

	"goresearch/domain/research"
)

// Rule is one gate category: a tag plus a predicate over lower-cased text.
// A rule contributes at most one issue per evaluation.
type Rule interface {
	Tag() research.IssueTag
	Matches(text string) bool
}

// TermMatcher reports whether any term occurs at a word start. Terms match as
// prefixes so a stem like "stereotyp" covers its inflections.
type TermMatcher struct {
	re *regexp.Regexp
}

// NewTermMatcher compiles terms into a single alternation. An empty list never matches.
func NewTermMatcher(terms []string) *TermMatcher {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return &TermMatcher{}
	}
	return &TermMatcher{re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)}
}

// Match tests lower-cased text
func (m *TermMatcher) Match(text string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(text)
}

// SubstringMatcher reports whether any term occurs anywhere in the text,
// including inside a longer word.
type SubstringMatcher []string

func NewSubstringMatcher(terms []string) SubstringMatcher {
	m := make(SubstringMatcher, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			m = append(m, t)
		}
	}
	return m
}

// Match tests lower-cased text
func (m SubstringMatcher) Match(text string) bool {
	for _, t := range m {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// PresenceRule fires when any trigger term is present
type PresenceRule struct {
	tag      research.IssueTag
	triggers *TermMatcher
}

func NewPresenceRule(tag research.IssueTag, terms []string) *PresenceRule {
	return &PresenceRule{tag: tag, triggers: NewTermMatcher(terms)}
}

func (r *PresenceRule) Tag() research.IssueTag { return r.tag }

func (r *PresenceRule) Matches(text string) bool { return r.triggers.Match(text) }

// SafeguardRule fires when a trigger term is present and no safeguard term
// appears anywhere in the text.
type SafeguardRule struct {
	tag        research.IssueTag
	triggers   *TermMatcher
	safeguards SubstringMatcher
}

func NewSafeguardRule(tag research.IssueTag, terms, safeguards []string) *SafeguardRule {
	return &SafeguardRule{
		tag:        tag,
		triggers:   NewTermMatcher(terms),
		safeguards: NewSubstringMatcher(safeguards),
	}
}

func (r *SafeguardRule) Tag() research.IssueTag { return r.tag }

func (r *SafeguardRule) Matches(text string) bool {
	return r.triggers.Match(text) && !r.safeguards.Match(text)
}

// ExprRule is a configured category written as a CEL boolean over `text`.
// Evaluation errors count as a match so a broken rule fails closed.
type ExprRule struct {
	tag research.IssueTag
	prg cel.Program
}

// NewExprRule compiles expr against an environment exposing `text` as a string
func NewExprRule(tag research.IssueTag, expr string) (*ExprRule, error) {
	env, err := cel.NewEnv(cel.Variable("text", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("rule %s: compile %q: %w", tag, expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %s: expression must be boolean, got %s", tag, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule %s: program: %w", tag, err)
	}
	return &ExprRule{tag: tag, prg: prg}, nil
}

func (r *ExprRule) Tag() research.IssueTag { return r.tag }

func (r *ExprRule) Matches(text string) bool {
	out, _, err := r.prg.Eval(map[string]any{"text": text})
	if err != nil {
		return true
	}
	b, ok := out.Value().(bool)
	return !ok || b
}
