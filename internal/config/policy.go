package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"goresearch/internal/errors"
)

// Policy is the loaded table of gate vocabularies and numeric thresholds.
// It is passed explicitly to every component; nothing reads it globally.
type Policy struct {
	Gate       GatePolicy       `yaml:"gate" json:"gate"`
	Quality    QualityPolicy    `yaml:"quality" json:"quality"`
	Ingestion  IngestionPolicy  `yaml:"ingestion" json:"ingestion"`
	Evidence   EvidencePolicy   `yaml:"evidence" json:"evidence"`
	Hypothesis HypothesisPolicy `yaml:"hypothesis" json:"hypothesis"`
	Simulation SimulationPolicy `yaml:"simulation" json:"simulation"`
	Validation ValidationPolicy `yaml:"validation" json:"validation"`
}

// GatePolicy holds the term lists of the ethics gate. Terms match as word
// prefixes, so "discriminat" covers "discrimination".
type GatePolicy struct {
	SafetyTerms            []string    `yaml:"safety_terms" json:"safety_terms"`
	BiasTerms              []string    `yaml:"bias_terms" json:"bias_terms"`
	HumanSubjectTerms      []string    `yaml:"human_subject_terms" json:"human_subject_terms"`
	HumanSubjectSafeguards []string    `yaml:"human_subject_safeguards" json:"human_subject_safeguards"`
	EnvironmentTerms       []string    `yaml:"environment_terms" json:"environment_terms"`
	EnvironmentSafeguards  []string    `yaml:"environment_safeguards" json:"environment_safeguards"`
	DualUseTerms           []string    `yaml:"dual_use_terms" json:"dual_use_terms"`
	ExtraRules             []ExtraRule `yaml:"extra_rules" json:"extra_rules"`
}

// ExtraRule is an additional gate category expressed in CEL over `text`
type ExtraRule struct {
	Tag  string `yaml:"tag" json:"tag"`
	Expr string `yaml:"expr" json:"expr"`
}

// QualityPolicy configures the ingestion quality scorer
type QualityPolicy struct {
	PIIPatterns        []string `yaml:"pii_patterns" json:"pii_patterns"`
	PenaltyDenominator float64  `yaml:"penalty_denominator" json:"penalty_denominator"`
}

// IngestionPolicy configures the ingestion stage
type IngestionPolicy struct {
	QualityFloor float64 `yaml:"quality_floor" json:"quality_floor"`
	MaxDocuments int     `yaml:"max_documents" json:"max_documents"`
}

// EvidencePolicy configures evidence scoring and admission
type EvidencePolicy struct {
	AdmissionThreshold float64  `yaml:"admission_threshold" json:"admission_threshold"`
	RelevanceKeywords  []string `yaml:"relevance_keywords" json:"relevance_keywords"`
	StrongRelations    []string `yaml:"strong_relations" json:"strong_relations"`
	ContextWindow      int      `yaml:"context_window" json:"context_window"`
}

// HypothesisPolicy configures hypothesis generation
type HypothesisPolicy struct {
	MaxHypotheses int `yaml:"max_hypotheses" json:"max_hypotheses"`
}

// SimulationPolicy configures the synthetic experiment
type SimulationPolicy struct {
	Replicates   int     `yaml:"replicates" json:"replicates"`
	Risk         float64 `yaml:"risk" json:"risk"`
	Cost         float64 `yaml:"cost" json:"cost"`
	BaselineMean float64 `yaml:"baseline_mean" json:"baseline_mean"`
	NoiseSD      float64 `yaml:"noise_sd" json:"noise_sd"`
	EffectScale  float64 `yaml:"effect_scale" json:"effect_scale"`
}

// ValidationPolicy holds the publication criteria
type ValidationPolicy struct {
	Alpha         float64 `yaml:"alpha" json:"alpha"`
	MinEffectSize float64 `yaml:"min_effect_size" json:"min_effect_size"`
	MinPower      float64 `yaml:"min_power" json:"min_power"`
}

// DefaultPolicy returns a fresh copy of the built-in tables
func DefaultPolicy() *Policy {
	return &Policy{
		Gate: GatePolicy{
			SafetyTerms:            []string{"dangerous", "hazard", "toxic", "explosive", "lethal", "pathogen", "radioactive", "harmful"},
			BiasTerms:              []string{"discriminat", "biased", "racist", "sexist", "stereotyp"},
			HumanSubjectTerms:      []string{"human", "patient", "participant", "volunteer", "clinical trial", "children"},
			HumanSubjectSafeguards: []string{"irb", "ethics", "consent"},
			EnvironmentTerms:       []string{"environment", "ecosystem", "wildlife", "pollution", "habitat", "deforestation"},
			EnvironmentSafeguards:  []string{"impact", "assessment"},
			DualUseTerms:           []string{"military", "weapon", "bioweapon", "surveillance", "control", "manipulation"},
		},
		Quality: QualityPolicy{
			PIIPatterns: []string{
				`\b[A-Z][a-z]+ [A-Z][a-z]+\b`,
				`\b\d{3}-\d{2}-\d{4}\b`,
				`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
				`\(?\b\d{3}\)?[-. ]\d{3}[-. ]\d{4}\b`,
				`\b(?:\d{4}[- ]?){3}\d{4}\b`,
			},
			PenaltyDenominator: 4,
		},
		Ingestion: IngestionPolicy{
			QualityFloor: 0.5,
			MaxDocuments: 5,
		},
		Evidence: EvidencePolicy{
			AdmissionThreshold: 0.6,
			RelevanceKeywords:  []string{"significant", "novel", "improved", "demonstrate", "evidence", "result", "effective", "performance"},
			StrongRelations:    []string{"IMPROVES", "ENABLES", "BASED_ON", "HAS_VALUE"},
			ContextWindow:      50,
		},
		Hypothesis: HypothesisPolicy{
			MaxHypotheses: 3,
		},
		Simulation: SimulationPolicy{
			Replicates:   30,
			Risk:         0.2,
			Cost:         0.5,
			BaselineMean: 50,
			NoiseSD:      5,
			EffectScale:  10,
		},
		Validation: ValidationPolicy{
			Alpha:         0.05,
			MinEffectSize: 0.5,
			MinPower:      0.8,
		},
	}
}

// ParsePolicy decodes YAML over the defaults. Keys absent from data keep
// their default; lists present in data replace the default list.
func ParsePolicy(data []byte) (*Policy, error) {
	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, &errors.AppError{Code: errors.CodeConfigInvalid, Message: "malformed policy YAML", Cause: err}
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// LoadPolicy reads a policy file, or returns the defaults when path is empty
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.AppError{Code: errors.CodeConfigInvalid, Message: fmt.Sprintf("policy file %s unreadable", path), Cause: err}
	}
	return ParsePolicy(data)
}

// Validate rejects tables the stages cannot run with
func (p *Policy) Validate() error {
	if p == nil {
		return errors.ConfigInvalid("policy is required")
	}
	unit := map[string]float64{
		"ingestion.quality_floor":      p.Ingestion.QualityFloor,
		"evidence.admission_threshold": p.Evidence.AdmissionThreshold,
		"validation.alpha":             p.Validation.Alpha,
		"validation.min_power":         p.Validation.MinPower,
		"simulation.risk":              p.Simulation.Risk,
		"simulation.cost":              p.Simulation.Cost,
	}
	for key, v := range unit {
		if v < 0 || v > 1 {
			return errors.ConfigInvalid(fmt.Sprintf("%s must be within [0,1], got %v", key, v))
		}
	}
	if p.Quality.PenaltyDenominator <= 0 {
		return errors.ConfigInvalid("quality.penalty_denominator must be positive")
	}
	if p.Ingestion.MaxDocuments < 1 {
		return errors.ConfigInvalid("ingestion.max_documents must be at least 1")
	}
	if p.Evidence.ContextWindow < 0 {
		return errors.ConfigInvalid("evidence.context_window cannot be negative")
	}
	if p.Hypothesis.MaxHypotheses < 0 {
		return errors.ConfigInvalid("hypothesis.max_hypotheses cannot be negative")
	}
	if p.Simulation.Replicates < 2 {
		return errors.ConfigInvalid("simulation.replicates must be at least 2")
	}
	if p.Simulation.NoiseSD <= 0 {
		return errors.ConfigInvalid("simulation.noise_sd must be positive")
	}
	if p.Validation.MinEffectSize < 0 {
		return errors.ConfigInvalid("validation.min_effect_size cannot be negative")
	}
	for _, pattern := range p.Quality.PIIPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("quality.pii_patterns: %q does not compile: %v", pattern, err))
		}
	}
	for i, rule := range p.Gate.ExtraRules {
		if rule.Tag == "" || rule.Expr == "" {
			return errors.ConfigInvalid(fmt.Sprintf("gate.extra_rules[%d] needs tag and expr", i))
		}
	}
	return nil
}
