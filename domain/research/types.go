package research

import (
	"fmt"
	"sort"
	"strings"
)

// DataSource selects which ingestion connector a run draws from
type DataSource string

const (
	SourcePaper   DataSource = "paper"
	SourcePatent  DataSource = "patent"
	SourceDataset DataSource = "dataset"
	SourceForum   DataSource = "forum"
)

// AllSources lists the accepted sources in canonical order
var AllSources = []DataSource{SourcePaper, SourcePatent, SourceDataset, SourceForum}

// ParseDataSource maps a lower-case name to a DataSource
func ParseDataSource(s string) (DataSource, error) {
	ds := DataSource(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSources {
		if ds == known {
			return ds, nil
		}
	}
	return "", fmt.Errorf("unknown data source %q", s)
}

// NormalizeSources removes duplicates and orders known sources canonically.
// Unknown values are kept, in input order, after the known ones so callers
// can still reject them.
func NormalizeSources(sources []DataSource) []DataSource {
	seen := make(map[DataSource]bool, len(sources))
	var unknown []DataSource
	for _, s := range sources {
		if seen[s] {
			continue
		}
		seen[s] = true
		if !s.Known() {
			unknown = append(unknown, s)
		}
	}
	out := make([]DataSource, 0, len(seen))
	for _, s := range AllSources {
		if seen[s] {
			out = append(out, s)
		}
	}
	return append(out, unknown...)
}

// Known reports whether s is one of AllSources, compared exactly
func (s DataSource) Known() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// Relation is the closed set of predicate tags attached to knowledge entities
type Relation string

const (
	RelationIsA      Relation = "IS_A"
	RelationImproves Relation = "IMPROVES"
	RelationReduces  Relation = "REDUCES"
	RelationEnables  Relation = "ENABLES"
	RelationRequires Relation = "REQUIRES"
	RelationBasedOn  Relation = "BASED_ON"
	RelationHasValue Relation = "HAS_VALUE"
)

// Metadata keys that carry load-bearing meaning
const (
	MetaTitle      = "title"
	MetaProvenance = "provenance"
	MetaLicense    = "license"
	MetaURL        = "url"
	MetaYear       = "year"
	MetaHash       = "hash"
	MetaTimestamp  = "timestamp"
)

// CuratedData is one ingested, normalized document
type CuratedData struct {
	Content      string            `json:"content"`
	Metadata     map[string]string `json:"metadata"`
	QualityScore float64           `json:"quality_score"`
}

// Provenance returns the provenance tag, or "unknown" when absent
func (d CuratedData) Provenance() string {
	if p := strings.TrimSpace(d.Metadata[MetaProvenance]); p != "" {
		return p
	}
	return "unknown"
}

// KnowledgeEntity is an aggregated (entity, relation) pair with its evidence score
type KnowledgeEntity struct {
	Entity        string   `json:"entity"`
	Relation      Relation `json:"relation"`
	Target        string   `json:"target,omitempty"`
	EvidenceScore float64  `json:"evidence_score"`
}

// Key identifies the entity for deduplication
func (e KnowledgeEntity) Key() EntityKey {
	return EntityKey{Entity: e.Entity, Relation: e.Relation}
}

// EntityKey is the uniqueness key of a KnowledgeEntity
type EntityKey struct {
	Entity   string
	Relation Relation
}

// Design keys every hypothesis carries
const (
	DesignProtocol  = "protocol"
	DesignMaterials = "materials"
	DesignMetrics   = "metrics"
)

// Hypothesis is a candidate research statement with an experimental design
type Hypothesis struct {
	Statement    string            `json:"statement"`
	Plausibility float64           `json:"plausibility"`
	Design       map[string]string `json:"design"`
}

// InspectableText concatenates statement and design values (in key order)
// lower-cased, which is what policy gates evaluate.
func (h Hypothesis) InspectableText() string {
	keys := make([]string, 0, len(h.Design))
	for k := range h.Design {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, h.Statement)
	for _, k := range keys {
		parts = append(parts, h.Design[k])
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// IssueTag is the closed vocabulary of policy issues
type IssueTag string

const (
	IssueSafetyRisk              IssueTag = "safety_risk"
	IssueBiasDetected            IssueTag = "bias_detected"
	IssueHumanSubjectsProtection IssueTag = "human_subjects_protection"
	IssueEnvironmentalImpact     IssueTag = "environmental_impact"
	IssueDualUseConcern          IssueTag = "dual_use_concern"
)

// EthicsVerdict is the outcome of one policy gate evaluation
type EthicsVerdict struct {
	Issues      []IssueTag `json:"issues"`
	Approved    bool       `json:"approved"`
	ReviewNotes string     `json:"review_notes"`
}

// Has reports whether tag fired
func (v EthicsVerdict) Has(tag IssueTag) bool {
	for _, i := range v.Issues {
		if i == tag {
			return true
		}
	}
	return false
}

// SimulationResult carries synthetic outcome metrics for one hypothesis
type SimulationResult struct {
	Hypothesis   Hypothesis         `json:"hypothesis"`
	Output       map[string]float64 `json:"output"`
	Score        float64            `json:"score"`
	EthicsPassed bool               `json:"ethics_passed"`
	Verdict      EthicsVerdict      `json:"verdict"`
}

// Validation metric keys
const (
	MetricPValue     = "p_value"
	MetricEffectSize = "effect_size"
	MetricCILower    = "ci_lower"
	MetricCIUpper    = "ci_upper"
	MetricPower      = "power"
)

// ValidationResult is the statistical summary and the criteria decision
type ValidationResult struct {
	Data          map[string]float64 `json:"data"`
	MeetsCriteria bool               `json:"meets_criteria"`
}

// LearningSummary is the dissemination output of a run
type LearningSummary struct {
	Report    string   `json:"report"`
	Artifacts []string `json:"artifacts"`
}
