package quality

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goresearch/domain/research"
	"goresearch/internal/config"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	p := config.DefaultPolicy()
	s, err := NewScorer(p.Quality, p.Gate)
	require.NoError(t, err)
	return s
}

var goodMeta = map[string]string{
	research.MetaProvenance: "seed:paper",
	research.MetaLicense:    "CC-BY-4.0",
}

func TestScorerChecks(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name    string
		content string
		meta    map[string]string
		want    float64
		issues  []string
	}{
		{"clean", "the catalyst improves yield by 35%", goodMeta, 1.0, []string{}},
		{"name bigram", "as reported by Jane Smith the yield rose", goodMeta, 0.75, []string{CheckPII}},
		{"ssn", "record 123-45-6789 attached", goodMeta, 0.75, []string{CheckPII}},
		{"email", "contact lab@example.org for data", goodMeta, 0.75, []string{CheckPII}},
		{"phone", "call 555-123-4567 now", goodMeta, 0.75, []string{CheckPII}},
		{"card", "paid with 4111 1111 1111 1111", goodMeta, 0.75, []string{CheckPII}},
		{"bias", "a biased sample was used", goodMeta, 0.75, []string{CheckBias}},
		{"safety", "the toxic solvent", goodMeta, 0.75, []string{CheckSafety}},
		{"unknown provenance", "clean text", map[string]string{research.MetaProvenance: "unknown", research.MetaLicense: "MIT"}, 0.75, []string{CheckProvenance}},
		{"missing license", "clean text", map[string]string{research.MetaProvenance: "seed:paper"}, 0.75, []string{CheckProvenance}},
		{"nil metadata", "clean text", nil, 0.75, []string{CheckProvenance}},
		{
			"everything",
			"Jane Smith wrote a biased note on toxic waste",
			nil,
			0.0,
			[]string{CheckPII, CheckBias, CheckSafety, CheckProvenance},
		},
		{"multiple pii counts once", "Jane Smith 123-45-6789", goodMeta, 0.75, []string{CheckPII}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.Assess(tt.content, tt.meta)
			assert.InDelta(t, tt.want, a.Score, 1e-9)
			assert.Equal(t, tt.issues, a.Issues)
			assert.InDelta(t, tt.want, s.Score(tt.content, tt.meta), 1e-9)
		})
	}
}

func TestScorerCustomDenominator(t *testing.T) {
	p := config.DefaultPolicy()
	p.Quality.PenaltyDenominator = 2
	s, err := NewScorer(p.Quality, p.Gate)
	require.NoError(t, err)

	// three issues over a denominator of two floors at zero
	assert.Equal(t, 0.0, s.Score("toxic and biased", nil))
}

func TestScorerRejectsBadPattern(t *testing.T) {
	p := config.DefaultPolicy()
	p.Quality.PIIPatterns = []string{"("}
	_, err := NewScorer(p.Quality, p.Gate)
	assert.Error(t, err)
}

func TestScorerProperties(t *testing.T) {
	s := newTestScorer(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("score is within [0,1]", prop.ForAll(
		func(content, provenance, license string) bool {
			score := s.Score(content, map[string]string{
				research.MetaProvenance: provenance,
				research.MetaLicense:    license,
			})
			return score >= 0 && score <= 1
		},
		gen.AnyString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("unknown provenance without license scores at most 0.75", prop.ForAll(
		func(content string) bool {
			return s.Score(content, map[string]string{research.MetaProvenance: "unknown"}) <= 0.75
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
