package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goresearch/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "PORT", "PIPELINE_TIMEOUT", "EXTRACT_WORKERS", "POLICY_FILE", "ARTIFACT_DIR", "DATABASE_DRIVER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.ExtractWorkers)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 0.6, cfg.Policy.Evidence.AdmissionThreshold)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PIPELINE_TIMEOUT", "5s")
	t.Setenv("EXTRACT_WORKERS", "8")
	t.Setenv("POLICY_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, 8, cfg.Pipeline.ExtractWorkers)
}

func TestLoadRejectsBadWorkers(t *testing.T) {
	t.Setenv("EXTRACT_WORKERS", "0")
	t.Setenv("POLICY_FILE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestParsePolicyMergesOverDefaults(t *testing.T) {
	data := []byte(`
gate:
  dual_use_terms: [weapon, surveillance]
evidence:
  admission_threshold: 0.7
validation:
  alpha: 0.01
`)
	policy, err := ParsePolicy(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"weapon", "surveillance"}, policy.Gate.DualUseTerms)
	assert.Equal(t, 0.7, policy.Evidence.AdmissionThreshold)
	assert.Equal(t, 0.01, policy.Validation.Alpha)
	// untouched keys keep defaults
	assert.Equal(t, DefaultPolicy().Gate.SafetyTerms, policy.Gate.SafetyTerms)
	assert.Equal(t, 4.0, policy.Quality.PenaltyDenominator)
	assert.Equal(t, 0.5, policy.Validation.MinEffectSize)
}

func TestParsePolicyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"threshold above one", "evidence:\n  admission_threshold: 1.5\n"},
		{"zero denominator", "quality:\n  penalty_denominator: 0\n"},
		{"bad regex", "quality:\n  pii_patterns: ['([a-z']\n"},
		{"single replicate", "simulation:\n  replicates: 1\n"},
		{"extra rule without expr", "gate:\n  extra_rules:\n    - tag: custom\n"},
		{"malformed yaml", "gate: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hypothesis:\n  max_hypotheses: 5\n"), 0o644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 5, policy.Hypothesis.MaxHypotheses)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultPolicyIsFreshCopy(t *testing.T) {
	a := DefaultPolicy()
	a.Gate.SafetyTerms[0] = "changed"
	assert.Equal(t, "dangerous", DefaultPolicy().Gate.SafetyTerms[0])
}
