package simulation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/policy"
)

func newSimulator(t *testing.T) *Simulator {
	t.Helper()
	p := config.DefaultPolicy()
	gate, err := policy.NewGate(p.Gate, nil)
	require.NoError(t, err)
	return NewSimulator(gate, p.Simulation, nil)
}

func hyp(statement, protocol string, plausibility float64) research.Hypothesis {
	return research.Hypothesis{
		Statement:    statement,
		Plausibility: plausibility,
		Design: map[string]string{
			research.DesignProtocol:  protocol,
			research.DesignMaterials: "copper catalyst",
		},
	}
}

func TestSimulateApproved(t *testing.T) {
	s := newSimulator(t)
	h := hyp("Copper catalyst improves yield", "paired arms; measure yield", 0.8)

	res, err := s.Simulate(h)
	require.NoError(t, err)
	assert.True(t, res.EthicsPassed)
	assert.True(t, res.Verdict.Approved)

	for _, key := range []string{OutBaselineMean, OutBaselineStd, OutTreatmentMean, OutTreatmentStd, OutReplicates, MetricGrowthRate} {
		assert.Contains(t, res.Output, key)
	}
	assert.Equal(t, 30.0, res.Output[OutReplicates])
	assert.Greater(t, res.Output[OutTreatmentMean], res.Output[OutBaselineMean])

	// novelty 1 - 0.4 = 0.6; (0.6 - 0.2 + 0.5) / 3
	assert.InDelta(t, 0.3, res.Score, 1e-9)
}

func TestSimulateIsDeterministic(t *testing.T) {
	s := newSimulator(t)
	h := hyp("Copper catalyst improves yield", "paired arms", 0.8)

	a, err := s.Simulate(h)
	require.NoError(t, err)
	b, err := s.Simulate(h)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("simulation not deterministic (-a +b):\n%s", diff)
	}

	other, err := s.Simulate(hyp("Zinc catalyst improves yield", "paired arms", 0.8))
	require.NoError(t, err)
	assert.NotEqual(t, a.Output[OutBaselineMean], other.Output[OutBaselineMean])
}

func TestSimulateEnergyMetric(t *testing.T) {
	s := newSimulator(t)
	res, err := s.Simulate(hyp("Membrane reduces loss", "measure energy loss per cycle", 0.5))
	require.NoError(t, err)
	assert.Contains(t, res.Output, MetricEnergy)
	assert.NotContains(t, res.Output, MetricGrowthRate)
}

func TestSimulateRefusesBioweapon(t *testing.T) {
	s := newSimulator(t)
	res, err := s.Simulate(hyp("Bioweapon strain improves dispersal", "culture in sealed flasks", 0.9))
	require.NoError(t, err)

	assert.False(t, res.EthicsPassed)
	assert.False(t, res.Verdict.Approved)
	assert.True(t, res.Verdict.Has(research.IssueDualUseConcern))
	assert.Zero(t, res.Score)
	assert.Empty(t, res.Output)
}

func TestSimulateRefusesHumanSubjectsWithoutConsent(t *testing.T) {
	s := newSimulator(t)
	res, err := s.Simulate(hyp("Diet improves sleep", "recruit human volunteers", 0.6))
	require.NoError(t, err)
	assert.False(t, res.EthicsPassed)

	res, err = s.Simulate(hyp("Diet improves sleep", "recruit human volunteers under IRB approval with consent", 0.6))
	require.NoError(t, err)
	assert.True(t, res.EthicsPassed)
}
