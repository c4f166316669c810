package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
	apperrors "goresearch/internal/errors"
)

func TestStageEntriesAcceptEmptyInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data, err := f.orch.Ingest(ctx, "catalyst for CO2", nil)
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)

	entities, err := f.orch.Model(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, entities)
	assert.Empty(t, entities)

	report, err := f.orch.Hypothesize(ctx, nil, "catalyst for CO2")
	require.NoError(t, err)
	assert.NotNil(t, report.Hypotheses)
	assert.Empty(t, report.Approved)
	assert.Empty(t, report.Issues())
}

func TestIngestEntryRejectsUnknownSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Ingest(context.Background(), "catalyst for CO2", []research.DataSource{"Paper"})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.ErrorIs(t, err, core.ErrUnknownSource)
}

func TestStageEntriesChain(t *testing.T) {
	f := newFixture(t)
	ctx := stage.WithRunID(context.Background(), "manual-run")

	data, err := f.orch.Ingest(ctx, "catalyst for CO2", []research.DataSource{research.SourcePaper, research.SourcePatent})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	entities, err := f.orch.Model(ctx, data)
	require.NoError(t, err)
	require.NotEmpty(t, entities)

	report, err := f.orch.Hypothesize(ctx, entities, "catalyst for CO2")
	require.NoError(t, err)
	require.NotEmpty(t, report.Approved)
	assert.Len(t, report.Verdicts, len(report.Hypotheses))

	sim, err := f.orch.Simulate(ctx, report.Approved[0])
	require.NoError(t, err)
	require.True(t, sim.EthicsPassed)

	v, err := f.orch.Validate(ctx, sim)
	require.NoError(t, err)

	summary, err := f.orch.Learn(ctx, v)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Artifacts)
	assert.Equal(t, "manual-run/data.csv", summary.Artifacts[0])
}

func TestHypothesizeCollectsVerdicts(t *testing.T) {
	f := newFixture(t)
	entities := []research.KnowledgeEntity{
		{Entity: "copper catalyst", Relation: research.RelationImproves, Target: "yield", EvidenceScore: 0.9},
	}

	report, err := f.orch.Hypothesize(context.Background(), entities, "sleep quality in human volunteers")
	require.NoError(t, err)
	require.Len(t, report.Hypotheses, 1)
	assert.Empty(t, report.Approved)
	assert.Equal(t, []research.IssueTag{research.IssueHumanSubjectsProtection}, report.Issues())
}

func TestValidateRefusesEthicsFailedSimulation(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Validate(context.Background(), research.SimulationResult{EthicsPassed: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEthicsGateFailed)
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.False(t, apperrors.IsStageFault(err))
}

func TestSimulateBioweaponIsRefused(t *testing.T) {
	f := newFixture(t)
	sim, err := f.orch.Simulate(context.Background(), research.Hypothesis{
		Statement:    "Bioweapon strain improves dispersal",
		Plausibility: 0.9,
		Design:       map[string]string{research.DesignProtocol: "culture"},
	})
	require.NoError(t, err)
	assert.False(t, sim.EthicsPassed)
	assert.Zero(t, sim.Score)
}

func TestCheckEthicsAndQuality(t *testing.T) {
	f := newFixture(t)

	v := f.orch.CheckEthics("Study of explosive yields in surveillance drones")
	assert.False(t, v.Approved)
	assert.Contains(t, v.Issues, research.IssueSafetyRisk)
	assert.Contains(t, v.Issues, research.IssueDualUseConcern)

	a := f.orch.ScoreQuality("clean text", nil)
	assert.InDelta(t, 0.75, a.Score, 1e-9)
	assert.Equal(t, []string{"provenance"}, a.Issues)
}
