package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/logging"
	"goresearch/internal/policy"
)

// Output keys of a simulation
const (
	OutBaselineMean  = "baseline_mean"
	OutBaselineStd   = "baseline_std"
	OutTreatmentMean = "treatment_mean"
	OutTreatmentStd  = "treatment_std"
	OutReplicates    = "replicates"
	OutNovelty       = "novelty"
	OutRisk          = "risk"
	OutCost          = "cost"

	MetricEnergy     = "energy"
	MetricGrowthRate = "growth_rate"
)

// Simulator produces a synthetic two-arm experiment for a hypothesis. Runs
// are seeded from the hypothesis text so the same hypothesis always yields
// the same outcome.
type Simulator struct {
	gate   *policy.Gate
	cfg    config.SimulationPolicy
	logger *zap.Logger
}

func NewSimulator(gate *policy.Gate, cfg config.SimulationPolicy, logger *zap.Logger) *Simulator {
	return &Simulator{gate: gate, cfg: cfg, logger: logging.OrNop(logger)}
}

// Simulate re-checks the hypothesis against the gate and only then samples
// outcomes. A refused hypothesis returns EthicsPassed=false, an empty output
// and a zero score.
func (s *Simulator) Simulate(h research.Hypothesis) (research.SimulationResult, error) {
	verdict := s.gate.EvaluateHypothesis(h)
	if !verdict.Approved {
		s.logger.Info("simulation refused by policy gate", zap.Any("issues", verdict.Issues))
		return research.SimulationResult{
			Hypothesis:   h,
			Output:       map[string]float64{},
			Score:        0,
			EthicsPassed: false,
			Verdict:      verdict,
		}, nil
	}

	n := s.cfg.Replicates
	seed := core.Seed(h.InspectableText())
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	shift := s.cfg.EffectScale * clamp01(h.Plausibility)
	baseline := make([]float64, n)
	treatment := make([]float64, n)
	for i := 0; i < n; i++ {
		baseline[i] = s.cfg.BaselineMean + s.cfg.NoiseSD*rng.NormFloat64()
		treatment[i] = s.cfg.BaselineMean + shift + s.cfg.NoiseSD*rng.NormFloat64()
	}

	output := make(map[string]float64, 10)
	var err error
	if output[OutBaselineMean], output[OutBaselineStd], err = summarize(baseline); err != nil {
		return research.SimulationResult{}, fmt.Errorf("baseline arm: %w", err)
	}
	if output[OutTreatmentMean], output[OutTreatmentStd], err = summarize(treatment); err != nil {
		return research.SimulationResult{}, fmt.Errorf("treatment arm: %w", err)
	}
	output[OutReplicates] = float64(n)
	output[primaryMetric(h)] = output[OutTreatmentMean]

	novelty := 1 - 0.5*clamp01(h.Plausibility)
	output[OutNovelty] = novelty
	output[OutRisk] = s.cfg.Risk
	output[OutCost] = s.cfg.Cost

	return research.SimulationResult{
		Hypothesis:   h,
		Output:       output,
		Score:        clamp01((novelty - s.cfg.Risk + s.cfg.Cost) / 3),
		EthicsPassed: true,
		Verdict:      verdict,
	}, nil
}

func summarize(sample []float64) (mean, std float64, err error) {
	if mean, err = stats.Mean(sample); err != nil {
		return 0, 0, err
	}
	if std, err = stats.StandardDeviationSample(sample); err != nil {
		return 0, 0, err
	}
	return mean, std, nil
}

// primaryMetric names the domain outcome the treatment mean is reported under
func primaryMetric(h research.Hypothesis) string {
	if strings.Contains(strings.ToLower(h.Design[research.DesignProtocol]), MetricEnergy) {
		return MetricEnergy
	}
	return MetricGrowthRate
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
