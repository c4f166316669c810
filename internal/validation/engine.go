package validation

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/logging"
	"goresearch/internal/simulation"
)

// Engine turns a simulated two-arm outcome into summary statistics and a
// publication decision.
type Engine struct {
	cfg    config.ValidationPolicy
	logger *zap.Logger
}

func NewEngine(cfg config.ValidationPolicy, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logging.OrNop(logger)}
}

// Validate runs a Welch t-test over the arm summaries of sim. A simulation
// refused by the gate is never validated.
func (e *Engine) Validate(sim research.SimulationResult) (research.ValidationResult, error) {
	if !sim.EthicsPassed {
		return research.ValidationResult{}, core.ErrEthicsGateFailed
	}

	arms, err := readArms(sim.Output)
	if err != nil {
		return research.ValidationResult{}, err
	}

	data := e.welch(arms)
	result := research.ValidationResult{
		Data:          data,
		MeetsCriteria: e.MeetsCriteria(data),
	}
	e.logger.Debug("validation computed",
		zap.Float64("p_value", data[research.MetricPValue]),
		zap.Float64("effect_size", data[research.MetricEffectSize]),
		zap.Bool("meets_criteria", result.MeetsCriteria))
	return result, nil
}

// ValidateMetrics applies the criteria to precomputed metrics
func (e *Engine) ValidateMetrics(data map[string]float64) research.ValidationResult {
	copied := make(map[string]float64, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return research.ValidationResult{Data: copied, MeetsCriteria: e.MeetsCriteria(copied)}
}

// MeetsCriteria requires p below alpha, |effect size| at least the minimum
// and, when power is reported, power at least the minimum. A missing p-value
// or effect size fails, and so does any NaN or infinite value among the three.
func (e *Engine) MeetsCriteria(data map[string]float64) bool {
	p, ok := finite(data, research.MetricPValue)
	if !ok || p >= e.cfg.Alpha {
		return false
	}
	effect, ok := finite(data, research.MetricEffectSize)
	if !ok || math.Abs(effect) < e.cfg.MinEffectSize {
		return false
	}
	if _, present := data[research.MetricPower]; present {
		power, ok := finite(data, research.MetricPower)
		if !ok || power < e.cfg.MinPower {
			return false
		}
	}
	return true
}

type armSummary struct {
	mean, std, n float64
}

func readArms(out map[string]float64) ([2]armSummary, error) {
	keys := []string{
		simulation.OutTreatmentMean, simulation.OutTreatmentStd,
		simulation.OutBaselineMean, simulation.OutBaselineStd,
		simulation.OutReplicates,
	}
	for _, k := range keys {
		v, ok := out[k]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return [2]armSummary{}, fmt.Errorf("%w: missing or non-finite %s", core.ErrInvalidMetrics, k)
		}
	}
	n := out[simulation.OutReplicates]
	if n < 2 {
		return [2]armSummary{}, fmt.Errorf("%w: need at least 2 replicates, got %v", core.ErrInvalidMetrics, n)
	}
	return [2]armSummary{
		{mean: out[simulation.OutTreatmentMean], std: out[simulation.OutTreatmentStd], n: n},
		{mean: out[simulation.OutBaselineMean], std: out[simulation.OutBaselineStd], n: n},
	}, nil
}

// welch computes the two-sided Welch t-test, Cohen's d, the confidence
// interval of the mean difference and a normal-approximation power.
func (e *Engine) welch(arms [2]armSummary) map[string]float64 {
	t1, t2 := arms[0], arms[1]
	v1, v2 := t1.std*t1.std/t1.n, t2.std*t2.std/t2.n
	diff := t1.mean - t2.mean
	se := math.Sqrt(v1 + v2)

	pooled := math.Sqrt(((t1.n-1)*t1.std*t1.std + (t2.n-1)*t2.std*t2.std) / (t1.n + t2.n - 2))
	effect := 0.0
	if pooled > 0 {
		effect = diff / pooled
	}

	data := map[string]float64{
		research.MetricEffectSize: effect,
	}

	if se == 0 {
		// identical constant arms: no evidence of a difference unless the means differ
		p := 1.0
		if diff != 0 {
			p = 0
		}
		data[research.MetricPValue] = p
		data[research.MetricCILower] = diff
		data[research.MetricCIUpper] = diff
		data[research.MetricPower] = power(effect, t1.n, e.cfg.Alpha)
		data["t_statistic"] = 0
		data["df"] = t1.n + t2.n - 2
		return data
	}

	df := (v1 + v2) * (v1 + v2) / (v1*v1/(t1.n-1) + v2*v2/(t2.n-1))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	tStat := diff / se
	crit := tDist.Quantile(1 - e.cfg.Alpha/2)

	data[research.MetricPValue] = 2 * (1 - tDist.CDF(math.Abs(tStat)))
	data[research.MetricCILower] = diff - crit*se
	data[research.MetricCIUpper] = diff + crit*se
	data[research.MetricPower] = power(effect, t1.n, e.cfg.Alpha)
	data["t_statistic"] = tStat
	data["df"] = df
	return data
}

// power approximates two-sided power of a two-sample test with n per arm
func power(effect, n, alpha float64) float64 {
	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	return distuv.UnitNormal.CDF(math.Abs(effect)*math.Sqrt(n/2) - z)
}

func finite(data map[string]float64, key string) (float64, bool) {
	v, ok := data[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
