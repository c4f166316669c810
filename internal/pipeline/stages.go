package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
	"goresearch/internal/learning"
	"goresearch/internal/quality"
)

// HypothesisReport is the outcome of the hypothesis stage: every generated
// hypothesis, its verdict at the same index, and the approved subset in
// generation order.
type HypothesisReport struct {
	Hypotheses []research.Hypothesis    `json:"hypotheses"`
	Verdicts   []research.EthicsVerdict `json:"verdicts"`
	Approved   []research.Hypothesis    `json:"approved"`
}

// Issues is the union of issue tags across all verdicts, first seen first
func (r HypothesisReport) Issues() []research.IssueTag {
	var out []research.IssueTag
	seen := make(map[research.IssueTag]bool)
	for _, v := range r.Verdicts {
		for _, tag := range v.Issues {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	return out
}

func (o *Orchestrator) review(hypotheses []research.Hypothesis) HypothesisReport {
	report := HypothesisReport{
		Hypotheses: hypotheses,
		Verdicts:   make([]research.EthicsVerdict, 0, len(hypotheses)),
		Approved:   make([]research.Hypothesis, 0, len(hypotheses)),
	}
	for _, h := range hypotheses {
		v := o.stages.Gate.EvaluateHypothesis(h)
		report.Verdicts = append(report.Verdicts, v)
		if v.Approved {
			report.Approved = append(report.Approved, h)
		}
	}
	if report.Hypotheses == nil {
		report.Hypotheses = []research.Hypothesis{}
	}
	return report
}

// Ingest runs the ingestion stage alone
func (o *Orchestrator) Ingest(ctx context.Context, topic string, sources []research.DataSource) ([]research.CuratedData, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, inputError(stage.StageIngestion, core.ErrEmptyTopic)
	}
	sources, err := o.checkSources(sources)
	if err != nil {
		return nil, err
	}

	var data []research.CuratedData
	err = o.exec(ctx, stage.StageIngestion, func(ctx context.Context) (err error) {
		data, err = o.stages.Ingester.Ingest(ctx, topic, sources)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(data), nil
}

// Model runs evidence aggregation over curated documents
func (o *Orchestrator) Model(ctx context.Context, data []research.CuratedData) ([]research.KnowledgeEntity, error) {
	var entities []research.KnowledgeEntity
	err := o.exec(ctx, stage.StageModeling, func(ctx context.Context) (err error) {
		entities, err = o.stages.Modeler.Aggregate(ctx, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(entities), nil
}

// Hypothesize generates hypotheses and reviews each one. An empty approved
// set is not an error here; only a full run turns it into a rejection.
func (o *Orchestrator) Hypothesize(ctx context.Context, entities []research.KnowledgeEntity, topic string) (HypothesisReport, error) {
	var report HypothesisReport
	err := o.exec(ctx, stage.StageHypothesis, func(context.Context) error {
		report = o.review(o.stages.Generator.Generate(entities, topic))
		return nil
	})
	return report, err
}

// Simulate runs the simulation stage for one hypothesis
func (o *Orchestrator) Simulate(ctx context.Context, h research.Hypothesis) (research.SimulationResult, error) {
	var res research.SimulationResult
	err := o.exec(ctx, stage.StageSimulation, func(context.Context) (err error) {
		res, err = o.stages.Simulator.Simulate(h)
		return err
	})
	return res, err
}

// Validate runs the statistics on a simulation. A simulation that failed the
// ethics gate yields an invalid-input error wrapping core.ErrEthicsGateFailed.
func (o *Orchestrator) Validate(ctx context.Context, sim research.SimulationResult) (research.ValidationResult, error) {
	var res research.ValidationResult
	err := o.exec(ctx, stage.StageValidation, func(context.Context) (err error) {
		res, err = o.stages.Validator.Validate(sim)
		return err
	})
	return res, err
}

// ValidateMetrics applies the publication criteria to precomputed metrics
func (o *Orchestrator) ValidateMetrics(data map[string]float64) research.ValidationResult {
	return o.stages.Validator.ValidateMetrics(data)
}

// Learn disseminates a validation result. The run id comes from ctx when set.
func (o *Orchestrator) Learn(ctx context.Context, v research.ValidationResult) (research.LearningSummary, error) {
	runID, ok := stage.RunIDFrom(ctx)
	if !ok {
		runID = core.NewRunID()
	}
	var summary research.LearningSummary
	err := o.exec(ctx, stage.StageLearning, func(ctx context.Context) (err error) {
		summary, err = o.stages.Learner.Update(ctx, learning.Input{RunID: runID, Validation: v})
		return err
	})
	return summary, err
}

// CheckEthics evaluates free text against the policy gate
func (o *Orchestrator) CheckEthics(text string) research.EthicsVerdict {
	v := o.stages.Gate.Evaluate(text)
	if !v.Approved {
		o.logger.Info("ethics check refused", zap.Any("issues", v.Issues))
	}
	return v
}

// ScoreQuality rates a single document
func (o *Orchestrator) ScoreQuality(content string, metadata map[string]string) quality.Assessment {
	return o.stages.Quality.Assess(content, metadata)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
