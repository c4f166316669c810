package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
	"goresearch/internal/errors"
	"goresearch/internal/learning"
	"goresearch/internal/logging"
	"goresearch/internal/quality"
)

// Stage collaborators. Each is satisfied by the matching internal package.
type (
	Ingester interface {
		Supports(source research.DataSource) bool
		Ingest(ctx context.Context, topic string, sources []research.DataSource) ([]research.CuratedData, error)
	}
	Modeler interface {
		Aggregate(ctx context.Context, docs []research.CuratedData) ([]research.KnowledgeEntity, error)
	}
	HypothesisGenerator interface {
		Generate(entities []research.KnowledgeEntity, topic string) []research.Hypothesis
	}
	EthicsGate interface {
		Evaluate(text string) research.EthicsVerdict
		EvaluateHypothesis(h research.Hypothesis) research.EthicsVerdict
	}
	Simulator interface {
		Simulate(h research.Hypothesis) (research.SimulationResult, error)
	}
	Validator interface {
		Validate(sim research.SimulationResult) (research.ValidationResult, error)
		ValidateMetrics(data map[string]float64) research.ValidationResult
	}
	Learner interface {
		Update(ctx context.Context, in learning.Input) (research.LearningSummary, error)
	}
	QualityScorer interface {
		Assess(content string, metadata map[string]string) quality.Assessment
	}
)

// Observer is told about every state change of every run. Calls happen on
// the run's goroutine and must not block.
type Observer interface {
	Transition(runID core.RunID, t stage.Transition)
}

// Stages groups the collaborators of one orchestrator
type Stages struct {
	Ingester  Ingester
	Modeler   Modeler
	Generator HypothesisGenerator
	Gate      EthicsGate
	Simulator Simulator
	Validator Validator
	Learner   Learner
	Quality   QualityScorer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTimeout bounds every Run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithObserver reports transitions to obs
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// Orchestrator sequences the six research stages and enforces the gates
// between them. It holds no per-run state, so one instance serves concurrent
// runs.
type Orchestrator struct {
	stages   Stages
	timeout  time.Duration
	tracer   trace.Tracer
	observer Observer
	logger   *zap.Logger
}

func NewOrchestrator(stages Stages, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages: stages,
		tracer: otel.Tracer("goresearch/pipeline"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives one topic through every stage. The returned Outcome is Done or
// Rejected; err is set only for invalid input, stage faults, timeouts and
// caller cancellation, in which case the Outcome (if any) is in the Failed
// state.
func (o *Orchestrator) Run(ctx context.Context, topic string, sources []research.DataSource) (*stage.Outcome, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, inputError(stage.StageIngestion, core.ErrEmptyTopic)
	}
	sources, err := o.checkSources(sources)
	if err != nil {
		return nil, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	runID, ok := stage.RunIDFrom(ctx)
	if !ok {
		runID = core.NewRunID()
		ctx = stage.WithRunID(ctx, runID)
	}
	ctx, span := o.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run_id", runID.String()),
		attribute.String("topic", topic),
	))
	defer span.End()

	r := &run{
		o:      o,
		logger: o.logger.With(zap.String("run_id", runID.String())),
		outcome: &stage.Outcome{
			RunID: runID,
			Topic: topic,
			State: stage.StateIngesting,
		},
	}
	r.logger.Info("pipeline started", zap.String("topic", topic), zap.Int("sources", len(sources)))

	outcome, err := r.execute(ctx, topic, sources)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.GetCode(err))
	}
	span.SetAttributes(attribute.String("state", string(r.outcome.State)))
	return outcome, err
}

// checkSources rejects any source without a connector, then orders the rest
// canonically. Values are matched exactly, so "Paper" is not "paper".
func (o *Orchestrator) checkSources(sources []research.DataSource) ([]research.DataSource, error) {
	for _, s := range sources {
		if !o.stages.Ingester.Supports(s) {
			return nil, inputError(stage.StageIngestion, fmt.Errorf("%w: %s", core.ErrUnknownSource, s))
		}
	}
	return research.NormalizeSources(sources), nil
}

// run carries the mutable state of a single Run
type run struct {
	o       *Orchestrator
	logger  *zap.Logger
	outcome *stage.Outcome
	result  stage.PipelineResult
}

func (r *run) execute(ctx context.Context, topic string, sources []research.DataSource) (*stage.Outcome, error) {
	st := r.o.stages

	// Ingesting -> Modeling
	err := r.o.exec(ctx, stage.StageIngestion, func(ctx context.Context) (err error) {
		r.result.Data, err = st.Ingester.Ingest(ctx, topic, sources)
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	r.advance(stage.StateModeling)

	// Modeling -> Hypothesizing
	err = r.o.exec(ctx, stage.StageModeling, func(ctx context.Context) (err error) {
		r.result.Entities, err = st.Modeler.Aggregate(ctx, r.result.Data)
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	r.advance(stage.StateHypothesizing)

	// Hypothesizing -> GateCheck1
	var report HypothesisReport
	err = r.o.exec(ctx, stage.StageHypothesis, func(ctx context.Context) error {
		report = r.o.review(st.Generator.Generate(r.result.Entities, topic))
		return nil
	})
	if err != nil {
		return r.fail(err)
	}
	r.advance(stage.StateGateCheck1)
	if len(report.Approved) == 0 {
		return r.reject(stage.StageHypothesis, stage.ReasonNoApprovedHypotheses, stage.RejectionPolicy, report.Issues())
	}
	r.result.Hypotheses = report.Approved
	r.advance(stage.StateSimulating)

	// Simulating -> GateCheck2; the first approved hypothesis is simulated
	candidate := report.Approved[0]
	err = r.o.exec(ctx, stage.StageSimulation, func(ctx context.Context) (err error) {
		r.result.Simulation, err = st.Simulator.Simulate(candidate)
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	r.advance(stage.StateGateCheck2)
	if !r.result.Simulation.EthicsPassed {
		return r.reject(stage.StageSimulation, stage.ReasonEthicsGateFailed, stage.RejectionPolicy, r.result.Simulation.Verdict.Issues)
	}
	r.advance(stage.StateValidating)

	// Validating -> Learning
	err = r.o.exec(ctx, stage.StageValidation, func(ctx context.Context) (err error) {
		r.result.Validation, err = st.Validator.Validate(r.result.Simulation)
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	if !r.result.Validation.MeetsCriteria {
		return r.reject(stage.StageValidation, stage.ReasonCriteriaNotMet, stage.RejectionCriteria, nil)
	}
	r.advance(stage.StateLearning)

	// Learning -> Done
	err = r.o.exec(ctx, stage.StageLearning, func(ctx context.Context) (err error) {
		r.result.Learning, err = st.Learner.Update(ctx, learning.Input{
			RunID:      r.outcome.RunID,
			Topic:      topic,
			Hypothesis: &candidate,
			Validation: r.result.Validation,
		})
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	r.advance(stage.StateDone)

	result := r.result
	r.outcome.Result = &result
	r.logger.Info("pipeline completed",
		zap.Int("documents", len(result.Data)),
		zap.Int("entities", len(result.Entities)),
		zap.Int("hypotheses", len(result.Hypotheses)))
	return r.outcome, nil
}

func (r *run) advance(to stage.State) {
	from := r.outcome.State
	if !stage.CanTransition(from, to) {
		panic(fmt.Sprintf("illegal pipeline transition %s -> %s", from, to))
	}
	t := stage.Transition{From: from, To: to}
	r.outcome.Transitions = append(r.outcome.Transitions, t)
	r.outcome.State = to
	if r.o.observer != nil {
		r.o.observer.Transition(r.outcome.RunID, t)
	}
}

func (r *run) reject(name stage.StageName, reason string, kind stage.RejectionKind, issues []research.IssueTag) (*stage.Outcome, error) {
	r.advance(stage.StateRejected)
	r.outcome.Rejection = &stage.Rejection{
		Stage:  name,
		Reason: reason,
		Kind:   kind,
		Issues: issues,
	}
	r.logger.Info("pipeline rejected",
		zap.String("stage", string(name)),
		zap.String("reason", reason),
		zap.String("kind", string(kind)))
	return r.outcome, nil
}

func (r *run) fail(err error) (*stage.Outcome, error) {
	r.advance(stage.StateFailed)
	fields := []zap.Field{
		zap.String("stage", errors.GetStage(err)),
		zap.String("code", errors.GetCode(err)),
		zap.Error(err),
	}
	if errors.IsCanceled(err) {
		r.logger.Info("pipeline canceled", fields...)
	} else {
		r.logger.Error("pipeline failed", fields...)
	}
	return r.outcome, err
}

// exec runs one stage inside its own span. Panics become stage faults, and an
// expired caller deadline becomes a timeout whether the stage noticed it or not.
func (o *Orchestrator) exec(ctx context.Context, name stage.StageName, fn func(ctx context.Context) error) (err error) {
	ctx, span := o.tracer.Start(ctx, "stage."+string(name))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errors.GetCode(err))
		}
		span.End()
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return classify(ctx, name, ctxErr)
	}

	err = o.guard(name, func() error { return fn(ctx) })
	if err == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return classify(ctx, name, ctxErr)
		}
		return nil
	}
	return classify(ctx, name, err)
}

// guard converts a panic inside fn into an error
func (o *Orchestrator) guard(name stage.StageName, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("stage panicked",
				zap.String("stage", string(name)),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			err = errors.StageFault(string(name), fmt.Errorf("panic: %v", rec))
		}
	}()
	return fn()
}

// classify maps a raw stage error onto exactly one failure class
func classify(ctx context.Context, name stage.StageName, err error) error {
	switch {
	case errors.IsStageFault(err) || errors.IsTimeout(err) || errors.IsInvalidInput(err) || errors.IsCanceled(err):
		return err
	case stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Timeout(string(name), err)
	case stderrors.Is(err, context.Canceled) || stderrors.Is(ctx.Err(), context.Canceled):
		return errors.Canceled(string(name), err)
	case core.IsInputError(err) || core.IsGateError(err):
		return inputError(name, err)
	default:
		return errors.StageFault(string(name), err)
	}
}

func inputError(name stage.StageName, err error) error {
	return &errors.AppError{
		Code:    errors.CodeInvalidInput,
		Message: "invalid input",
		Stage:   string(name),
		Cause:   err,
	}
}
