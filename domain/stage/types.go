package stage

import (
	"context"

	"goresearch/domain/core"
	"goresearch/domain/research"
)

// StageName represents a named stage in the pipeline
type StageName string

// Predefined stage names
const (
	StageIngestion  StageName = "ingestion"
	StageModeling   StageName = "modeling"
	StageHypothesis StageName = "hypothesis"
	StageSimulation StageName = "simulation"
	StageValidation StageName = "validation"
	StageLearning   StageName = "learning"
)

// State is a pipeline state-machine state
type State string

const (
	StateIngesting     State = "Ingesting"
	StateModeling      State = "Modeling"
	StateHypothesizing State = "Hypothesizing"
	StateGateCheck1    State = "GateCheck1"
	StateSimulating    State = "Simulating"
	StateGateCheck2    State = "GateCheck2"
	StateValidating    State = "Validating"
	StateLearning      State = "Learning"
	StateDone          State = "Done"
	StateRejected      State = "Rejected"
	StateFailed        State = "Failed"
)

// Terminal reports whether no further transition can leave s
func (s State) Terminal() bool {
	return s == StateDone || s == StateRejected || s == StateFailed
}

// next lists the legal successors of each non-terminal state
var next = map[State][]State{
	StateIngesting:     {StateModeling},
	StateModeling:      {StateHypothesizing},
	StateHypothesizing: {StateGateCheck1},
	StateGateCheck1:    {StateSimulating, StateRejected},
	StateSimulating:    {StateGateCheck2},
	StateGateCheck2:    {StateValidating, StateRejected},
	StateValidating:    {StateLearning, StateRejected},
	StateLearning:      {StateDone},
}

// CanTransition reports whether from -> to is a legal edge. Any non-terminal
// state may fall into Failed.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition records one edge taken by a run
type Transition struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// RejectionKind separates policy refusals from criteria refusals
type RejectionKind string

const (
	RejectionPolicy   RejectionKind = "policy"
	RejectionCriteria RejectionKind = "criteria"
)

// Rejection is the structured payload of the Rejected state
type Rejection struct {
	Stage  StageName           `json:"stage"`
	Reason string              `json:"reason"`
	Kind   RejectionKind       `json:"kind"`
	Issues []research.IssueTag `json:"issues,omitempty"`
}

// Rejection reasons
const (
	ReasonNoApprovedHypotheses = "no approved hypotheses"
	ReasonEthicsGateFailed     = "ethics gate failed"
	ReasonCriteriaNotMet       = "results do not meet criteria"
)

// PipelineResult bundles every stage output of a successful run
type PipelineResult struct {
	Data       []research.CuratedData     `json:"data"`
	Entities   []research.KnowledgeEntity `json:"entities"`
	Hypotheses []research.Hypothesis      `json:"hypotheses"`
	Simulation research.SimulationResult  `json:"simulation"`
	Validation research.ValidationResult  `json:"validation"`
	Learning   research.LearningSummary   `json:"learning"`
}

// Outcome is what a pipeline run reports back: either a result or a rejection
type Outcome struct {
	RunID       core.RunID      `json:"run_id"`
	Topic       string          `json:"topic"`
	State       State           `json:"state"`
	Result      *PipelineResult `json:"result,omitempty"`
	Rejection   *Rejection      `json:"rejection,omitempty"`
	Transitions []Transition    `json:"transitions"`
}

// Rejected reports whether the run ended in a rejection
func (o *Outcome) Rejected() bool {
	return o != nil && o.State == StateRejected
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx
func WithRunID(ctx context.Context, id core.RunID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id carried by ctx, if any
func RunIDFrom(ctx context.Context) (core.RunID, bool) {
	id, ok := ctx.Value(runIDKey{}).(core.RunID)
	return id, ok && !id.IsEmpty()
}
