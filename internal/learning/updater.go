package learning

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/internal/hooks"
	"goresearch/internal/logging"
	"goresearch/ports"
)

// Artifact base names, in the order they are reported
const (
	ArtifactData     = "data.csv"
	ArtifactProtocol = "protocol.md"
	ArtifactReport   = "report.html"
	ArtifactWorkbook = "results.xlsx"
)

// EvidenceEntity is the knowledge-store entity recorded for every validated run
const EvidenceEntity = "new_evidence"

// Input is what the learning stage consumes. Hypothesis is optional and only
// enriches the protocol section.
type Input struct {
	RunID      core.RunID
	Topic      string
	Hypothesis *research.Hypothesis
	Validation research.ValidationResult
}

// Updater disseminates a validated result and notifies the knowledge store and
// the retrain hook.
type Updater struct {
	store      ports.KnowledgeStorePort
	retrainer  ports.ModelRetrainPort
	sink       ports.ArtifactSinkPort
	dispatcher *hooks.Dispatcher
	logger     *zap.Logger
}

func NewUpdater(store ports.KnowledgeStorePort, retrainer ports.ModelRetrainPort, sink ports.ArtifactSinkPort, dispatcher *hooks.Dispatcher, logger *zap.Logger) *Updater {
	logger = logging.OrNop(logger)
	if store == nil {
		store = ports.NoopKnowledgeStore{}
	}
	if retrainer == nil {
		retrainer = ports.NoopRetrainer{}
	}
	if sink == nil {
		sink = ports.NoopArtifactSink{}
	}
	if dispatcher == nil {
		dispatcher = hooks.NewDispatcher(logger, 0)
	}
	return &Updater{
		store:      store,
		retrainer:  retrainer,
		sink:       sink,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Update builds the report and artifacts for in. The knowledge-store hook,
// the retrain hook and artifact persistence are each scheduled exactly once
// on the dispatcher; none of them can fail or delay the update.
func (u *Updater) Update(ctx context.Context, in Input) (research.LearningSummary, error) {
	if in.RunID == "" {
		in.RunID = core.NewRunID()
	}
	v := in.Validation

	u.scheduleHooks(ctx, in)

	protocol := ProtocolMarkdown(in)
	rendered, err := u.render(in, protocol)
	if err != nil {
		return research.LearningSummary{}, err
	}

	names := make([]string, 0, len(rendered))
	for i := range rendered {
		rendered[i].name = path.Join(string(in.RunID), rendered[i].name)
		names = append(names, rendered[i].name)
	}
	u.dispatcher.Go(ctx, "artifact_sink", func(ctx context.Context) error {
		return u.persist(ctx, rendered)
	})
	u.logger.Debug("learning hooks scheduled",
		zap.String("run_id", in.RunID.String()),
		zap.Int("artifacts", len(names)))

	return research.LearningSummary{
		Report:    Report(v) + "\n\n" + protocol,
		Artifacts: names,
	}, nil
}

// persist writes every artifact, carrying on past failures
func (u *Updater) persist(ctx context.Context, rendered []artifact) error {
	var errs []error
	for _, a := range rendered {
		if err := u.sink.Persist(ctx, a.name, a.content); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
		}
	}
	return errors.Join(errs...)
}

func (u *Updater) scheduleHooks(ctx context.Context, in Input) {
	v := in.Validation
	update := ports.EntityUpdate{
		Entity:   EvidenceEntity,
		Relation: research.RelationHasValue,
		Target:   in.Topic,
		Score:    evidenceScore(v),
		Provenance: map[string]string{
			research.MetaProvenance: "run:" + string(in.RunID),
		},
	}
	u.dispatcher.Go(ctx, "knowledge_store", func(ctx context.Context) error {
		return u.store.UpsertEntity(ctx, update)
	})

	snapshot := research.ValidationResult{Data: copyMetrics(v.Data), MeetsCriteria: v.MeetsCriteria}
	u.dispatcher.Go(ctx, "model_retrain", func(ctx context.Context) error {
		return u.retrainer.TriggerRetrain(ctx, snapshot)
	})
}

// evidenceScore is 1 - p, or 0 when p is unknown
func evidenceScore(v research.ValidationResult) float64 {
	p, ok := v.Data[research.MetricPValue]
	if !ok || p != p {
		return 0
	}
	s := 1 - p
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Report is the one-line dissemination summary
func Report(v research.ValidationResult) string {
	return fmt.Sprintf("Results: %s. Preprint ready.", formatMetrics(v.Data))
}

func formatMetrics(data map[string]float64) string {
	keys := sortedKeys(data)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.FormatFloat(data[k], 'g', 4, 64))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ProtocolMarkdown documents the tested hypothesis and its outcome
func ProtocolMarkdown(in Input) string {
	var b strings.Builder
	b.WriteString("# Protocol\n\n")
	if in.Topic != "" {
		fmt.Fprintf(&b, "**Topic:** %s\n\n", in.Topic)
	}
	if h := in.Hypothesis; h != nil {
		fmt.Fprintf(&b, "**Hypothesis:** %s\n\n", h.Statement)
		fmt.Fprintf(&b, "**Plausibility:** %.3f\n\n", h.Plausibility)
		for _, k := range sortedKeys(h.Design) {
			fmt.Fprintf(&b, "- **%s:** %s\n", k, h.Design[k])
		}
		if len(h.Design) > 0 {
			b.WriteString("\n")
		}
	}
	b.WriteString("## Results\n\n| metric | value |\n|---|---|\n")
	for _, k := range sortedKeys(in.Validation.Data) {
		fmt.Fprintf(&b, "| %s | %s |\n", k, strconv.FormatFloat(in.Validation.Data[k], 'g', 6, 64))
	}
	verdict := "criteria not met"
	if in.Validation.MeetsCriteria {
		verdict = "criteria met"
	}
	fmt.Fprintf(&b, "\n**Outcome:** %s\n", verdict)
	return b.String()
}

type artifact struct {
	name    string
	content []byte
}

func (u *Updater) render(in Input, protocol string) ([]artifact, error) {
	data, err := dataCSV(in.Validation.Data)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", ArtifactData, err)
	}
	workbook, err := resultsWorkbook(in)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", ArtifactWorkbook, err)
	}
	return []artifact{
		{ArtifactData, data},
		{ArtifactProtocol, []byte(protocol)},
		{ArtifactReport, reportHTML(protocol)},
		{ArtifactWorkbook, workbook},
	}, nil
}

func dataCSV(data map[string]float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"metric", "value"}); err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(data) {
		if err := w.Write([]string{k, strconv.FormatFloat(data[k], 'g', -1, 64)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func reportHTML(protocol string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage, Title: "Research report"})
	return markdown.ToHTML([]byte(protocol), p, r)
}

func resultsWorkbook(in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
		f.SetActiveSheet(idx)
	}

	rows := [][]interface{}{{"metric", "value"}}
	for _, k := range sortedKeys(in.Validation.Data) {
		rows = append(rows, []interface{}{k, in.Validation.Data[k]})
	}
	rows = append(rows, []interface{}{"meets_criteria", in.Validation.MeetsCriteria})

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyMetrics(data map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
