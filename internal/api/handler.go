package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
	"goresearch/internal/errors"
	"goresearch/internal/logging"
	"goresearch/internal/pipeline"
	"goresearch/internal/quality"
)

// Pipeline is the part of the orchestrator the HTTP contract exposes
type Pipeline interface {
	Run(ctx context.Context, topic string, sources []research.DataSource) (*stage.Outcome, error)
	Ingest(ctx context.Context, topic string, sources []research.DataSource) ([]research.CuratedData, error)
	Model(ctx context.Context, data []research.CuratedData) ([]research.KnowledgeEntity, error)
	Hypothesize(ctx context.Context, entities []research.KnowledgeEntity, topic string) (pipeline.HypothesisReport, error)
	Simulate(ctx context.Context, h research.Hypothesis) (research.SimulationResult, error)
	Validate(ctx context.Context, sim research.SimulationResult) (research.ValidationResult, error)
	ValidateMetrics(data map[string]float64) research.ValidationResult
	Learn(ctx context.Context, v research.ValidationResult) (research.LearningSummary, error)
	CheckEthics(text string) research.EthicsVerdict
	ScoreQuality(content string, metadata map[string]string) quality.Assessment
}

// Handler serves the research pipeline as JSON
type Handler struct {
	pipeline Pipeline
	events   *EventHub
	logger   *zap.Logger
}

// NewHandler creates a new pipeline handler. events may be nil, in which case
// the event stream is not served.
func NewHandler(p Pipeline, events *EventHub, logger *zap.Logger) *Handler {
	return &Handler{pipeline: p, events: events, logger: logging.OrNop(logger)}
}

// Register mounts every route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/pipeline/run", h.RunPipeline)
	r.POST("/ethics-check", h.CheckEthics)
	r.POST("/quality", h.ScoreQuality)
	r.POST("/validate/metrics", h.ValidateMetrics)
	if h.events != nil {
		r.GET("/pipeline/events", h.events.Stream)
	}

	stages := r.Group("/stages")
	stages.POST("/ingest", h.Ingest)
	stages.POST("/model", h.Model)
	stages.POST("/hypothesize", h.Hypothesize)
	stages.POST("/simulate", h.Simulate)
	stages.POST("/validate", h.Validate)
	stages.POST("/learn", h.Learn)
}

// NewRouter builds a gin engine with the handler mounted under /api
func NewRouter(p Pipeline, events *EventHub, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	NewHandler(p, events, logger).Register(r.Group("/api"))
	return r
}

type runRequest struct {
	Topic   string   `json:"topic" binding:"required"`
	Sources []string `json:"sources"`
	// RunID lets a client subscribe to /pipeline/events before starting
	RunID string `json:"run_id"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunPipeline answers 200 with the result, 422 with the rejection, or the
// status of the failure class
func (h *Handler) RunPipeline(c *gin.Context) {
	var req runRequest
	if !h.bind(c, &req) {
		return
	}
	sources, ok := h.parseSources(c, req.Sources)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if req.RunID != "" {
		runID, err := core.ParseRunID(req.RunID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(errors.CodeInvalidInput, err.Error(), ""))
			return
		}
		ctx = stage.WithRunID(ctx, runID)
	}

	outcome, err := h.pipeline.Run(ctx, req.Topic, sources)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if outcome.Rejected() {
		c.JSON(http.StatusUnprocessableEntity, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) Ingest(c *gin.Context) {
	var req runRequest
	if !h.bind(c, &req) {
		return
	}
	sources, ok := h.parseSources(c, req.Sources)
	if !ok {
		return
	}
	data, err := h.pipeline.Ingest(c.Request.Context(), req.Topic, sources)
	h.respond(c, gin.H{"data": data}, err)
}

func (h *Handler) Model(c *gin.Context) {
	var req struct {
		Data []research.CuratedData `json:"data"`
	}
	if !h.bind(c, &req) {
		return
	}
	entities, err := h.pipeline.Model(c.Request.Context(), req.Data)
	h.respond(c, gin.H{"entities": entities}, err)
}

func (h *Handler) Hypothesize(c *gin.Context) {
	var req struct {
		Entities []research.KnowledgeEntity `json:"entities"`
		Topic    string                     `json:"topic"`
	}
	if !h.bind(c, &req) {
		return
	}
	report, err := h.pipeline.Hypothesize(c.Request.Context(), req.Entities, req.Topic)
	h.respond(c, report, err)
}

func (h *Handler) Simulate(c *gin.Context) {
	var req struct {
		Hypothesis research.Hypothesis `json:"hypothesis"`
	}
	if !h.bind(c, &req) {
		return
	}
	res, err := h.pipeline.Simulate(c.Request.Context(), req.Hypothesis)
	h.respond(c, res, err)
}

func (h *Handler) Validate(c *gin.Context) {
	var req struct {
		Simulation research.SimulationResult `json:"simulation"`
	}
	if !h.bind(c, &req) {
		return
	}
	res, err := h.pipeline.Validate(c.Request.Context(), req.Simulation)
	h.respond(c, res, err)
}

func (h *Handler) ValidateMetrics(c *gin.Context) {
	var req struct {
		Data map[string]float64 `json:"data" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.pipeline.ValidateMetrics(req.Data))
}

func (h *Handler) Learn(c *gin.Context) {
	var req struct {
		Validation research.ValidationResult `json:"validation"`
	}
	if !h.bind(c, &req) {
		return
	}
	summary, err := h.pipeline.Learn(c.Request.Context(), req.Validation)
	h.respond(c, summary, err)
}

func (h *Handler) CheckEthics(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.pipeline.CheckEthics(req.Text))
}

func (h *Handler) ScoreQuality(c *gin.Context) {
	var req struct {
		Content  string            `json:"content"`
		Metadata map[string]string `json:"metadata"`
	}
	if !h.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.pipeline.ScoreQuality(req.Content, req.Metadata))
}

func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(errors.CodeInvalidInput, "malformed request: "+err.Error(), ""))
		return false
	}
	return true
}

func (h *Handler) parseSources(c *gin.Context, raw []string) ([]research.DataSource, bool) {
	sources := make([]research.DataSource, 0, len(raw))
	for _, s := range raw {
		ds, err := research.ParseDataSource(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(errors.CodeInvalidInput, err.Error(), string(stage.StageIngestion)))
			return nil, false
		}
		sources = append(sources, ds)
	}
	return sources, true
}

func (h *Handler) respond(c *gin.Context, body interface{}, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

// writeError maps a failure class to its status. Stage faults never expose
// their cause.
func (h *Handler) writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	stageName := errors.GetStage(err)

	switch code {
	case errors.CodeInvalidInput:
		c.JSON(http.StatusBadRequest, errorBody(code, inputMessage(err), stageName))
	case errors.CodeTimeout:
		h.logger.Warn("pipeline timed out", zap.String("stage", stageName))
		c.JSON(http.StatusGatewayTimeout, errorBody(code, "pipeline deadline exceeded", stageName))
	case errors.CodeCanceled:
		h.logger.Info("pipeline canceled by client", zap.String("stage", stageName))
		c.JSON(statusClientClosedRequest, errorBody(code, "pipeline canceled by caller", stageName))
	default:
		h.logger.Error("stage fault", zap.String("stage", stageName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody(errors.CodeStageFault, "stage failed", stageName))
	}
}

// statusClientClosedRequest is the non-standard status proxies use when the
// client went away before the response
const statusClientClosedRequest = 499

func inputMessage(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return strings.TrimSpace(err.Error())
}

func errorBody(code, message, stageName string) gin.H {
	body := gin.H{"code": code, "message": message}
	if stageName != "" {
		body["stage"] = stageName
	}
	return gin.H{"error": body}
}
