package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
	apperrors "goresearch/internal/errors"
	"goresearch/internal/pipeline"
	"goresearch/internal/quality"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockPipeline struct{ mock.Mock }

func (m *mockPipeline) Run(ctx context.Context, topic string, sources []research.DataSource) (*stage.Outcome, error) {
	args := m.Called(ctx, topic, sources)
	out, _ := args.Get(0).(*stage.Outcome)
	return out, args.Error(1)
}

func (m *mockPipeline) Ingest(ctx context.Context, topic string, sources []research.DataSource) ([]research.CuratedData, error) {
	args := m.Called(ctx, topic, sources)
	out, _ := args.Get(0).([]research.CuratedData)
	return out, args.Error(1)
}

func (m *mockPipeline) Model(ctx context.Context, data []research.CuratedData) ([]research.KnowledgeEntity, error) {
	args := m.Called(ctx, data)
	out, _ := args.Get(0).([]research.KnowledgeEntity)
	return out, args.Error(1)
}

func (m *mockPipeline) Hypothesize(ctx context.Context, entities []research.KnowledgeEntity, topic string) (pipeline.HypothesisReport, error) {
	args := m.Called(ctx, entities, topic)
	return args.Get(0).(pipeline.HypothesisReport), args.Error(1)
}

func (m *mockPipeline) Simulate(ctx context.Context, h research.Hypothesis) (research.SimulationResult, error) {
	args := m.Called(ctx, h)
	return args.Get(0).(research.SimulationResult), args.Error(1)
}

func (m *mockPipeline) Validate(ctx context.Context, sim research.SimulationResult) (research.ValidationResult, error) {
	args := m.Called(ctx, sim)
	return args.Get(0).(research.ValidationResult), args.Error(1)
}

func (m *mockPipeline) ValidateMetrics(data map[string]float64) research.ValidationResult {
	return m.Called(data).Get(0).(research.ValidationResult)
}

func (m *mockPipeline) Learn(ctx context.Context, v research.ValidationResult) (research.LearningSummary, error) {
	args := m.Called(ctx, v)
	return args.Get(0).(research.LearningSummary), args.Error(1)
}

func (m *mockPipeline) CheckEthics(text string) research.EthicsVerdict {
	return m.Called(text).Get(0).(research.EthicsVerdict)
}

func (m *mockPipeline) ScoreQuality(content string, metadata map[string]string) quality.Assessment {
	return m.Called(content, metadata).Get(0).(quality.Assessment)
}

func do(t *testing.T, p Pipeline, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	NewRouter(p, nil, nil).ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRunPipelineStatuses(t *testing.T) {
	sources := []research.DataSource{research.SourcePaper}
	tests := []struct {
		name    string
		outcome *stage.Outcome
		err     error
		status  int
		code    string
	}{
		{
			name:    "done",
			outcome: &stage.Outcome{State: stage.StateDone, Result: &stage.PipelineResult{}},
			status:  http.StatusOK,
		},
		{
			name: "rejected",
			outcome: &stage.Outcome{State: stage.StateRejected, Rejection: &stage.Rejection{
				Stage: stage.StageHypothesis, Reason: stage.ReasonNoApprovedHypotheses, Kind: stage.RejectionPolicy,
			}},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "stage fault",
			err:    apperrors.StageFault("modeling", errors.New("secret internal detail")),
			status: http.StatusInternalServerError,
			code:   apperrors.CodeStageFault,
		},
		{
			name:   "timeout",
			err:    apperrors.Timeout("simulation", context.DeadlineExceeded),
			status: http.StatusGatewayTimeout,
			code:   apperrors.CodeTimeout,
		},
		{
			name:   "canceled",
			err:    apperrors.Canceled("modeling", context.Canceled),
			status: 499,
			code:   apperrors.CodeCanceled,
		},
		{
			name:   "invalid input",
			err:    &apperrors.AppError{Code: apperrors.CodeInvalidInput, Message: "invalid input", Stage: "ingestion", Cause: core.ErrEmptyTopic},
			status: http.StatusBadRequest,
			code:   apperrors.CodeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(mockPipeline)
			p.On("Run", mock.Anything, "catalyst for CO2", sources).Return(tt.outcome, tt.err)

			w := do(t, p, http.MethodPost, "/api/pipeline/run", `{"topic":"catalyst for CO2","sources":["paper"]}`)
			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "secret internal detail")
			if tt.code != "" {
				errBody := decode(t, w)["error"].(map[string]interface{})
				assert.Equal(t, tt.code, errBody["code"])
			}
			p.AssertExpectations(t)
		})
	}
}

func TestRunPipelineRejectsBadRequests(t *testing.T) {
	p := new(mockPipeline)

	w := do(t, p, http.MethodPost, "/api/pipeline/run", `{"topic":"x","sources":["blog"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, p, http.MethodPost, "/api/pipeline/run", `{"sources":["paper"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, p, http.MethodPost, "/api/pipeline/run", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateMetricsEndpoint(t *testing.T) {
	p := new(mockPipeline)
	data := map[string]float64{"p_value": 0.2, "effect_size": 0.9}
	p.On("ValidateMetrics", data).Return(research.ValidationResult{Data: data, MeetsCriteria: false})

	w := do(t, p, http.MethodPost, "/api/validate/metrics", `{"data":{"p_value":0.2,"effect_size":0.9}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["meets_criteria"])
}

func TestEthicsCheckEndpoint(t *testing.T) {
	p := new(mockPipeline)
	p.On("CheckEthics", "bioweapon design").Return(research.EthicsVerdict{
		Issues: []research.IssueTag{research.IssueDualUseConcern},
	})

	w := do(t, p, http.MethodPost, "/api/ethics-check", `{"text":"bioweapon design"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["approved"])
}

func TestStageValidateRefusesEthicsFailure(t *testing.T) {
	p := new(mockPipeline)
	p.On("Validate", mock.Anything, mock.Anything).Return(research.ValidationResult{},
		&apperrors.AppError{Code: apperrors.CodeInvalidInput, Message: "invalid input", Stage: "validation", Cause: core.ErrEthicsGateFailed})

	w := do(t, p, http.MethodPost, "/api/stages/validate", `{"simulation":{"ethics_passed":false}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "ethics gate failed", errBody["message"])
	assert.Equal(t, "validation", errBody["stage"])
}

func TestHealth(t *testing.T) {
	w := do(t, new(mockPipeline), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
