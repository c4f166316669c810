package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goresearch/adapters/artifacts"
)

func newTestApp(t *testing.T) (*App, *artifacts.FileStore) {
	t.Helper()
	store, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Path", r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	})
	return NewApp(api, store, nil), store
}

func get(app http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServesArtifacts(t *testing.T) {
	app, store := newTestApp(t)
	require.NoError(t, store.Persist(context.Background(), "run-1/data.csv", []byte("metric,value\n")))

	w := get(app, "/artifacts/run-1/data.csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metric,value\n", w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, get(app, "/artifacts/run-1/missing.csv").Code)
	assert.Equal(t, http.StatusBadRequest, get(app, "/artifacts/run-1/..").Code)
}

func TestArtifactsWithoutReader(t *testing.T) {
	app := NewApp(http.NotFoundHandler(), nil, nil)
	assert.Equal(t, http.StatusNotFound, get(app, "/artifacts/run-1/data.csv").Code)
}

func TestMountsAPI(t *testing.T) {
	app, _ := newTestApp(t)
	w := get(app, "/api/health")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "/api/health", w.Header().Get("X-Path"))

	assert.Equal(t, http.StatusOK, get(app, "/healthz").Code)
}
