package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/errors"
	"goresearch/internal/quality"
)

func TestSeedConnectorEmbedsTopic(t *testing.T) {
	c := NewSeedConnector()
	for _, source := range research.AllSources {
		t.Run(string(source), func(t *testing.T) {
			docs, err := c.Fetch(context.Background(), "catalyst for CO2", source)
			require.NoError(t, err)
			require.NotEmpty(t, docs)
			for _, d := range docs {
				assert.Contains(t, d.Content, "catalyst for CO2")
				assert.Equal(t, "seed:"+string(source), d.Metadata[research.MetaProvenance])
				assert.NotEmpty(t, d.Metadata[research.MetaLicense])
			}
		})
	}
}

func TestSeedCorpusPassesQualityChecks(t *testing.T) {
	p := config.DefaultPolicy()
	scorer, err := quality.NewScorer(p.Quality, p.Gate)
	require.NoError(t, err)

	for source, conn := range SeedConnectors() {
		got, err := conn.Fetch(context.Background(), "catalyst for CO2", source)
		require.NoError(t, err)
		for _, d := range got {
			a := scorer.Assess(d.Content, d.Metadata)
			assert.Equal(t, 1.0, a.Score, "%s: %v", d.Metadata[research.MetaTitle], a.Issues)
		}
	}
}

func TestSeedConnectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSeedConnector().Fetch(ctx, "x", research.SourcePaper)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewSeedConnector().Fetch(context.Background(), "x", research.DataSource("blog"))
	assert.Error(t, err)
}

func TestHTTPConnectorFetch(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"First","summary":"catalyst improves yield","url":"https://x/1","year":2023},
			{"title":"No body"},
			{"title":"Second","abstract":"membrane reduces loss","license":"MIT"}
		]}`))
	}))
	defer srv.Close()

	c := NewHTTPConnector(HTTPConfig{
		BaseURL:    srv.URL,
		AuthMethod: "bearer",
		AuthToken:  "secret",
		DataPath:   "results",
		License:    "arXiv license",
	}, srv.Client())

	docs, err := c.Fetch(context.Background(), "co2 catalyst", research.SourcePaper)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Contains(t, gotQuery, "q=co2+catalyst")
	assert.Contains(t, gotQuery, "source=paper")
	assert.Equal(t, "Bearer secret", gotAuth)

	assert.Equal(t, "catalyst improves yield", docs[0].Content)
	assert.Equal(t, "arXiv license", docs[0].Metadata[research.MetaLicense])
	assert.Equal(t, "2023", docs[0].Metadata[research.MetaYear])
	assert.Equal(t, "MIT", docs[1].Metadata[research.MetaLicense])
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), docs[0].Metadata[research.MetaProvenance])
}

func TestHTTPConnectorErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		path   string
	}{
		{"server error", http.StatusBadGateway, `{}`, "results"},
		{"invalid json", http.StatusOK, `not json`, "results"},
		{"missing path", http.StatusOK, `{"items":[]}`, "results"},
		{"scalar path", http.StatusOK, `{"results":"x"}`, "results"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPConnector(HTTPConfig{BaseURL: srv.URL, DataPath: tt.path}, srv.Client())
			_, err := c.Fetch(context.Background(), "x", research.SourcePaper)
			require.Error(t, err)
			if tt.status >= 300 {
				assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
			}
		})
	}
}

func TestHTTPConnectorMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"text":"a"},{"text":"b"},{"text":"c"}]`))
	}))
	defer srv.Close()

	c := NewHTTPConnector(HTTPConfig{BaseURL: srv.URL, MaxResults: 2}, srv.Client())
	docs, err := c.Fetch(context.Background(), "x", research.SourceDataset)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
