package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/logging"
	"goresearch/internal/quality"
	"goresearch/ports"
)

var whitespace = regexp.MustCompile(`\s+`)

// Ingester pulls raw documents from source connectors and curates them:
// whitespace normalisation, consecutive-duplicate skipping, a quality floor
// and provenance stamping.
type Ingester struct {
	connectors map[research.DataSource]ports.SourceConnector
	scorer     *quality.Scorer
	floor      float64
	maxDocs    int
	clock      core.Clock
	logger     *zap.Logger
}

// NewIngester wires connectors to the quality scorer. clock may be nil.
func NewIngester(connectors map[research.DataSource]ports.SourceConnector, scorer *quality.Scorer, cfg config.IngestionPolicy, clock core.Clock, logger *zap.Logger) *Ingester {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Ingester{
		connectors: connectors,
		scorer:     scorer,
		floor:      cfg.QualityFloor,
		maxDocs:    cfg.MaxDocuments,
		clock:      clock,
		logger:     logging.OrNop(logger),
	}
}

// Supports reports whether a connector is registered for source
func (i *Ingester) Supports(source research.DataSource) bool {
	_, ok := i.connectors[source]
	return ok
}

// Ingest fetches every requested source in canonical order. No sources
// yields an empty result.
func (i *Ingester) Ingest(ctx context.Context, topic string, sources []research.DataSource) ([]research.CuratedData, error) {
	results := make([]research.CuratedData, 0)
	for _, source := range research.NormalizeSources(sources) {
		connector, ok := i.connectors[source]
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownSource, source)
		}

		docs, err := connector.Fetch(ctx, topic, source)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		if len(docs) > i.maxDocs {
			docs = docs[:i.maxDocs]
		}

		kept := 0
		for _, doc := range docs {
			curated, ok := i.curate(doc, results)
			if !ok {
				continue
			}
			results = append(results, curated)
			kept++
		}
		i.logger.Info("source ingested",
			zap.String("source", string(source)),
			zap.Int("fetched", len(docs)),
			zap.Int("kept", kept))
	}
	return results, nil
}

// Curate normalises and scores a single document outside of a run
func (i *Ingester) Curate(doc ports.RawDocument) (research.CuratedData, bool) {
	return i.curate(doc, nil)
}

func (i *Ingester) curate(doc ports.RawDocument, accepted []research.CuratedData) (research.CuratedData, bool) {
	content := Normalize(doc.Content)
	if content == "" {
		return research.CuratedData{}, false
	}
	if n := len(accepted); n > 0 && accepted[n-1].Content == content {
		i.logger.Debug("skipping duplicate document", zap.String("title", doc.Metadata[research.MetaTitle]))
		return research.CuratedData{}, false
	}

	score := i.scorer.Score(content, doc.Metadata)
	if score <= i.floor {
		i.logger.Debug("document below quality floor",
			zap.String("title", doc.Metadata[research.MetaTitle]),
			zap.Float64("quality", score))
		return research.CuratedData{}, false
	}

	metadata := TrackProvenance(content, doc.Metadata, i.clock())
	i.logger.Debug("provenance recorded",
		zap.String("hash", metadata[research.MetaHash]),
		zap.String("provenance", metadata[research.MetaProvenance]))

	return research.CuratedData{
		Content:      content,
		Metadata:     metadata,
		QualityScore: score,
	}, true
}

// Normalize collapses whitespace runs and trims the ends
func Normalize(content string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(content, " "))
}

// TrackProvenance copies metadata and stamps it with a content hash and time
func TrackProvenance(content string, metadata map[string]string, at core.Timestamp) map[string]string {
	tracked := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		tracked[k] = v
	}
	tracked[research.MetaHash] = core.ContentHash(content)
	tracked[research.MetaTimestamp] = at.String()
	return tracked
}
