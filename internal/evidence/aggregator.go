package evidence

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/extraction"
	"goresearch/internal/hooks"
	"goresearch/internal/logging"
	"goresearch/internal/policy"
	"goresearch/ports"
)

// Bonus caps of the composite evidence score
const (
	frequencyStep   = 0.05
	frequencyCap    = 0.2
	relevanceStep   = 0.1
	relevanceCap    = 0.3
	strongRelation  = 0.1
	positionMaximum = 0.1
)

// Aggregator merges extraction candidates from many documents into a ranked,
// deduplicated entity list.
type Aggregator struct {
	extractor  extraction.Extractor
	threshold  float64
	strong     map[research.Relation]bool
	relevance  []*policy.TermMatcher
	workers    int
	store      ports.KnowledgeStorePort
	dispatcher *hooks.Dispatcher
	logger     *zap.Logger
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithKnowledgeStore sends every admitted entity to store through dispatcher
func WithKnowledgeStore(store ports.KnowledgeStorePort, dispatcher *hooks.Dispatcher) Option {
	return func(a *Aggregator) {
		a.store = store
		a.dispatcher = dispatcher
	}
}

// WithWorkers bounds the per-document extraction fan-out
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = logging.OrNop(l) }
}

// NewAggregator builds an aggregator over extractor using the evidence table
func NewAggregator(extractor extraction.Extractor, cfg config.EvidencePolicy, opts ...Option) *Aggregator {
	a := &Aggregator{
		extractor: extractor,
		threshold: cfg.AdmissionThreshold,
		strong:    make(map[research.Relation]bool, len(cfg.StrongRelations)),
		workers:   4,
		logger:    zap.NewNop(),
	}
	for _, r := range cfg.StrongRelations {
		a.strong[research.Relation(strings.ToUpper(r))] = true
	}
	for _, kw := range cfg.RelevanceKeywords {
		if strings.TrimSpace(kw) != "" {
			a.relevance = append(a.relevance, policy.NewTermMatcher([]string{kw}))
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// scored is one admitted candidate with the document it came from
type scored struct {
	entity research.KnowledgeEntity
	doc    int
	order  int
}

// Aggregate extracts per document in parallel, then scores, admits,
// deduplicates by (entity, relation) keeping the maximum score, and ranks
// the complete candidate set.
func (a *Aggregator) Aggregate(ctx context.Context, docs []research.CuratedData) ([]research.KnowledgeEntity, error) {
	out := make([]research.KnowledgeEntity, 0)
	if len(docs) == 0 {
		return out, nil
	}

	perDoc, err := a.extractAll(ctx, docs)
	if err != nil {
		return nil, err
	}

	mentions := make(map[research.EntityKey]int)
	for _, cands := range perDoc {
		for _, c := range cands {
			mentions[research.EntityKey{Entity: c.Entity, Relation: c.Relation}]++
		}
	}

	best := make(map[research.EntityKey]*scored)
	order := 0
	rejected := 0
	for i, cands := range perDoc {
		length := len(strings.ToLower(docs[i].Content))
		for _, c := range cands {
			key := research.EntityKey{Entity: c.Entity, Relation: c.Relation}
			score := a.Score(c, docs[i].QualityScore, mentions[key], length)
			if score <= a.threshold {
				rejected++
				continue
			}
			if cur, ok := best[key]; ok {
				if score > cur.entity.EvidenceScore {
					cur.entity.EvidenceScore = score
					cur.entity.Target = c.Target
					cur.doc = i
				}
				continue
			}
			best[key] = &scored{
				entity: research.KnowledgeEntity{
					Entity:        c.Entity,
					Relation:      c.Relation,
					Target:        c.Target,
					EvidenceScore: score,
				},
				doc:   i,
				order: order,
			}
			order++
		}
	}

	ranked := make([]*scored, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].entity.EvidenceScore != ranked[j].entity.EvidenceScore {
			return ranked[i].entity.EvidenceScore > ranked[j].entity.EvidenceScore
		}
		return ranked[i].order < ranked[j].order
	})

	for _, s := range ranked {
		out = append(out, s.entity)
		a.publish(ctx, s.entity, docs[s.doc].Metadata)
	}

	a.logger.Debug("evidence aggregated",
		zap.Int("documents", len(docs)),
		zap.Int("admitted", len(out)),
		zap.Int("below_threshold", rejected))
	return out, nil
}

// Score computes the composite evidence score of one candidate
func (a *Aggregator) Score(c extraction.Candidate, quality float64, mentions int, contentLength int) float64 {
	score := quality
	score += math.Min(frequencyCap, float64(mentions)*frequencyStep)
	score += math.Min(relevanceCap, relevanceStep*float64(a.relevanceHits(c.Context)))
	if a.strong[c.Relation] {
		score += strongRelation
	}
	if contentLength > 0 {
		score += math.Max(0, positionMaximum*(1-float64(c.Position)/float64(contentLength)))
	}
	return clamp01(score)
}

// relevanceHits counts distinct relevance keywords present in the context
func (a *Aggregator) relevanceHits(window string) int {
	window = strings.ToLower(window)
	hits := 0
	for _, m := range a.relevance {
		if m.Match(window) {
			hits++
		}
	}
	return hits
}

func (a *Aggregator) extractAll(ctx context.Context, docs []research.CuratedData) ([][]extraction.Candidate, error) {
	perDoc := make([][]extraction.Candidate, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range docs {
		g.Go(func() (err error) {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("extracting document %d: %v", i, r)
				}
			}()
			perDoc[i] = a.extractor.Extract(docs[i].Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perDoc, nil
}

func (a *Aggregator) publish(ctx context.Context, e research.KnowledgeEntity, metadata map[string]string) {
	if a.store == nil || a.dispatcher == nil {
		return
	}
	provenance := make(map[string]string, len(metadata))
	for k, v := range metadata {
		provenance[k] = v
	}
	if provenance[research.MetaProvenance] == "" {
		provenance[research.MetaProvenance] = "unknown"
	}
	update := ports.EntityUpdate{
		Entity:     e.Entity,
		Relation:   e.Relation,
		Target:     e.Target,
		Score:      e.EvidenceScore,
		Provenance: provenance,
	}
	store := a.store
	a.dispatcher.Go(ctx, "knowledge_store.upsert", func(ctx context.Context) error {
		return store.UpsertEntity(ctx, update)
	})
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
