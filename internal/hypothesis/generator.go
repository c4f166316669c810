package hypothesis

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/logging"
)

// DesignEvidence is the design key carrying the supporting entity
const DesignEvidence = "evidence"

// Generator turns ranked entities and a topic into candidate hypotheses.
// It is template based and holds no per-run state.
type Generator struct {
	max    int
	logger *zap.Logger
}

func NewGenerator(cfg config.HypothesisPolicy, logger *zap.Logger) *Generator {
	return &Generator{max: cfg.MaxHypotheses, logger: logging.OrNop(logger)}
}

// Generate builds one hypothesis per top-ranked entity, in rank order.
// Plausibility is the entity score damped when fewer than three entities
// support the run, so sparse evidence lowers it without zeroing it.
func (g *Generator) Generate(entities []research.KnowledgeEntity, topic string) []research.Hypothesis {
	out := make([]research.Hypothesis, 0)
	if len(entities) == 0 || g.max == 0 {
		return out
	}

	topic = strings.TrimSpace(topic)
	support := 0.7 + 0.3*math.Min(1, float64(len(entities))/3)

	n := g.max
	if n > len(entities) {
		n = len(entities)
	}
	for _, e := range entities[:n] {
		out = append(out, research.Hypothesis{
			Statement:    statement(e, topic),
			Plausibility: math.Max(0, math.Min(1, e.EvidenceScore*support)),
			Design:       design(e, topic),
		})
	}

	g.logger.Debug("hypotheses generated", zap.Int("count", len(out)), zap.String("topic", topic))
	return out
}

func statement(e research.KnowledgeEntity, topic string) string {
	switch e.Relation {
	case research.RelationImproves:
		return fmt.Sprintf("Applying %s to %s improves %s relative to the baseline.", e.Entity, topic, orDefault(e.Target, "the primary outcome"))
	case research.RelationReduces:
		return fmt.Sprintf("Applying %s to %s reduces %s relative to the baseline.", e.Entity, topic, orDefault(e.Target, "losses"))
	case research.RelationEnables:
		return fmt.Sprintf("%s enables %s and thereby raises the primary outcome for %s.", capitalize(e.Entity), orDefault(e.Target, "new capabilities"), topic)
	case research.RelationRequires:
		return fmt.Sprintf("Optimising %s, which %s depends on, raises the primary outcome for %s.", orDefault(e.Target, "its prerequisites"), e.Entity, topic)
	case research.RelationBasedOn:
		return fmt.Sprintf("Extending %s beyond its basis in %s raises the primary outcome for %s.", e.Entity, orDefault(e.Target, "prior work"), topic)
	case research.RelationHasValue:
		return fmt.Sprintf("The reported %s change in %s is reproducible for %s.", orDefault(e.Target, "measured"), e.Entity, topic)
	default:
		return fmt.Sprintf("Introducing %s (%s) raises the primary outcome for %s.", e.Entity, strings.ToLower(orDefault(e.Target, "entity")), topic)
	}
}

func design(e research.KnowledgeEntity, topic string) map[string]string {
	metric := "effect size of the primary outcome"
	switch e.Relation {
	case research.RelationImproves, research.RelationReduces:
		if e.Target != "" {
			metric = e.Target
		}
	case research.RelationHasValue:
		metric = e.Entity
	}

	materials := e.Entity
	if e.Relation == research.RelationIsA && e.Target != "" {
		materials = fmt.Sprintf("%s (%s)", e.Entity, strings.ToLower(e.Target))
	}

	return map[string]string{
		research.DesignProtocol: fmt.Sprintf(
			"Run paired baseline and treatment arms for %s, applying %s in the treatment arm; measure %s across replicate runs and compare arms.",
			topic, e.Entity, metric),
		research.DesignMaterials: materials + "; standard laboratory reagents; calibrated measurement apparatus",
		research.DesignMetrics:   metric,
		DesignEvidence:           fmt.Sprintf("%s %s %s (evidence %.2f)", e.Entity, e.Relation, orDefault(e.Target, "-"), e.EvidenceScore),
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
