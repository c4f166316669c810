package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"goresearch/adapters/artifacts"
	"goresearch/adapters/connectors"
	"goresearch/adapters/postgres"
	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/internal/api"
	"goresearch/internal/config"
	"goresearch/internal/errors"
	"goresearch/internal/evidence"
	"goresearch/internal/extraction"
	"goresearch/internal/hooks"
	"goresearch/internal/hypothesis"
	"goresearch/internal/ingestion"
	"goresearch/internal/learning"
	"goresearch/internal/logging"
	"goresearch/internal/migration"
	"goresearch/internal/pipeline"
	"goresearch/internal/policy"
	"goresearch/internal/quality"
	"goresearch/internal/simulation"
	"goresearch/internal/validation"
	"goresearch/ports"
)

// hookTimeout bounds each outbound knowledge-store or retrain call
const hookTimeout = 10 * time.Second

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB *sqlx.DB

	// Outbound hooks
	KnowledgeStore ports.KnowledgeStorePort
	Retrainer      ports.ModelRetrainPort
	ArtifactSink   ports.ArtifactSinkPort
	ArtifactReader ports.ArtifactReader
	Dispatcher     *hooks.Dispatcher
	Events         *api.EventHub

	// Stages
	Gate         *policy.Gate
	Scorer       *quality.Scorer
	Extractor    *extraction.PatternExtractor
	Orchestrator *pipeline.Orchestrator
}

// New wires every component from cfg. A database and an artifact sink are
// optional; without them the hooks degrade to no-ops.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Policy == nil {
		cfg.Policy = config.DefaultPolicy()
	}

	c := &Container{
		Config:         cfg,
		Logger:         logging.OrNop(logger),
		KnowledgeStore: ports.NoopKnowledgeStore{},
		Retrainer:      ports.NoopRetrainer{},
		ArtifactSink:   ports.NoopArtifactSink{},
	}

	if err := c.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.initArtifacts(ctx); err != nil {
		c.closeDB()
		return nil, err
	}
	if err := c.initPipeline(); err != nil {
		c.closeDB()
		return nil, err
	}

	c.Logger.Info("container initialized",
		zap.Bool("database", c.DB != nil),
		zap.Bool("artifact_reader", c.ArtifactReader != nil))
	return c, nil
}

// initDatabase connects, migrates and installs the SQL hooks
func (c *Container) initDatabase(ctx context.Context) error {
	dbCfg := c.Config.Database
	if dbCfg.URL == "" {
		c.Logger.Info("DATABASE_URL not set, knowledge store disabled")
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, dbCfg.Driver, dbCfg.URL)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to connect to database"))
	}
	if dbCfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "database migration failed"))
	}

	c.DB = db
	c.KnowledgeStore = postgres.NewKnowledgeRepository(db)
	c.Retrainer = postgres.NewRetrainRepository(db)
	return nil
}

// initArtifacts selects S3 when a bucket is configured, else a directory
func (c *Container) initArtifacts(ctx context.Context) error {
	a := c.Config.Artifacts
	switch {
	case a.S3Bucket != "":
		store, err := artifacts.NewS3Store(ctx, artifacts.S3StoreConfig{
			Bucket:   a.S3Bucket,
			Region:   a.S3Region,
			Endpoint: a.S3Endpoint,
			Prefix:   a.S3Prefix,
		})
		if err != nil {
			return errors.ExternalServiceError("s3", err)
		}
		c.ArtifactSink, c.ArtifactReader = store, store
	case a.Dir != "":
		store, err := artifacts.NewFileStore(a.Dir)
		if err != nil {
			return errors.Wrap(err, "failed to open artifact directory")
		}
		c.ArtifactSink, c.ArtifactReader = store, store
	}
	return nil
}

func (c *Container) initPipeline() error {
	p := c.Config.Policy
	log := c.Logger

	gate, err := policy.NewGate(p.Gate, log.Named("policy"))
	if err != nil {
		return err
	}
	scorer, err := quality.NewScorer(p.Quality, p.Gate)
	if err != nil {
		return err
	}

	c.Gate = gate
	c.Scorer = scorer
	c.Extractor = extraction.NewPatternExtractor(p.Evidence.ContextWindow)
	c.Dispatcher = hooks.NewDispatcher(log.Named("hooks"), hookTimeout)

	stages := pipeline.Stages{
		Ingester: ingestion.NewIngester(c.connectors(), scorer, p.Ingestion, core.SystemClock, log.Named("ingestion")),
		Modeler: evidence.NewAggregator(c.Extractor, p.Evidence,
			evidence.WithKnowledgeStore(c.KnowledgeStore, c.Dispatcher),
			evidence.WithWorkers(c.Config.Pipeline.ExtractWorkers),
			evidence.WithLogger(log.Named("evidence"))),
		Generator: hypothesis.NewGenerator(p.Hypothesis, log.Named("hypothesis")),
		Gate:      gate,
		Simulator: simulation.NewSimulator(gate, p.Simulation, log.Named("simulation")),
		Validator: validation.NewEngine(p.Validation, log.Named("validation")),
		Learner:   learning.NewUpdater(c.KnowledgeStore, c.Retrainer, c.ArtifactSink, c.Dispatcher, log.Named("learning")),
		Quality:   scorer,
	}
	c.Events = api.NewEventHub(log.Named("events"))
	c.Orchestrator = pipeline.NewOrchestrator(stages,
		pipeline.WithTimeout(c.Config.Pipeline.Timeout),
		pipeline.WithObserver(c.Events),
		pipeline.WithLogger(log.Named("pipeline")))
	return nil
}

// connectors serves every source from the seed corpus unless an HTTP
// endpoint is configured for papers
func (c *Container) connectors() map[research.DataSource]ports.SourceConnector {
	out := connectors.SeedConnectors()
	src := c.Config.Sources
	if src.PaperURL != "" {
		out[research.SourcePaper] = connectors.NewHTTPConnector(connectors.HTTPConfig{
			BaseURL:    src.PaperURL,
			AuthMethod: "none",
			DataPath:   src.PaperDataPath,
			MaxResults: c.Config.Policy.Ingestion.MaxDocuments,
			Timeout:    src.HTTPTimeout,
		}, nil)
	}
	return out
}

// Shutdown drains in-flight hook calls and closes the database
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Dispatcher != nil {
		drained := make(chan struct{})
		go func() {
			c.Dispatcher.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			c.Logger.Warn("shutdown before hooks drained", zap.Uint64("calls", c.Dispatcher.Calls()))
		}
	}
	return c.closeDB()
}

func (c *Container) closeDB() error {
	if c.DB == nil {
		return nil
	}
	err := c.DB.Close()
	c.DB = nil
	return err
}
