// Package bootstrap wires configuration into the concrete dependency graph
// shared by the apiserver and worker binaries.  Both processes need the same
// service stack (repositories, analyzers, runner, cache, messaging); they
// differ only in which interface they expose on top of it.
package bootstrap

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/EquityLens/internal/analysis/aidetect"
	"github.com/turtacn/EquityLens/internal/analysis/compliance"
	"github.com/turtacn/EquityLens/internal/analysis/ingest"
	"github.com/turtacn/EquityLens/internal/analysis/quality"
	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/internal/application/assessment"
	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/database/postgres"
	"github.com/turtacn/EquityLens/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/EquityLens/internal/infrastructure/database/redis"
	"github.com/turtacn/EquityLens/internal/infrastructure/embedding"
	"github.com/turtacn/EquityLens/internal/infrastructure/llm"
	"github.com/turtacn/EquityLens/internal/infrastructure/marketdata"
	"github.com/turtacn/EquityLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/EquityLens/internal/infrastructure/search/milvus"
	"github.com/turtacn/EquityLens/internal/interfaces/http/handlers"
)

// LoadConfig reads configuration from the given file, or from EQUITYLENS_
// environment variables when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	lc := logging.LogConfig{
		Level:  cfg.Level,
		Format: cfg.Format,
	}
	if cfg.Output != "" {
		lc.OutputPaths = []string{cfg.Output}
	}
	return logging.NewLogger(lc)
}

// Options tunes per-binary behaviour of the shared graph.
type Options struct {
	// EnqueueOnSubmit hands freshly submitted reports to Kafka instead of
	// assessing them inline.  The apiserver sets this when brokers are
	// configured; the worker never does, it is the consumer of that queue.
	EnqueueOnSubmit bool
}

// App is the wired dependency graph.  Fields that depend on optional
// infrastructure (Kafka, Milvus) are nil when that infrastructure is not
// configured.
type App struct {
	Cfg *config.Config
	Log logging.Logger

	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Milvus   *milvus.Client
	Producer *kafka.Producer

	Reports     report.Repository
	Assessments report.AssessmentRepository
	Matches     report.SimilarityMatchRepository

	Metrics *prometheus.Metrics
	Service assessment.Service
}

// New runs the migrations and wires the full graph.  On error the partially
// constructed infrastructure is closed before returning.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, opts Options) (*App, error) {
	app := &App{Cfg: cfg, Log: log}

	if err := postgres.Migrate(cfg.Database, log); err != nil {
		return nil, err
	}
	pool, err := postgres.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	app.Pool = pool

	reportRepo := repositories.NewReportRepository(pool, log)
	assessmentRepo := repositories.NewAssessmentRepository(pool, log)
	matchRepo := repositories.NewMatchRepository(pool, log)
	app.Reports = reportRepo
	app.Assessments = assessmentRepo
	app.Matches = matchRepo

	redisClient, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Redis = redisClient
	cache := redis.NewAssessmentCache(redisClient, cfg.Redis.DefaultTTL, log)

	analyzer, err := app.buildSimilarity(ctx, cfg, log, reportRepo)
	if err != nil {
		app.Close()
		return nil, err
	}

	var md quality.MarketData
	if cfg.MarketData.BaseURL != "" {
		mdClient, err := marketdata.NewClient(cfg.MarketData, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		md = mdClient
	}
	scorer, err := quality.NewScorer(cfg.Analysis.QualityWeights, md, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	detector, err := aidetect.NewDetector(aidetect.Thresholds{
		Uncertain: cfg.Analysis.AIUncertainThreshold,
		Likely:    cfg.Analysis.AILikelyThreshold,
	}, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Metrics = prometheus.New()
	runner, err := assessment.NewRunner(assessment.Components{
		Similarity: analyzer,
		Quality:    scorer,
		Detector:   detector,
		Compliance: compliance.NewAssessor(log),
	}, cfg.Analysis.ComponentTimeout, app.Metrics, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	var queue assessment.Queue
	var publisher assessment.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Producer = producer
		publisher = producer
		if opts.EnqueueOnSubmit {
			queue = producer
		}
	}

	var narrator assessment.Narrator
	if cfg.LLM.BaseURL != "" {
		narrator, err = llm.NewClient(cfg.LLM, log)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	svc, err := assessment.NewService(assessment.Deps{
		Reports:     reportRepo,
		Assessments: assessmentRepo,
		Matches:     matchRepo,
		Normalizer:  ingest.NewNormalizer(log),
		Runner:      runner,
		Queue:       queue,
		Publisher:   publisher,
		Cache:       cache,
		Narrator:    narrator,
		Logger:      log,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Service = svc
	return app, nil
}

// buildSimilarity assembles the two-path similarity analyzer.  The lexical
// fallback path always exists; the external embedding path is added when an
// embedding service is configured.  With Milvus enabled each embedding model
// gets its own collection, guarded by the Redis writer lock so concurrent
// process instances serialize index writes.
func (a *App) buildSimilarity(ctx context.Context, cfg *config.Config, log logging.Logger, reports report.Repository) (*similarity.Analyzer, error) {
	if cfg.Milvus.Enabled {
		mc, err := milvus.NewClient(ctx, cfg.Milvus, log)
		if err != nil {
			return nil, err
		}
		a.Milvus = mc
	}

	newBackend := func(modelID string, dimension int) (similarity.VectorBackend, error) {
		if a.Milvus == nil {
			return similarity.NewMemoryIndex(dimension), nil
		}
		idx, err := milvus.NewVectorIndex(ctx, a.Milvus, modelID, dimension, log)
		if err != nil {
			return nil, err
		}
		lock := redis.NewWriterLock(a.Redis, "similarity-index:"+modelID, log)
		return milvus.NewLockedBackend(idx, lock.Acquire), nil
	}

	fallback := similarity.NewLexicalEmbedder()
	fallbackIndex, err := newBackend(fallback.ModelID(), fallback.Dimension())
	if err != nil {
		return nil, err
	}

	deps := similarity.Deps{
		Fallback:      fallback,
		FallbackIndex: fallbackIndex,
		Texts:         assessment.NewReportTexts(reports),
		Logger:        log,
	}
	if cfg.Embedding.BaseURL != "" {
		embedder, err := embedding.NewClient(cfg.Embedding, log)
		if err != nil {
			return nil, err
		}
		index, err := newBackend(embedder.ModelID(), embedder.Dimension())
		if err != nil {
			return nil, err
		}
		deps.Embedder = embedder
		deps.Index = index
	}

	return similarity.NewAnalyzer(deps, similarity.Config{
		Threshold:      cfg.Analysis.SimilarityThreshold,
		TopK:           cfg.Analysis.SimilarityTopK,
		SpanWindowSize: cfg.Analysis.SpanWindowSize,
	})
}

// HealthChecks returns the readiness probes for the wired infrastructure.
func (a *App) HealthChecks() map[string]handlers.HealthChecker {
	checks := map[string]handlers.HealthChecker{
		"postgres": func(ctx context.Context) error { return a.Pool.Ping(ctx) },
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.HealthCheck
	}
	return checks
}

// Close releases infrastructure in reverse construction order.  Safe to call
// on a partially constructed App.
func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Log.Warn("closing kafka producer", logging.Err(err))
		}
	}
	if a.Milvus != nil {
		if err := a.Milvus.Close(); err != nil {
			a.Log.Warn("closing milvus client", logging.Err(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("closing redis client", logging.Err(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
