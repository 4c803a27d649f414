// Package bootstrap wires configuration, infrastructure adapters and use
// cases into a runnable application for both the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowlab/corpusqa/internal/cache"
	"github.com/knowlab/corpusqa/internal/config"
	"github.com/knowlab/corpusqa/internal/core/domain"
	"github.com/knowlab/corpusqa/internal/core/ports"
	"github.com/knowlab/corpusqa/internal/core/usecase"
	fulltextbleve "github.com/knowlab/corpusqa/internal/infrastructure/fulltext/bleve"
	"github.com/knowlab/corpusqa/internal/infrastructure/llm/ollama"
	"github.com/knowlab/corpusqa/internal/infrastructure/queue/nats"
	"github.com/knowlab/corpusqa/internal/infrastructure/repository/postgres"
	"github.com/knowlab/corpusqa/internal/infrastructure/resilience"
	"github.com/knowlab/corpusqa/internal/infrastructure/scoring/tei"
	"github.com/knowlab/corpusqa/internal/infrastructure/secondary/llamaindex"
	"github.com/knowlab/corpusqa/internal/infrastructure/vector/qdrant"
	"github.com/knowlab/corpusqa/internal/limiter"
	"github.com/knowlab/corpusqa/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.EventQueue
	Ledger   ports.IndexLedger
	FullText ports.FullTextIndex
	Asker    ports.Asker
	Ingestor ports.PassageIngestor

	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	exec := resilience.NewExecutor(resilience.DefaultPolicy(), logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ledger := postgres.NewLedgerRepository(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Executor: exec,
		Logger:   logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, cfg.OllamaTimeout, exec)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantTimeout)

	fullText, err := fulltextbleve.NewDiskIndex(cfg.FullTextIndexPath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("open fulltext index: %w", err)
	}

	var scoring ports.ScoringModel
	if cfg.CrossEncoderEnabled && cfg.RerankerURL != "" {
		scoring = tei.New(cfg.RerankerURL, cfg.RerankerTimeout, exec)
	}
	var secondary ports.SecondaryEngine
	if cfg.SecondaryURL != "" {
		secondary = llamaindex.New(cfg.SecondaryURL, cfg.SecondaryTimeout, exec)
	}

	var gate limiter.Limiter = limiter.Disabled{}
	if cfg.LimiterEnabled {
		gate = limiter.NewPool(cfg.LimiterMaxSize, cfg.LimiterQueueCapacity)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(service)

	askUC := usecase.NewAskUseCase(
		usecase.Settings{
			Service:              service,
			TopK:                 cfg.RetrievalTopK,
			MinScore:             cfg.RetrievalMinScore,
			CandidateSize:        cfg.CandidateSize,
			HybridEnabled:        cfg.HybridEnabled && cfg.FullTextEnabled,
			FullTextTopK:         cfg.FullTextTopK,
			RRFK:                 cfg.FusionRRFK,
			KeywordRerankEnabled: cfg.KeywordRerankEnabled,
			KeywordBoost:         cfg.KeywordBoost,
			CrossEncoderEnabled:  cfg.CrossEncoderEnabled && scoring != nil,
			CrossEncoderTopK:     cfg.CrossEncoderTopK,
			EngineMode:           usecase.ParseMode(cfg.EngineMode),
		},
		embedder,
		vectors,
		fullText,
		scoring,
		secondary,
		generator,
		cache.New[[]float32](cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL, cfg.CacheEnabled),
		cache.New[domain.Answer](cfg.ResultCacheSize, cfg.ResultCacheTTL, cfg.CacheEnabled),
		gate,
		pipelineMetrics,
		logger,
	)

	ingestUC := usecase.NewIngestUseCase(
		service,
		cfg.IngestBatchSize,
		embedder,
		vectors,
		fullText,
		ledger,
		queue,
		pipelineMetrics,
		logger,
	)

	return &App{
		Config:          cfg,
		Logger:          logger,
		Queue:           queue,
		Ledger:          ledger,
		FullText:        fullText,
		Asker:           askUC,
		Ingestor:        ingestUC,
		PipelineMetrics: pipelineMetrics,
		closeFn: func() {
			queue.Close()
			_ = fullText.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
