package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowlab/corpusqa/internal/core/domain"
	"github.com/knowlab/corpusqa/internal/core/ports"
	"github.com/knowlab/corpusqa/internal/observability/metrics"
)

// IngestUseCase writes pre-extracted passages into both retrieval indexes,
// records the batch in the ledger and announces it on the event queue.
type IngestUseCase struct {
	batchSize int

	embedder ports.Embedder
	vectors  ports.VectorStore
	fullText ports.FullTextIndex
	ledger   ports.IndexLedger
	queue    ports.EventQueue

	metrics *metrics.PipelineMetrics
	logger  *slog.Logger

	service string
}

func NewIngestUseCase(
	service string,
	batchSize int,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	fullText ports.FullTextIndex,
	ledger ports.IndexLedger,
	queue ports.EventQueue,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *slog.Logger,
) *IngestUseCase {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		service:   service,
		batchSize: batchSize,
		embedder:  embedder,
		vectors:   vectors,
		fullText:  fullText,
		ledger:    ledger,
		queue:     queue,
		metrics:   pipelineMetrics,
		logger:    logger,
	}
}

// IngestPassages embeds and indexes passages in configured-size batches.
// Passages with empty text are rejected up front; a vector count that does
// not match the batch is a backend contract violation and aborts the ingest.
func (uc *IngestUseCase) IngestPassages(ctx context.Context, passages []domain.Passage) (domain.IndexedBatch, error) {
	if len(passages) == 0 {
		return domain.IndexedBatch{}, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no passages"))
	}
	for i := range passages {
		if strings.TrimSpace(passages[i].Text) == "" {
			return domain.IndexedBatch{}, domain.WrapError(domain.ErrInvalidInput, "ingest",
				fmt.Errorf("passage %d has empty text", i))
		}
		if passages[i].ID == "" {
			passages[i].ID = uuid.NewString()
		}
	}

	start := time.Now()
	for offset := 0; offset < len(passages); offset += uc.batchSize {
		end := min(offset+uc.batchSize, len(passages))
		batch := passages[offset:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return domain.IndexedBatch{}, fmt.Errorf("embed passages: %w", err)
		}
		if len(vectors) != len(batch) {
			return domain.IndexedBatch{}, domain.WrapError(domain.ErrContractViolation, "ingest",
				fmt.Errorf("embedding count mismatch: %d vectors for %d passages", len(vectors), len(batch)))
		}

		if err := uc.vectors.IndexPassages(ctx, batch, vectors); err != nil {
			return domain.IndexedBatch{}, fmt.Errorf("index vectors: %w", err)
		}
		if err := uc.fullText.Index(ctx, batch); err != nil {
			return domain.IndexedBatch{}, fmt.Errorf("index full-text: %w", err)
		}
	}

	batch := domain.IndexedBatch{
		ID:        uuid.NewString(),
		Source:    passages[0].Metadata.Source,
		Version:   passages[0].Metadata.Version,
		Tags:      passages[0].Metadata.Tags,
		Passages:  len(passages),
		IndexedAt: time.Now().UTC(),
	}
	if uc.ledger != nil {
		if err := uc.ledger.RecordBatch(ctx, batch, passages); err != nil {
			return domain.IndexedBatch{}, fmt.Errorf("record batch: %w", err)
		}
	}
	if uc.queue != nil {
		if err := uc.queue.PublishCorpusIndexed(ctx, batch.ID); err != nil {
			// Indexes are already written; the rebuild worker just will not
			// hear about this batch until the next event.
			uc.logger.Warn("publish_corpus_indexed_failed", "batch_id", batch.ID, "error", err)
		}
	}

	uc.metrics.AddIngestedPassages(len(passages))
	uc.logger.Info("ingest_completed",
		"batch_id", batch.ID,
		"passages", len(passages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return batch, nil
}
