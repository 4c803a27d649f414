package ports

import (
	"context"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

// Asker answers a question from the corpus.
type Asker interface {
	Ask(ctx context.Context, req domain.AskRequest) (domain.Answer, error)
}

// PassageIngestor writes pre-extracted passages into the retrieval indexes.
type PassageIngestor interface {
	IngestPassages(ctx context.Context, passages []domain.Passage) (domain.IndexedBatch, error)
}
