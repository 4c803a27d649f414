package ports

import (
	"context"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes passages and performs similarity search. Search must
// enforce minScore in the store call; no post-filtering happens upstream.
type VectorStore interface {
	IndexPassages(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, minScore float64, filter domain.Filter) ([]domain.Candidate, error)
}

// FullTextIndex is the lexical retrieval backend. Search on an index that was
// never initialized returns an empty result, not an error.
type FullTextIndex interface {
	Index(ctx context.Context, passages []domain.Passage) error
	Rebuild(ctx context.Context, passages []domain.Passage) error
	Search(ctx context.Context, queryText string, filter domain.Filter, topK int) ([]domain.Candidate, error)
}

// ScoringModel jointly scores (question, passage) pairs. The returned slice
// preserves input order; callers must treat a length mismatch as fatal.
type ScoringModel interface {
	ScoreAll(ctx context.Context, question string, passages []string) ([]float64, error)
}

// AnswerGenerator produces the final answer text from the evidence passages.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, evidence []string) (string, error)
}

// SecondaryEngine is the optional second retrieval service queried in dual or
// secondary-only mode.
type SecondaryEngine interface {
	Query(ctx context.Context, question string, topK int, filter domain.Filter) ([]domain.SecondaryItem, error)
}

// IndexLedger records what was written to the indexes and can hand the full
// passage set back for a rebuild.
type IndexLedger interface {
	RecordBatch(ctx context.Context, batch domain.IndexedBatch, passages []domain.Passage) error
	GetBatch(ctx context.Context, id string) (*domain.IndexedBatch, error)
	ListPassages(ctx context.Context) ([]domain.Passage, error)
}

// EventQueue publishes/consumes corpus-indexed events.
type EventQueue interface {
	PublishCorpusIndexed(ctx context.Context, batchID string) error
	SubscribeCorpusIndexed(ctx context.Context, handler func(context.Context, string) error) error
}
