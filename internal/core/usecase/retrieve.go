package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

// retrievePrimary runs the vector and full-text legs concurrently. Only the
// vector leg is score-filtered; full-text results enter fusion unfiltered.
func (uc *AskUseCase) retrievePrimary(
	ctx context.Context,
	question string,
	candidateSize int,
	minScore float64,
	filter domain.Filter,
) (vector, fullText []domain.Candidate, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		embedding, embErr := uc.queryEmbedding(gctx, question)
		if embErr != nil {
			return embErr
		}
		matches, searchErr := uc.vectors.Search(gctx, embedding, candidateSize, minScore, filter)
		if searchErr != nil {
			return fmt.Errorf("vector search: %w", searchErr)
		}
		vector = matches
		return nil
	})

	if uc.settings.HybridEnabled {
		g.Go(func() error {
			matches, searchErr := uc.fullText.Search(gctx, question, filter, uc.settings.FullTextTopK)
			if searchErr != nil {
				return fmt.Errorf("full-text search: %w", searchErr)
			}
			fullText = matches
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vector, fullText, nil
}

// queryEmbedding resolves the question vector through the embedding cache.
func (uc *AskUseCase) queryEmbedding(ctx context.Context, question string) ([]float32, error) {
	loaderRan := false
	embedding, err := uc.embeddings.GetOrCompute(question, func() ([]float32, error) {
		loaderRan = true
		return uc.embedder.EmbedQuery(ctx, question)
	})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	uc.metrics.CacheLookup(uc.settings.Service, "embedding", !loaderRan)
	return embedding, nil
}

type secondaryOutcome struct {
	evidence []string
	sources  []string
}

// retrieveSecondary queries the secondary engine and applies the minScore
// floor and topK cap to its items. The secondary engine being unconfigured
// is not an error; a failing configured engine is.
func (uc *AskUseCase) retrieveSecondary(
	ctx context.Context,
	question string,
	topK int,
	minScore float64,
	filter domain.Filter,
) (secondaryOutcome, error) {
	if uc.secondary == nil {
		return secondaryOutcome{}, nil
	}

	items, err := uc.secondary.Query(ctx, question, topK, filter)
	if err != nil {
		return secondaryOutcome{}, fmt.Errorf("secondary engine query: %w", err)
	}

	out := secondaryOutcome{}
	seenSources := make(map[string]struct{})
	taken := 0
	for _, item := range items {
		if item.Score < minScore {
			continue
		}
		if taken >= topK {
			break
		}
		// Every score-passing item occupies a topK slot; a blank-text item
		// still contributes its source.
		taken++
		if item.Text != "" {
			out.evidence = append(out.evidence, item.Text)
		}
		ref := item.Metadata.SourceRef()
		if ref == "" {
			continue
		}
		if _, ok := seenSources[ref]; ok {
			continue
		}
		seenSources[ref] = struct{}{}
		out.sources = append(out.sources, ref)
	}
	return out, nil
}

// sourceRefs maps candidates to their deduplicated, order-preserving source
// identifiers.
func sourceRefs(candidates []domain.Candidate) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		ref := c.Metadata.SourceRef()
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
