package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/knowlab/corpusqa/internal/core/domain"
	"github.com/knowlab/corpusqa/internal/core/ports"
)

// rerankByCrossEncoder rescores the top-topN prefix of the fused list with
// the joint (question, passage) scoring model. Candidates beyond topN keep
// their fused positions after the rescored prefix. A score-count mismatch is
// a contract violation, never guessed around.
func rerankByCrossEncoder(
	ctx context.Context,
	scoring ports.ScoringModel,
	question string,
	candidates []domain.Candidate,
	topN int,
) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	texts := make([]string, topN)
	for i, c := range candidates[:topN] {
		texts[i] = c.Text
	}

	scores, err := scoring.ScoreAll(ctx, question, texts)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if len(scores) != topN {
		return nil, domain.WrapError(
			domain.ErrContractViolation,
			"cross-encoder rerank",
			fmt.Errorf("scores/passages mismatch: %d/%d", len(scores), topN),
		)
	}

	head := make([]domain.Candidate, topN)
	copy(head, candidates[:topN])
	for i := range head {
		head[i].Score = scores[i]
	}
	sort.SliceStable(head, func(i, j int) bool {
		return head[i].Score > head[j].Score
	})

	if topN == len(candidates) {
		return head, nil
	}
	out := make([]domain.Candidate, 0, len(candidates))
	out = append(out, head...)
	out = append(out, candidates[topN:]...)
	return out, nil
}
