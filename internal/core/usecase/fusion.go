package usecase

import (
	"sort"
	"strings"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

// defaultRRFK is the standard Reciprocal Rank Fusion constant (Cormack et
// al. 2009).
const defaultRRFK = 60

type fusedCandidate struct {
	candidate domain.Candidate
	score     float64
}

// fuseRRF merges the vector and full-text rankings via Reciprocal Rank
// Fusion: each candidate scores 1/(k+rank) per list it appears in, summed
// across lists, sorted descending and truncated to size. Rank is 1-based.
// With one empty input this degenerates to the other list truncated to size.
func fuseRRF(vector, fullText []domain.Candidate, rrfK, size int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate, len(vector)+len(fullText))
	order := make([]string, 0, len(vector)+len(fullText))
	addList := func(list []domain.Candidate) {
		for rank, c := range list {
			key := candidateKey(c)
			f, ok := acc[key]
			if !ok {
				f = &fusedCandidate{candidate: c}
				acc[key] = f
				order = append(order, key)
			}
			f.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	addList(vector)
	addList(fullText)

	out := make([]domain.Candidate, 0, len(order))
	for _, key := range order {
		c := acc[key].candidate
		c.Score = acc[key].score
		out = append(out, c)
	}

	// Stable sort keeps first-seen order for equal scores.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if size > 0 && len(out) > size {
		out = out[:size]
	}
	return out
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

// candidateKey is the text+metadata identity used for fusion dedup.
func candidateKey(c domain.Candidate) string {
	return strings.Join([]string{
		c.Text,
		c.Metadata.Source,
		c.Metadata.Path,
		c.Metadata.Version,
		strings.Join(c.Metadata.Tags, ","),
	}, "|")
}
