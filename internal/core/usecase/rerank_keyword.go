package usecase

import (
	"sort"
	"strings"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

type keywordScored struct {
	candidate domain.Candidate
	score     float64
	hits      int
}

// rerankByKeywords boosts candidates containing the requested keywords. The
// base score is 1/(position+1) over the fused order; each case-insensitive
// substring hit adds 1+boost. With no usable keywords the input order is
// returned unchanged.
func rerankByKeywords(candidates []domain.Candidate, keywords []string, boost float64) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		normalized = append(normalized, k)
	}
	if len(normalized) == 0 {
		return candidates
	}

	scored := make([]keywordScored, len(candidates))
	for i, c := range candidates {
		lower := strings.ToLower(c.Text)
		hits := 0
		for _, k := range normalized {
			if strings.Contains(lower, k) {
				hits++
			}
		}
		scored[i] = keywordScored{
			candidate: c,
			score:     1.0/float64(i+1) + float64(hits)*(1.0+boost),
			hits:      hits,
		}
	}

	// Stable sort: ties keep the original fused order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	out := make([]domain.Candidate, len(scored))
	for i, s := range scored {
		out[i] = s.candidate
	}
	return out
}
