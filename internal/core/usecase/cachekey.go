package usecase

import (
	"sort"
	"strconv"
	"strings"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

// buildCacheKey derives the result-cache key from the normalized question,
// filters, keywords and the resolved topK/minScore. Requests differing only
// in casing or tag/keyword order map to the same key.
func buildCacheKey(req domain.AskRequest, topK int, minScore float64) string {
	var sb strings.Builder
	sb.WriteString(normalizeTerm(req.Question))
	sb.WriteString("|")
	sb.WriteString(normalizeTerm(req.Version))
	sb.WriteString("|")
	sb.WriteString(normalizeTerm(req.Source))
	sb.WriteString("|")
	sb.WriteString(normalizeTermList(req.Tags))
	sb.WriteString("|")
	sb.WriteString(normalizeTermList(req.Keywords))
	sb.WriteString("|")
	sb.WriteString(strconv.Itoa(topK))
	sb.WriteString("|")
	sb.WriteString(strconv.FormatFloat(minScore, 'f', -1, 64))
	return sb.String()
}

func normalizeTerm(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// normalizeTermList trims, lowercases, drops empties, sorts and deduplicates.
func normalizeTermList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = normalizeTerm(v)
		if v == "" {
			continue
		}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	deduped := cleaned[:0]
	var last string
	for i, v := range cleaned {
		if i > 0 && v == last {
			continue
		}
		deduped = append(deduped, v)
		last = v
	}
	return strings.Join(deduped, ",")
}
