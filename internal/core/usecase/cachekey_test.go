package usecase

import (
	"testing"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

func TestBuildCacheKeyNormalizesCasingAndOrder(t *testing.T) {
	a := domain.AskRequest{
		Question: "  What is TLS? ",
		Version:  "V1",
		Source:   "Docs",
		Tags:     []string{"Net", "security"},
		Keywords: []string{"Handshake", "cert"},
	}
	b := domain.AskRequest{
		Question: "what is tls?",
		Version:  "v1",
		Source:   "docs",
		Tags:     []string{"security", "net", "NET"},
		Keywords: []string{"cert", "handshake"},
	}

	if buildCacheKey(a, 5, 0.2) != buildCacheKey(b, 5, 0.2) {
		t.Fatalf("expected equivalent requests to share a cache key")
	}
}

func TestBuildCacheKeyDistinguishesResolvedParameters(t *testing.T) {
	req := domain.AskRequest{Question: "q"}

	if buildCacheKey(req, 5, 0.2) == buildCacheKey(req, 3, 0.2) {
		t.Fatalf("expected topK to affect the key")
	}
	if buildCacheKey(req, 5, 0.2) == buildCacheKey(req, 5, 0.3) {
		t.Fatalf("expected minScore to affect the key")
	}
}

func TestBuildCacheKeyDistinguishesFilters(t *testing.T) {
	base := domain.AskRequest{Question: "q"}
	filtered := domain.AskRequest{Question: "q", Source: "runbook"}

	if buildCacheKey(base, 5, 0.2) == buildCacheKey(filtered, 5, 0.2) {
		t.Fatalf("expected source filter to affect the key")
	}
}
