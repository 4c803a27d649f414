package config

import (
	"testing"
	"time"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("RETRIEVAL_MIN_SCORE", "")
	t.Setenv("RETRIEVAL_CANDIDATE_SIZE", "")
	t.Setenv("RETRIEVAL_FULLTEXT_TOP_K", "")
	t.Setenv("RETRIEVAL_FUSION_RRF_K", "")
	t.Setenv("ENGINE_MODE", "")

	cfg := Load()
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalMinScore != 0.2 {
		t.Fatalf("expected default min score 0.2, got %v", cfg.RetrievalMinScore)
	}
	if cfg.CandidateSize != 20 {
		t.Fatalf("expected default candidate size 20, got %d", cfg.CandidateSize)
	}
	if cfg.FullTextTopK != 20 {
		t.Fatalf("expected default fulltext top k 20, got %d", cfg.FullTextTopK)
	}
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.EngineMode != "primary" {
		t.Fatalf("expected default engine mode primary, got %q", cfg.EngineMode)
	}
}

func TestLoadCacheAndLimiterDefaults(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "")
	t.Setenv("CACHE_EMBEDDING_TTL", "")
	t.Setenv("CACHE_RESULT_TTL", "")
	t.Setenv("LIMITER_MAX_SIZE", "")
	t.Setenv("LIMITER_QUEUE_CAPACITY", "")

	cfg := Load()
	if !cfg.CacheEnabled {
		t.Fatalf("expected cache enabled by default")
	}
	if cfg.EmbeddingCacheTTL != 30*time.Minute {
		t.Fatalf("expected embedding ttl 30m, got %v", cfg.EmbeddingCacheTTL)
	}
	if cfg.ResultCacheTTL != 10*time.Minute {
		t.Fatalf("expected result ttl 10m, got %v", cfg.ResultCacheTTL)
	}
	if cfg.LimiterMaxSize != 8 || cfg.LimiterQueueCapacity != 64 {
		t.Fatalf("unexpected limiter defaults: %d/%d",
			cfg.LimiterMaxSize, cfg.LimiterQueueCapacity)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("RETRIEVAL_MIN_SCORE", "0.35")
	t.Setenv("CACHE_RESULT_TTL", "45s")
	t.Setenv("ENGINE_MODE", "dual")
	t.Setenv("LIMITER_ENABLED", "false")

	cfg := Load()
	if cfg.RetrievalTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalMinScore != 0.35 {
		t.Fatalf("expected min score 0.35, got %v", cfg.RetrievalMinScore)
	}
	if cfg.ResultCacheTTL != 45*time.Second {
		t.Fatalf("expected result ttl 45s, got %v", cfg.ResultCacheTTL)
	}
	if cfg.EngineMode != "dual" {
		t.Fatalf("expected engine mode dual, got %q", cfg.EngineMode)
	}
	if cfg.LimiterEnabled {
		t.Fatalf("expected limiter disabled")
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")
	t.Setenv("CACHE_EMBEDDING_TTL", "soon")

	cfg := Load()
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected fallback top k 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.EmbeddingCacheTTL != 30*time.Minute {
		t.Fatalf("expected fallback embedding ttl 30m, got %v", cfg.EmbeddingCacheTTL)
	}
}
