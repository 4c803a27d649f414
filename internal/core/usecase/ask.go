package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knowlab/corpusqa/internal/cache"
	"github.com/knowlab/corpusqa/internal/core/domain"
	"github.com/knowlab/corpusqa/internal/core/ports"
	"github.com/knowlab/corpusqa/internal/limiter"
	"github.com/knowlab/corpusqa/internal/observability/metrics"
)

// Mode selects which retrieval engines answer a request.
type Mode string

const (
	// ModePrimary uses only the vector + full-text pipeline.
	ModePrimary Mode = "primary"
	// ModeSecondary delegates retrieval entirely to the secondary engine.
	ModeSecondary Mode = "secondary"
	// ModeDual runs both and merges the secondary evidence ahead of the
	// primary pipeline's.
	ModeDual Mode = "dual"
)

func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSecondary:
		return ModeSecondary
	case ModeDual:
		return ModeDual
	default:
		return ModePrimary
	}
}

// Settings are the resolved retrieval knobs for the ask pipeline.
type Settings struct {
	Service string

	TopK          int
	MinScore      float64
	CandidateSize int

	HybridEnabled bool
	FullTextTopK  int
	RRFK          int

	KeywordRerankEnabled bool
	KeywordBoost         float64
	CrossEncoderEnabled  bool
	CrossEncoderTopK     int

	EngineMode Mode
}

// AskUseCase is the per-request orchestrator:
// cache check -> admit -> cache recheck -> retrieve -> fuse -> rerank ->
// generate -> cache store.
type AskUseCase struct {
	settings Settings

	embedder  ports.Embedder
	vectors   ports.VectorStore
	fullText  ports.FullTextIndex
	scoring   ports.ScoringModel
	secondary ports.SecondaryEngine
	generator ports.AnswerGenerator

	embeddings cache.Cache[[]float32]
	results    cache.Cache[domain.Answer]
	gate       limiter.Limiter

	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

func NewAskUseCase(
	settings Settings,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	fullText ports.FullTextIndex,
	scoring ports.ScoringModel,
	secondary ports.SecondaryEngine,
	generator ports.AnswerGenerator,
	embeddings cache.Cache[[]float32],
	results cache.Cache[domain.Answer],
	gate limiter.Limiter,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *slog.Logger,
) *AskUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		settings:   settings,
		embedder:   embedder,
		vectors:    vectors,
		fullText:   fullText,
		scoring:    scoring,
		secondary:  secondary,
		generator:  generator,
		embeddings: embeddings,
		results:    results,
		gate:       gate,
		metrics:    pipelineMetrics,
		logger:     logger,
	}
}

// Ask answers one question. The cache-only fast path runs on the caller;
// everything from retrieval through generation holds an admission slot.
func (uc *AskUseCase) Ask(ctx context.Context, req domain.AskRequest) (domain.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return domain.Answer{}, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}

	topK := uc.settings.TopK
	if req.TopK != nil && *req.TopK > 0 {
		topK = *req.TopK
	}
	minScore := uc.settings.MinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	uc.logger.Info("ask_started",
		"question_len", len(req.Question),
		"top_k", topK,
		"min_score", minScore,
		"tags", len(req.Tags),
		"keywords", len(req.Keywords),
	)

	key := buildCacheKey(req, topK, minScore)
	if cached, ok := uc.results.Get(key); ok {
		uc.metrics.CacheLookup(uc.settings.Service, "result", true)
		uc.metrics.AskOutcome(uc.settings.Service, "cached")
		uc.logger.Info("result_cache_hit")
		return cached, nil
	}
	uc.metrics.CacheLookup(uc.settings.Service, "result", false)

	var answer domain.Answer
	err := uc.gate.Do(ctx, func() error {
		// Second check closes most of the race window between the miss
		// above and slot acquisition; duplicate computation under a lost
		// race stays possible and is accepted.
		if cached, ok := uc.results.Get(key); ok {
			uc.logger.Info("result_cache_hit_after_admission")
			answer = cached
			return nil
		}

		computed, askErr := uc.doAsk(ctx, req, topK, minScore)
		if askErr != nil {
			return askErr
		}
		uc.results.Put(key, computed)
		answer = computed
		return nil
	})
	if err != nil {
		if errors.Is(err, limiter.ErrSaturated) {
			uc.metrics.AdmissionRejected()
			uc.metrics.AskOutcome(uc.settings.Service, "rejected")
			return domain.Answer{}, domain.WrapError(domain.ErrAdmissionRejected, "ask", err)
		}
		uc.metrics.AskOutcome(uc.settings.Service, "error")
		return domain.Answer{}, err
	}

	if answer.Text == domain.NoMatchText {
		uc.metrics.AskOutcome(uc.settings.Service, "no_match")
	} else {
		uc.metrics.AskOutcome(uc.settings.Service, "answered")
	}
	uc.logger.Info("ask_completed",
		"answer_len", len(answer.Text),
		"evidence", len(answer.Evidence),
		"sources", len(answer.Sources),
	)
	return answer, nil
}

func (uc *AskUseCase) doAsk(ctx context.Context, req domain.AskRequest, topK int, minScore float64) (domain.Answer, error) {
	candidateSize := max(topK, uc.settings.CandidateSize)
	filter := req.Filter()

	mode := uc.settings.EngineMode
	if uc.secondary == nil {
		mode = ModePrimary
	}

	if mode == ModeSecondary {
		sec, err := uc.retrieveSecondary(ctx, req.Question, topK, minScore, filter)
		if err != nil {
			return domain.Answer{}, err
		}
		if len(sec.evidence) == 0 {
			uc.logger.Info("secondary_no_candidates")
			return domain.NoMatchAnswer(), nil
		}
		return uc.buildAnswer(ctx, req.Question, sec.evidence, sec.sources)
	}

	retrieveStart := time.Now()
	var (
		vector, fullText []domain.Candidate
		sec              secondaryOutcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vector, fullText, err = uc.retrievePrimary(gctx, req.Question, candidateSize, minScore, filter)
		return err
	})
	if mode == ModeDual {
		g.Go(func() error {
			var err error
			sec, err = uc.retrieveSecondary(gctx, req.Question, topK, minScore, filter)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Answer{}, err
	}
	uc.metrics.ObserveStage(uc.settings.Service, "retrieve", time.Since(retrieveStart))

	var fused []domain.Candidate
	if uc.settings.HybridEnabled {
		fused = fuseRRF(vector, fullText, uc.settings.RRFK, candidateSize)
	} else {
		fused = trimCandidates(vector, candidateSize)
	}
	uc.metrics.ObserveFusedCandidates(len(fused))
	uc.logger.Info("retrieval_completed",
		"vector_candidates", len(vector),
		"fulltext_candidates", len(fullText),
		"fused_candidates", len(fused),
	)

	evidence, sources, err := uc.rank(ctx, req, fused, topK)
	if err != nil {
		return domain.Answer{}, err
	}

	if mode == ModeDual && len(sec.evidence) > 0 {
		// Merged evidence is truncated to topK; merged sources are not.
		evidence = mergeUnique(sec.evidence, evidence, topK)
		sources = mergeUnique(sec.sources, sources, 0)
	}

	if len(evidence) == 0 {
		uc.logger.Info("no_evidence_short_circuit")
		return domain.NoMatchAnswer(), nil
	}
	return uc.buildAnswer(ctx, req.Question, evidence, sources)
}

// rank applies the configured rerank strategy to the fused candidates. The
// cross-encoder takes priority over keyword reranking when both are enabled.
func (uc *AskUseCase) rank(ctx context.Context, req domain.AskRequest, fused []domain.Candidate, topK int) ([]string, []string, error) {
	if len(fused) == 0 {
		return nil, nil, nil
	}

	rerankStart := time.Now()
	switch {
	case uc.settings.CrossEncoderEnabled && uc.scoring != nil:
		ranked, err := rerankByCrossEncoder(ctx, uc.scoring, req.Question, fused, uc.settings.CrossEncoderTopK)
		if err != nil {
			return nil, nil, err
		}
		uc.metrics.ObserveStage(uc.settings.Service, "rerank", time.Since(rerankStart))
		return candidateTexts(ranked, topK), sourceRefs(ranked), nil

	case uc.settings.KeywordRerankEnabled && len(req.Keywords) > 0:
		ranked := rerankByKeywords(fused, req.Keywords, uc.settings.KeywordBoost)
		uc.metrics.ObserveStage(uc.settings.Service, "rerank", time.Since(rerankStart))
		return candidateTexts(ranked, topK), sourceRefs(trimCandidates(ranked, topK)), nil

	default:
		return candidateTexts(fused, topK), sourceRefs(fused), nil
	}
}

func (uc *AskUseCase) buildAnswer(ctx context.Context, question string, evidence, sources []string) (domain.Answer, error) {
	generateStart := time.Now()
	text, err := uc.generator.GenerateAnswer(ctx, question, evidence)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	uc.metrics.ObserveStage(uc.settings.Service, "generate", time.Since(generateStart))

	if sources == nil {
		sources = []string{}
	}
	return domain.Answer{Text: text, Evidence: evidence, Sources: sources}, nil
}

func candidateTexts(candidates []domain.Candidate, limit int) []string {
	out := make([]string, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		out = append(out, c.Text)
	}
	return out
}

// mergeUnique unions two string sequences preserving order, dropping exact
// duplicates, keeping primary items first. limit <= 0 means unbounded.
func mergeUnique(primary, secondary []string, limit int) []string {
	out := make([]string, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	add := func(values []string) {
		for _, v := range values {
			if limit > 0 && len(out) >= limit {
				return
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	add(primary)
	add(secondary)
	return out
}
