// Package tei calls a text-embeddings-inference reranker for joint
// (question, passage) scoring.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/knowlab/corpusqa/internal/core/domain"
	"github.com/knowlab/corpusqa/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL string, timeout time.Duration, exec *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

// ScoreAll returns one score per passage, in passage order. The reranker
// responds in relevance order with input indexes; re-projection back to
// input order happens here so callers only ever see the port contract.
func (c *Client) ScoreAll(ctx context.Context, question string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"query": question,
		"texts": passages,
	}
	var response []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/rerank", request, &response)
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "reranker.score", call, classifyRerankError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	if len(response) != len(passages) {
		return nil, domain.WrapError(domain.ErrContractViolation, "reranker score",
			fmt.Errorf("got %d scores for %d passages", len(response), len(passages)))
	}
	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, item := range response {
		if item.Index < 0 || item.Index >= len(passages) || seen[item.Index] {
			return nil, domain.WrapError(domain.ErrContractViolation, "reranker score",
				fmt.Errorf("bad result index %d for %d passages", item.Index, len(passages)))
		}
		seen[item.Index] = true
		scores[item.Index] = item.Score
	}
	return scores, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrBackendUnavailable, "reranker request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("reranker status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("reranker status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}

func classifyRerankError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if domain.IsKind(err, domain.ErrBackendUnavailable) {
		return resilience.Verdict{Retry: true, TripBreaker: true}
	}
	if domain.IsKind(err, domain.ErrContractViolation) {
		return resilience.Verdict{}
	}
	return resilience.Verdict{TripBreaker: true}
}
