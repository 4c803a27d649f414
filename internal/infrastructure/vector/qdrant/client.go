// Package qdrant implements the vector store port against the Qdrant HTTP
// API. The min-score floor is pushed down as score_threshold so filtering
// happens inside the store, never in the pipeline.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) IndexPassages(ctx context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) == 0 {
		return nil
	}
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages/vectors mismatch: %d/%d", len(passages), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(passages))
	for i, p := range passages {
		points = append(points, point{
			ID:     p.ID,
			Vector: vectors[i],
			Payload: map[string]any{
				"text":    p.Text,
				"source":  p.Metadata.Source,
				"path":    p.Metadata.Path,
				"version": p.Metadata.Version,
				"tags":    p.Metadata.Tags,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	minScore float64,
	filter domain.Filter,
) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if minScore > 0 {
		reqBody["score_threshold"] = minScore
	}
	if qf := buildQdrantFilter(filter); qf != nil {
		reqBody["filter"] = qf
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Candidate{
			Text: getStringPayload(r.Payload, "text"),
			Metadata: domain.Metadata{
				Source:  getStringPayload(r.Payload, "source"),
				Path:    getStringPayload(r.Payload, "path"),
				Version: getStringPayload(r.Payload, "version"),
				Tags:    getStringSlicePayload(r.Payload, "tags"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

// buildQdrantFilter conjoins the equality conditions; any present tag may
// match.
func buildQdrantFilter(filter domain.Filter) map[string]any {
	if filter.IsZero() {
		return nil
	}
	must := make([]map[string]any, 0, 3)
	if filter.Version != "" {
		must = append(must, map[string]any{
			"key":   "version",
			"match": map[string]any{"value": filter.Version},
		})
	}
	if filter.Source != "" {
		must = append(must, map[string]any{
			"key":   "source",
			"match": map[string]any{"value": filter.Source},
		})
	}
	if len(filter.Tags) > 0 {
		must = append(must, map[string]any{
			"key":   "tags",
			"match": map[string]any{"any": filter.Tags},
		})
	}
	return map[string]any{"must": must}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.do(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	if err != nil {
		// 409 means the collection already exists.
		var statusErr *httpStatusError
		if !errors.As(err, &statusErr) || statusErr.statusCode != http.StatusConflict {
			return err
		}
	}
	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

type httpStatusError struct {
	operation  string
	statusCode int
	status     string
	body       string
}

func (e *httpStatusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, strings.TrimSpace(e.body))
}

func (c *Client) do(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrBackendUnavailable, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &httpStatusError{
			operation:  operation,
			statusCode: resp.StatusCode,
			status:     resp.Status,
			body:       string(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func getStringSlicePayload(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
