// Package llamaindex queries the secondary retrieval sidecar. Its results
// are merged with or substituted for the primary pipeline depending on the
// configured engine mode.
package llamaindex

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

type queryRequest struct {
	Question string   `json:"question"`
	TopK     int      `json:"top_k"`
	Version  string   `json:"version,omitempty"`
	Source   string   `json:"source,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type queryResult struct {
	Text    string   `json:"text"`
	Score   float64  `json:"score"`
	Source  string   `json:"source"`
	Path    string   `json:"path"`
	Version string   `json:"version"`
	Tags    []string `json:"tags"`
}

func (c *Client) Query(ctx context.Context, question string, topK int, filter domain.Filter) ([]domain.SecondaryItem, error) {
	request := queryRequest{
		Question: question,
		TopK:     topK,
		Version:  filter.Version,
		Source:   filter.Source,
		Tags:     filter.Tags,
	}

	var response struct {
		Results []queryResult `json:"results"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/query", request, &response)
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "secondary.query", call, classifyQueryError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.SecondaryItem, 0, len(response.Results))
	for _, r := range response.Results {
		out = append(out, domain.SecondaryItem{
			Text:  r.Text,
			Score: r.Score,
			Metadata: domain.Metadata{
				Source:  r.Source,
				Path:    r.Path,
				Version: r.Version,
				Tags:    r.Tags,
			},
		})
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal query request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrBackendUnavailable, "secondary query", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("secondary engine status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("secondary engine status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode query response: %w", err)
	}
	return nil
}

func classifyQueryError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if domain.IsKind(err, domain.ErrBackendUnavailable) {
		return resilience.Verdict{Retry: true, TripBreaker: true}
	}
	return resilience.Verdict{TripBreaker: true}
}
