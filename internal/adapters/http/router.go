// Package httpadapter exposes the ask and ingest use cases over HTTP.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/knowlab/corpusqa/internal/core/domain"
	"github.com/knowlab/corpusqa/internal/core/ports"
)

type Router struct {
	asker    ports.Asker
	ingestor ports.PassageIngestor

	metricsHandler http.Handler
	rateLimitRPS   float64
	rateLimitBurst int
}

type RouterOptions struct {
	MetricsHandler http.Handler
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(asker ports.Asker, ingestor ports.PassageIngestor, options RouterOptions) *Router {
	return &Router{
		asker:          asker,
		ingestor:       ingestor,
		metricsHandler: options.MetricsHandler,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/ingest", rt.ingest)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	answer, err := rt.asker.Ask(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type ingestRequest struct {
	Passages []struct {
		ID      string   `json:"id"`
		Text    string   `json:"text"`
		Source  string   `json:"source"`
		Path    string   `json:"path"`
		Version string   `json:"version"`
		Tags    []string `json:"tags"`
	} `json:"passages"`
}

func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Passages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passages are required"})
		return
	}

	passages := make([]domain.Passage, 0, len(req.Passages))
	for _, p := range req.Passages {
		passages = append(passages, domain.Passage{
			ID:   p.ID,
			Text: p.Text,
			Metadata: domain.Metadata{
				Source:  p.Source,
				Path:    p.Path,
				Version: p.Version,
				Tags:    p.Tags,
			},
		})
	}

	batch, err := rt.ingestor.IngestPassages(r.Context(), passages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batch)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": requestIDFromContext(r.Context()),
	})
}
