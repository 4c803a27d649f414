package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

type askerFake struct {
	answer domain.Answer
	err    error
	req    domain.AskRequest
}

func (f *askerFake) Ask(_ context.Context, req domain.AskRequest) (domain.Answer, error) {
	f.req = req
	if f.err != nil {
		return domain.Answer{}, f.err
	}
	return f.answer, nil
}

type ingestorFake struct {
	batch    domain.IndexedBatch
	err      error
	received []domain.Passage
}

func (f *ingestorFake) IngestPassages(_ context.Context, passages []domain.Passage) (domain.IndexedBatch, error) {
	f.received = passages
	if f.err != nil {
		return domain.IndexedBatch{}, f.err
	}
	return f.batch, nil
}

func newTestHandler(asker *askerFake, ingestor *ingestorFake, options RouterOptions) http.Handler {
	return NewRouter(asker, ingestor, options).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAskEndpointReturnsAnswer(t *testing.T) {
	asker := &askerFake{answer: domain.Answer{
		Text:     "answer",
		Evidence: []string{"e1"},
		Sources:  []string{"s1"},
	}}
	handler := newTestHandler(asker, &ingestorFake{}, RouterOptions{})

	res := postJSON(t, handler, "/v1/ask", `{"question":"q","top_k":3,"tags":["net"],"keywords":["tls"]}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var answer domain.Answer
	if err := json.Unmarshal(res.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if answer.Text != "answer" || len(answer.Sources) != 1 {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if asker.req.TopK == nil || *asker.req.TopK != 3 {
		t.Fatalf("expected topK forwarded, got %+v", asker.req)
	}
	if len(asker.req.Keywords) != 1 {
		t.Fatalf("expected keywords forwarded, got %+v", asker.req)
	}
}

func TestAskEndpointRejectsEmptyQuestion(t *testing.T) {
	handler := newTestHandler(&askerFake{}, &ingestorFake{}, RouterOptions{})

	res := postJSON(t, handler, "/v1/ask", `{"question":"  "}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskEndpointAdmissionRejectionIs429(t *testing.T) {
	asker := &askerFake{err: domain.WrapError(domain.ErrAdmissionRejected, "ask", errors.New("saturated"))}
	handler := newTestHandler(asker, &ingestorFake{}, RouterOptions{})

	res := postJSON(t, handler, "/v1/ask", `{"question":"q"}`)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAskEndpointContractViolationIs502(t *testing.T) {
	asker := &askerFake{err: domain.WrapError(domain.ErrContractViolation, "rerank", errors.New("mismatch"))}
	handler := newTestHandler(asker, &ingestorFake{}, RouterOptions{})

	res := postJSON(t, handler, "/v1/ask", `{"question":"q"}`)
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestAskEndpointBackendUnavailableIs503(t *testing.T) {
	asker := &askerFake{err: domain.WrapError(domain.ErrBackendUnavailable, "embed", errors.New("down"))}
	handler := newTestHandler(asker, &ingestorFake{}, RouterOptions{})

	res := postJSON(t, handler, "/v1/ask", `{"question":"q"}`)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestIngestEndpointAcceptsPassages(t *testing.T) {
	ingestor := &ingestorFake{batch: domain.IndexedBatch{ID: "b1", Passages: 2}}
	handler := newTestHandler(&askerFake{}, ingestor, RouterOptions{})

	res := postJSON(t, handler, "/v1/ingest", `{"passages":[
		{"text":"one","source":"manual","path":"ch1","version":"v1","tags":["net"]},
		{"text":"two","source":"manual","path":"ch2","version":"v1"}
	]}`)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(ingestor.received) != 2 || ingestor.received[0].Metadata.SourceRef() != "manual:ch1" {
		t.Fatalf("unexpected passages %+v", ingestor.received)
	}
}

func TestIngestEndpointRejectsEmptyBody(t *testing.T) {
	handler := newTestHandler(&askerFake{}, &ingestorFake{}, RouterOptions{})

	res := postJSON(t, handler, "/v1/ingest", `{"passages":[]}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestHandler(&askerFake{answer: domain.Answer{Text: "ok"}}, &ingestorFake{}, RouterOptions{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	})

	res1 := postJSON(t, handler, "/v1/ask", `{"question":"q"}`)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}
	res2 := postJSON(t, handler, "/v1/ask", `{"question":"q"}`)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestRequestIDHeaderValidatedOrReplaced(t *testing.T) {
	handler := newTestHandler(&askerFake{}, &ingestorFake{}, RouterOptions{})

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, inbound)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get(requestIDHeader); got != inbound {
		t.Fatalf("expected valid inbound id echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	got := res.Header().Get(requestIDHeader)
	if got == "not-a-uuid" {
		t.Fatalf("expected invalid inbound id replaced")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected replacement id to be a uuid, got %q: %v", got, err)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(&askerFake{}, &ingestorFake{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
