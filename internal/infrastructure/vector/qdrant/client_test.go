package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

func testPassages() ([]domain.Passage, [][]float32) {
	passages := []domain.Passage{
		{ID: "11111111-1111-1111-1111-111111111111", Text: "a", Metadata: domain.Metadata{Source: "manual"}},
		{ID: "22222222-2222-2222-2222-222222222222", Text: "b", Metadata: domain.Metadata{Source: "manual"}},
	}
	return passages, [][]float32{{0.1, 0.2}, {0.3, 0.4}}
}

func TestIndexPassagesEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/passages":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/passages/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "passages", time.Second)
	passages, vectors := testPassages()
	if err := client.IndexPassages(context.Background(), passages, vectors); err != nil {
		t.Fatalf("first IndexPassages() error = %v", err)
	}
	if err := client.IndexPassages(context.Background(), passages, vectors); err != nil {
		t.Fatalf("second IndexPassages() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestIndexPassagesTreatsExistingCollectionAsEnsured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/passages":
			http.Error(w, "already exists", http.StatusConflict)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/passages/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "passages", time.Second)
	passages, vectors := testPassages()
	if err := client.IndexPassages(context.Background(), passages, vectors); err != nil {
		t.Fatalf("IndexPassages() error = %v", err)
	}
}

func TestSearchPushesDownScoreThresholdAndFilter(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/passages/points/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode search body: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[{"score":0.91,"payload":{"text":"hit","source":"manual","path":"ch1","version":"v2","tags":["net"]}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "passages", time.Second)
	got, err := client.Search(context.Background(), []float32{0.1}, 7, 0.25, domain.Filter{
		Version: "v2", Source: "manual", Tags: []string{"net", "sec"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if captured["score_threshold"] != 0.25 {
		t.Fatalf("expected score_threshold 0.25, got %v", captured["score_threshold"])
	}
	if captured["limit"] != float64(7) {
		t.Fatalf("expected limit 7, got %v", captured["limit"])
	}
	filter, _ := captured["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 3 {
		t.Fatalf("expected 3 filter conditions, got %v", filter)
	}

	if len(got) != 1 || got[0].Text != "hit" || got[0].Metadata.SourceRef() != "manual:ch1" {
		t.Fatalf("unexpected candidates %v", got)
	}
	if got[0].Score != 0.91 {
		t.Fatalf("expected backend score preserved, got %v", got[0].Score)
	}
}

func TestSearchErrorIncludesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection missing", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "passages", time.Second)
	_, err := client.Search(context.Background(), []float32{0.1}, 5, 0, domain.Filter{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "collection missing") {
		t.Fatalf("expected body in error, got %v", err)
	}
}
