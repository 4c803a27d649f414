// Package bleve implements the full-text retrieval port on a bleve index.
// Lexical matches are never score-filtered; whatever bleve ranks comes back
// up to topK and rank fusion decides the rest.
package bleve

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

type Index struct {
	path string

	mu  sync.RWMutex
	idx bleve.Index
}

// NewDiskIndex opens the index at path when one exists. A missing index is
// not an error: searches return empty until the first write creates it.
func NewDiskIndex(path string) (*Index, error) {
	out := &Index{path: path}
	if _, err := os.Stat(path); err != nil {
		return out, nil
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fulltext index: %w", err)
	}
	out.idx = idx
	return out, nil
}

// NewMemIndex builds an in-memory index, used by tests and the worker's
// rebuild staging.
func NewMemIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create fulltext index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	passage := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	passage.AddFieldMappingsAt("text", text)

	// Metadata fields are exact-match filters, not analyzed prose.
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	passage.AddFieldMappingsAt("source", exact)
	passage.AddFieldMappingsAt("path", exact)
	passage.AddFieldMappingsAt("version", exact)
	passage.AddFieldMappingsAt("tags", exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = passage
	return m
}

type passageDoc struct {
	Text    string   `json:"text"`
	Source  string   `json:"source"`
	Path    string   `json:"path"`
	Version string   `json:"version"`
	Tags    []string `json:"tags"`
}

func (i *Index) Index(_ context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.idx == nil {
		idx, err := bleve.New(i.path, buildMapping())
		if err != nil {
			return fmt.Errorf("create fulltext index: %w", err)
		}
		i.idx = idx
	}
	return i.writeBatch(passages)
}

// Rebuild replaces the whole index with the given passage set.
func (i *Index) Rebuild(_ context.Context, passages []domain.Passage) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.idx != nil {
		if err := i.idx.Close(); err != nil {
			return fmt.Errorf("close fulltext index: %w", err)
		}
		i.idx = nil
	}
	if i.path != "" {
		if err := os.RemoveAll(i.path); err != nil {
			return fmt.Errorf("remove fulltext index: %w", err)
		}
	}

	var (
		idx bleve.Index
		err error
	)
	if i.path == "" {
		idx, err = bleve.NewMemOnly(buildMapping())
	} else {
		idx, err = bleve.New(i.path, buildMapping())
	}
	if err != nil {
		return fmt.Errorf("recreate fulltext index: %w", err)
	}
	i.idx = idx
	return i.writeBatch(passages)
}

func (i *Index) writeBatch(passages []domain.Passage) error {
	batch := i.idx.NewBatch()
	for _, p := range passages {
		doc := passageDoc{
			Text:    p.Text,
			Source:  p.Metadata.Source,
			Path:    p.Metadata.Path,
			Version: p.Metadata.Version,
			Tags:    p.Metadata.Tags,
		}
		if err := batch.Index(p.ID, doc); err != nil {
			return fmt.Errorf("index passage %s: %w", p.ID, err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("write fulltext batch: %w", err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, queryText string, filter domain.Filter, topK int) ([]domain.Candidate, error) {
	i.mu.RLock()
	idx := i.idx
	i.mu.RUnlock()
	if idx == nil {
		return nil, nil
	}
	if topK <= 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(buildQuery(queryText, filter), topK, 0, false)
	req.Fields = []string{"text", "source", "path", "version", "tags"}

	result, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}

	out := make([]domain.Candidate, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, domain.Candidate{
			Text: fieldString(hit.Fields, "text"),
			Metadata: domain.Metadata{
				Source:  fieldString(hit.Fields, "source"),
				Path:    fieldString(hit.Fields, "path"),
				Version: fieldString(hit.Fields, "version"),
				Tags:    fieldStrings(hit.Fields, "tags"),
			},
			Score: hit.Score,
		})
	}
	return out, nil
}

func buildQuery(queryText string, filter domain.Filter) query.Query {
	match := bleve.NewMatchQuery(queryText)
	match.SetField("text")

	if filter.IsZero() {
		return match
	}

	// Filter clauses gate admission only. Zero boost keeps their match
	// scores out of the hit score, so the lexical ranking entering fusion
	// depends on the query text alone.
	boolean := bleve.NewBooleanQuery()
	boolean.AddMust(match)
	if filter.Version != "" {
		term := bleve.NewTermQuery(filter.Version)
		term.SetField("version")
		term.SetBoost(0)
		boolean.AddMust(term)
	}
	if filter.Source != "" {
		term := bleve.NewTermQuery(filter.Source)
		term.SetField("source")
		term.SetBoost(0)
		boolean.AddMust(term)
	}
	if len(filter.Tags) > 0 {
		anyTag := bleve.NewBooleanQuery()
		for _, tag := range filter.Tags {
			term := bleve.NewTermQuery(tag)
			term.SetField("tags")
			term.SetBoost(0)
			anyTag.AddShould(term)
		}
		anyTag.SetMinShould(1)
		anyTag.SetBoost(0)
		boolean.AddMust(anyTag)
	}
	return boolean
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.idx == nil {
		return nil
	}
	err := i.idx.Close()
	i.idx = nil
	return err
}

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldStrings(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
