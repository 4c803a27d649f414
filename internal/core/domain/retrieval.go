package domain

import "time"

// NoMatchText is the fixed answer returned when retrieval produced no
// evidence. The generation model is never called in that case.
const NoMatchText = "No relevant content was found. Adjust the question or the filter conditions."

// Filter restricts retrieval by passage metadata. Version and Source are
// equality conditions, Tags is an OR-of-contains set; all present conditions
// are conjoined.
type Filter struct {
	Version string   `json:"version,omitempty"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

func (f Filter) IsZero() bool {
	return f.Version == "" && f.Source == "" && len(f.Tags) == 0
}

// Metadata describes where a passage came from.
type Metadata struct {
	Source  string   `json:"source,omitempty"`
	Path    string   `json:"path,omitempty"`
	Version string   `json:"version,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// SourceRef renders the deduplicated source identifier: "source" or
// "source:path" when a path is present. Empty when neither is set.
func (m Metadata) SourceRef() string {
	if m.Source == "" && m.Path == "" {
		return ""
	}
	if m.Path == "" {
		return m.Source
	}
	return m.Source + ":" + m.Path
}

// Candidate is one retrieved passage with its backend score. Candidates are
// created per request and discarded after ranking.
type Candidate struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// Passage is the unit of the ingest write path: pre-extracted text plus
// metadata, ready for embedding and indexing.
type Passage struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// AskRequest is one question against the corpus. TopK and MinScore fall back
// to configured defaults when nil.
type AskRequest struct {
	Question string   `json:"question"`
	TopK     *int     `json:"top_k,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
	Version  string   `json:"version,omitempty"`
	Source   string   `json:"source,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

func (r AskRequest) Filter() Filter {
	return Filter{Version: r.Version, Source: r.Source, Tags: r.Tags}
}

// Answer is the cacheable unit returned to the caller.
type Answer struct {
	Text     string   `json:"answer"`
	Evidence []string `json:"evidence"`
	Sources  []string `json:"sources"`
}

// NoMatchAnswer returns the sentinel answer with empty evidence and sources.
func NoMatchAnswer() Answer {
	return Answer{Text: NoMatchText, Evidence: []string{}, Sources: []string{}}
}

// SecondaryItem is one scored result from the secondary retrieval engine.
type SecondaryItem struct {
	Text     string   `json:"text"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// IndexedBatch is the ledger record of one ingest write.
type IndexedBatch struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Tags      []string  `json:"tags"`
	Passages  int       `json:"passages"`
	IndexedAt time.Time `json:"indexed_at"`
}
