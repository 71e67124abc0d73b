// Package rag builds a persistent chunked vector index over source documents
// and answers queries with citation-backed, cacheable responses.
package rag

import "time"

// Document is one source document supplied as raw text, split into pages so
// citations can point back to a location.
type Document struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Pages    []Page `json:"pages"`
}

// Page is one page of a source document.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chunk is an embedded slice of a source document. Chunks are created once at
// index-build time and never mutated.
type Chunk struct {
	DocID    string    `json:"doc_id"`
	ChunkID  string    `json:"chunk_id"`
	FileName string    `json:"file_name"`
	Page     int       `json:"page"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"-"`
}

// Citation is a structured pointer justifying part of an answer. Citations
// are derived alongside answers, never stored independently.
type Citation struct {
	SourceID       string  `json:"source_id"`
	FileName       string  `json:"file_name"`
	Page           int     `json:"page"`
	RelevanceScore float64 `json:"relevance_score"`
	Excerpt        string  `json:"excerpt"`
}

// Answer is a synthesized response with its supporting citations.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	// FromCache reports whether this answer was served from the query cache.
	FromCache bool `json:"from_cache,omitempty"`
}

// CachedQuery is one immutable query-cache entry.
type CachedQuery struct {
	QueryHash string    `json:"query_hash"`
	Answer    string    `json:"answer"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time `json:"created_at"`
}

// Match pairs a chunk with its similarity to a query embedding.
type Match struct {
	Chunk Chunk
	Score float64
}
