package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func TestChunkDocumentShortPage(t *testing.T) {
	doc := Document{
		ID:       "doc1",
		FileName: "report.pdf",
		Pages:    []Page{{Number: 1, Text: "just a few words here"}},
	}

	chunks := ChunkDocument(doc, ChunkerConfig{})
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1-0000", chunks[0].ChunkID)
	assert.Equal(t, "report.pdf", chunks[0].FileName)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "just a few words here", chunks[0].Text)
}

func TestChunkDocumentOverlap(t *testing.T) {
	doc := Document{
		ID:       "doc1",
		FileName: "report.pdf",
		Pages:    []Page{{Number: 1, Text: words(25, "w")}},
	}

	chunks := ChunkDocument(doc, ChunkerConfig{ChunkSize: 10, Overlap: 3})
	require.True(t, len(chunks) > 1)

	// Consecutive chunks share the trailing words of the previous window.
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	assert.Equal(t, first[len(first)-3:], second[:3])

	// Every source word appears in at least one chunk.
	seen := map[string]bool{}
	for _, c := range chunks {
		for _, w := range strings.Fields(c.Text) {
			seen[w] = true
		}
	}
	for i := 0; i < 25; i++ {
		assert.True(t, seen[fmt.Sprintf("w%d", i)], "word w%d missing from chunks", i)
	}
}

func TestChunkDocumentPageBoundaries(t *testing.T) {
	doc := Document{
		ID:       "doc2",
		FileName: "trends.pdf",
		Pages: []Page{
			{Number: 1, Text: words(5, "a")},
			{Number: 2, Text: ""},
			{Number: 3, Text: words(5, "b")},
		},
	}

	chunks := ChunkDocument(doc, ChunkerConfig{ChunkSize: 10, Overlap: 2})
	require.Len(t, chunks, 2)

	// Chunks never span pages, and the empty page produces nothing.
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[1].Page)
	assert.NotContains(t, chunks[0].Text, "b0")
	assert.NotContains(t, chunks[1].Text, "a0")

	// Sequence numbers are document-wide, not per page.
	assert.Equal(t, "doc2-0000", chunks[0].ChunkID)
	assert.Equal(t, "doc2-0001", chunks[1].ChunkID)
}

func TestChunkDocumentEmpty(t *testing.T) {
	chunks := ChunkDocument(Document{ID: "doc3"}, ChunkerConfig{})
	assert.Empty(t, chunks)
}
