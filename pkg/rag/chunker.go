package rag

import (
	"fmt"
	"strings"
)

// ChunkerConfig bounds chunk size and overlap, both in words.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// DefaultChunkerConfig returns window sizes suited to scientific prose.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize: 220,
		Overlap:   40,
	}
}

func (c ChunkerConfig) withDefaults() ChunkerConfig {
	d := DefaultChunkerConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		c.Overlap = d.Overlap
		if c.Overlap >= c.ChunkSize {
			c.Overlap = c.ChunkSize / 4
		}
	}
	return c
}

// ChunkDocument partitions a document into overlapping word windows, one
// sequence per page so every chunk carries a page reference.
func ChunkDocument(doc Document, cfg ChunkerConfig) []Chunk {
	cfg = cfg.withDefaults()

	var chunks []Chunk
	seq := 0
	for _, page := range doc.Pages {
		words := strings.Fields(page.Text)
		if len(words) == 0 {
			continue
		}

		step := cfg.ChunkSize - cfg.Overlap
		for start := 0; start < len(words); start += step {
			end := start + cfg.ChunkSize
			if end > len(words) {
				end = len(words)
			}

			chunks = append(chunks, Chunk{
				DocID:    doc.ID,
				ChunkID:  fmt.Sprintf("%s-%04d", doc.ID, seq),
				FileName: doc.FileName,
				Page:     page.Number,
				Text:     strings.Join(words[start:end], " "),
			})
			seq++

			if end == len(words) {
				break
			}
		}
	}
	return chunks
}
