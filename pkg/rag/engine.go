package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/core"
	"github.com/shelfsense/shelfsense/pkg/embedding"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
)

// Engine answers natural-language questions against the chunk index, with
// every claim traceable to a retrieved source chunk.
type Engine struct {
	index    *Index
	cache    *QueryCache
	embedder embedding.Embedder
	llm      core.LLM
	topK     int
}

// QueryOption adjusts a single Query call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	useCache bool
	context  string
	topK     int
}

// WithCache enables the query cache for this call. queryContext participates
// in the cache key so the same question asked about different products does
// not collide.
func WithCache(queryContext string) QueryOption {
	return func(o *queryOptions) {
		o.useCache = true
		o.context = queryContext
	}
}

// WithTopK overrides the number of chunks retrieved for this call.
func WithTopK(k int) QueryOption {
	return func(o *queryOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// NewEngine assembles a query engine. cache may be nil, in which case
// WithCache is a no-op.
func NewEngine(index *Index, cache *QueryCache, embedder embedding.Embedder, llm core.LLM, topK int) *Engine {
	if topK <= 0 {
		topK = 5
	}
	return &Engine{
		index:    index,
		cache:    cache,
		embedder: embedder,
		llm:      llm,
		topK:     topK,
	}
}

// Query retrieves the most relevant chunks for the question and synthesizes a
// cited answer. Cached answers are returned verbatim without touching the
// embedding or completion providers.
func (e *Engine) Query(ctx context.Context, query string, opts ...QueryOption) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.InvalidInput, "query must not be empty")
	}

	options := queryOptions{topK: e.topK}
	for _, opt := range opts {
		opt(&options)
	}

	logger := logging.GetLogger()

	var key string
	if options.useCache && e.cache != nil {
		key = CacheKey(query, options.context)
		cached, err := e.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			logger.Debug(ctx, "query cache hit: %s", key[:12])
			return cached, nil
		}
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOf(err), "failed to embed query")
	}

	matches := e.index.Search(vectors[0], options.topK)
	if len(matches) == 0 {
		return &Answer{Text: "No relevant source material was found for this question."}, nil
	}

	answerText, err := e.synthesize(ctx, query, matches)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Text:      answerText,
		Citations: buildCitations(matches),
	}

	if options.useCache && e.cache != nil {
		if err := e.cache.Put(ctx, key, query, answer); err != nil {
			logger.Warn(ctx, "failed to cache answer: %v", err)
		}
	}
	return answer, nil
}

// synthesize asks the completion provider to answer from the retrieved
// excerpts only, citing chunk identifiers inline.
func (e *Engine) synthesize(ctx context.Context, query string, matches []Match) (string, error) {
	var sb strings.Builder
	sb.WriteString("Answer the question using only the source excerpts below. ")
	sb.WriteString("Cite the excerpt identifiers in square brackets for every claim. ")
	sb.WriteString("If the excerpts do not contain the answer, say so.\n\n")
	for _, m := range matches {
		fmt.Fprintf(&sb, "[%s] (%s, page %d)\n%s\n\n", m.Chunk.ChunkID, m.Chunk.FileName, m.Chunk.Page, m.Chunk.Text)
	}
	fmt.Fprintf(&sb, "Question: %s\n", query)

	resp, err := e.llm.Generate(ctx, sb.String())
	if err != nil {
		return "", errors.Wrap(err, errors.CodeOf(err), "failed to synthesize answer")
	}
	return strings.TrimSpace(resp.Content), nil
}

// buildCitations converts ranked matches into citation records. Relevance is
// the cosine score so callers can threshold on it downstream.
func buildCitations(matches []Match) []Citation {
	citations := make([]Citation, len(matches))
	for i, m := range matches {
		citations[i] = Citation{
			SourceID:       m.Chunk.ChunkID,
			FileName:       m.Chunk.FileName,
			Page:           m.Chunk.Page,
			RelevanceScore: m.Score,
			Excerpt:        excerpt(m.Chunk.Text, 200),
		}
	}
	return citations
}

func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
