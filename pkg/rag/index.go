package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shelfsense/shelfsense/pkg/embedding"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/logging"
)

// Index is the persistent chunk+vector store. Embedding cost is paid once at
// build time; later process starts load the persisted chunks instead of
// re-embedding. Reads are concurrent; rebuilds are explicit, out-of-band
// operations.
type Index struct {
	db *sql.DB

	mu     sync.RWMutex
	chunks []Chunk
}

// OpenIndex opens (or creates) the index database at path and loads any
// persisted chunks into memory.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.DependencyUnavailable, "failed to open index database")
	}
	db.SetMaxOpenConns(4)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DependencyUnavailable, "failed to enable WAL mode")
	}

	ix := &Index{db: db}
	if err := ix.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	if err := ix.load(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		page INTEGER NOT NULL,
		text TEXT NOT NULL,
		vector BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
	`
	_, err := ix.db.Exec(query)
	if err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to initialize index schema")
	}
	return nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Build chunks the documents, embeds every chunk through the rate-limited
// client, and atomically replaces the persisted index.
func (ix *Index) Build(ctx context.Context, docs []Document, cfg ChunkerConfig, embedder embedding.Embedder) error {
	logger := logging.GetLogger()

	var chunks []Chunk
	for _, doc := range docs {
		chunks = append(chunks, ChunkDocument(doc, cfg)...)
	}
	if len(chunks) == 0 {
		return errors.New(errors.InvalidInput, "no chunks produced from source documents")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	logger.Info(ctx, "building retrieval index: %d documents, %d chunks", len(docs), len(chunks))
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return errors.Wrap(err, errors.CodeOf(err), "failed to embed index chunks")
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to begin index transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to clear index")
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (chunk_id, doc_id, file_name, page, text, vector) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to prepare index insert")
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.DocID, c.FileName, c.Page, c.Text, encodeVector(c.Vector)); err != nil {
			return errors.Wrap(err, errors.DependencyUnavailable, "failed to persist chunk")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to commit index")
	}

	ix.mu.Lock()
	ix.chunks = chunks
	ix.mu.Unlock()

	return nil
}

// Search returns the top-k chunks by cosine similarity. Ordering is
// deterministic for a fixed index and query vector: score descending, ties
// broken by chunk_id ascending.
func (ix *Index) Search(vec []float32, k int) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]Match, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		matches = append(matches, Match{Chunk: c, Score: cosineSimilarity(vec, c.Vector)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ChunkID < matches[j].Chunk.ChunkID
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// load reads persisted chunks into memory, ordered by chunk_id.
func (ix *Index) load() error {
	rows, err := ix.db.Query("SELECT chunk_id, doc_id, file_name, page, text, vector FROM chunks ORDER BY chunk_id")
	if err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to load index")
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.FileName, &c.Page, &c.Text, &blob); err != nil {
			return errors.Wrap(err, errors.DependencyUnavailable, "failed to scan chunk row")
		}
		c.Vector = decodeVector(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to iterate chunk rows")
	}

	ix.mu.Lock()
	ix.chunks = chunks
	ix.mu.Unlock()
	return nil
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-magnitude vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
