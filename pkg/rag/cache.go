package rag

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

// QueryCache persists answered queries so repeated questions skip the
// embedding and synthesis calls entirely. Entries are immutable once
// written; re-answering a cached key is a no-op.
type QueryCache struct {
	db *sql.DB
}

// OpenQueryCache opens (or creates) the cache database at path.
func OpenQueryCache(path string) (*QueryCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.DependencyUnavailable, "failed to open query cache database")
	}
	db.SetMaxOpenConns(4)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DependencyUnavailable, "failed to enable WAL mode")
	}

	query := `
	CREATE TABLE IF NOT EXISTS query_cache (
		key TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		answer TEXT NOT NULL,
		citations TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DependencyUnavailable, "failed to initialize query cache schema")
	}

	return &QueryCache{db: db}, nil
}

// CacheKey derives the stable lookup key for a query and its grounding
// context. Normalization means trivially reworded whitespace or casing does
// not defeat the cache.
func CacheKey(query, queryContext string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	h := sha256.Sum256([]byte(normalized + "|" + queryContext))
	return hex.EncodeToString(h[:])
}

// Get returns the cached answer for key, or (nil, nil) on a miss.
func (qc *QueryCache) Get(ctx context.Context, key string) (*Answer, error) {
	var answerText, citationsJSON string
	err := qc.db.QueryRowContext(ctx,
		"SELECT answer, citations FROM query_cache WHERE key = ?", key,
	).Scan(&answerText, &citationsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.DependencyUnavailable, "failed to read query cache")
	}

	var citations []Citation
	if err := json.Unmarshal([]byte(citationsJSON), &citations); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "corrupt citations in query cache")
	}

	return &Answer{Text: answerText, Citations: citations, FromCache: true}, nil
}

// Put stores an answer under key. An existing entry wins; cached answers are
// never overwritten.
func (qc *QueryCache) Put(ctx context.Context, key, query string, answer *Answer) error {
	citationsJSON, err := json.Marshal(answer.Citations)
	if err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to encode citations")
	}

	_, err = qc.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO query_cache (key, query, answer, citations, created_at) VALUES (?, ?, ?, ?, ?)",
		key, query, answer.Text, string(citationsJSON), time.Now().Unix(),
	)
	if err != nil {
		return errors.Wrap(err, errors.DependencyUnavailable, "failed to write query cache")
	}
	return nil
}

// Close releases the underlying database handle.
func (qc *QueryCache) Close() error {
	return qc.db.Close()
}
