// Package history is the cross-run dedup ledger: post ids a segment has
// already processed, persisted to Postgres with an in-memory cache that keeps
// the pipeline deduplicating even when the database is down.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

// Store is the dedup ledger injected into the collector. Load and Mark never
// fail the caller: persistence problems degrade to warnings in the log.
type Store interface {
	Load(ctx context.Context, segment string) map[string]struct{}
	Mark(ctx context.Context, segment string, ids []string)
	Purge(ctx context.Context, segment string) error
}

// markBatchSize caps rows per insert statement.
const markBatchSize = 500

// Schema is the backing table. Inserts rely on the primary key for
// idempotent marks.
const Schema = `
CREATE SCHEMA IF NOT EXISTS crowsnest;
CREATE TABLE IF NOT EXISTS crowsnest.processed_posts (
	segment      TEXT NOT NULL,
	post_id      TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (segment, post_id)
);`

// SQLStore persists processed ids in Postgres. A nil db is allowed and
// leaves only the in-memory cache, so single-process runs still deduplicate.
type SQLStore struct {
	db     *sql.DB
	logger logging.Logger
	cache  *memoryCache
}

// NewSQLStore creates a history store over db. db may be nil.
func NewSQLStore(db *sql.DB, logger logging.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger,
		cache:  newMemoryCache(),
	}
}

// EnsureSchema creates the backing table if missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Load returns every processed id for the segment. On database failure it
// logs a warning and falls back to whatever the in-memory cache holds.
func (s *SQLStore) Load(ctx context.Context, segment string) map[string]struct{} {
	if s.db == nil {
		return s.cache.snapshot(segment)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT post_id FROM crowsnest.processed_posts WHERE segment = $1`, segment)
	if err != nil {
		s.logger.WithError(err).WithField("segment", segment).Warn("History load failed, using in-memory cache")
		return s.cache.snapshot(segment)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.logger.WithError(err).WithField("segment", segment).Warn("History row scan failed")
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		s.logger.WithError(err).WithField("segment", segment).Warn("History load incomplete, merging with in-memory cache")
	}

	s.cache.add(segment, ids)
	return s.cache.snapshot(segment)
}

// Mark records ids as processed. The in-memory cache is updated first and
// unconditionally; persistence happens in batches and failures only warn.
func (s *SQLStore) Mark(ctx context.Context, segment string, ids []string) {
	if len(ids) == 0 {
		return
	}

	s.cache.add(segment, ids)

	if s.db == nil {
		return
	}

	for start := 0; start < len(ids); start += markBatchSize {
		end := start + markBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		query, args := buildMarkStatement(segment, batch)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			s.logger.WithError(err).WithFields(logging.Fields{
				"segment": segment,
				"count":   len(batch),
			}).Warn("History batch persist failed, ids kept in memory only")
		}
	}
}

// Purge removes a segment's history from both the database and the cache.
func (s *SQLStore) Purge(ctx context.Context, segment string) error {
	s.cache.clear(segment)

	if s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM crowsnest.processed_posts WHERE segment = $1`, segment); err != nil {
		return fmt.Errorf("purge history for %s: %w", segment, err)
	}
	return nil
}

func buildMarkStatement(segment string, ids []string) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO crowsnest.processed_posts (segment, post_id) VALUES `)

	args := make([]any, 0, len(ids)+1)
	args = append(args, segment)
	for i, id := range ids {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($1, $%d)", i+2)
		args = append(args, id)
	}
	sb.WriteString(` ON CONFLICT DO NOTHING`)
	return sb.String(), args
}
