// Package postgres persists the index ledger: which passage batches were
// written to the retrieval indexes, and the passages themselves so the
// worker can rebuild the full-text index from scratch.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/knowlab/corpusqa/internal/core/domain"
)

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS indexed_batches (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	passage_count INTEGER NOT NULL,
	indexed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS passages (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL REFERENCES indexed_batches(id) ON DELETE CASCADE,
	text_content TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_passages_batch_id ON passages(batch_id);
CREATE INDEX IF NOT EXISTS idx_indexed_batches_indexed_at ON indexed_batches(indexed_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *LedgerRepository) RecordBatch(ctx context.Context, batch domain.IndexedBatch, passages []domain.Passage) error {
	tagsJSON, err := json.Marshal(tagsOrEmpty(batch.Tags))
	if err != nil {
		return fmt.Errorf("marshal batch tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO indexed_batches (id, source, version, tags, passage_count, indexed_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, batch.ID, batch.Source, batch.Version, tagsJSON, batch.Passages, batch.IndexedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, p := range passages {
		passageTags, err := json.Marshal(tagsOrEmpty(p.Metadata.Tags))
		if err != nil {
			return fmt.Errorf("marshal passage tags: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO passages (id, batch_id, text_content, source, path, version, tags)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	batch_id = EXCLUDED.batch_id,
	text_content = EXCLUDED.text_content,
	source = EXCLUDED.source,
	path = EXCLUDED.path,
	version = EXCLUDED.version,
	tags = EXCLUDED.tags
`, p.ID, batch.ID, p.Text, p.Metadata.Source, p.Metadata.Path, p.Metadata.Version, passageTags)
		if err != nil {
			return fmt.Errorf("insert passage %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetBatch(ctx context.Context, id string) (*domain.IndexedBatch, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source, version, tags, passage_count, indexed_at
FROM indexed_batches
WHERE id = $1
`, id)

	var batch domain.IndexedBatch
	var tagsRaw []byte
	err := row.Scan(&batch.ID, &batch.Source, &batch.Version, &tagsRaw, &batch.Passages, &batch.IndexedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "get batch", fmt.Errorf("batch not found: %s", id))
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	if err := json.Unmarshal(tagsRaw, &batch.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal batch tags: %w", err)
	}
	return &batch, nil
}

func (r *LedgerRepository) ListPassages(ctx context.Context) ([]domain.Passage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, text_content, source, path, version, tags
FROM passages
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	var out []domain.Passage
	for rows.Next() {
		var p domain.Passage
		var tagsRaw []byte
		if err := rows.Scan(&p.ID, &p.Text, &p.Metadata.Source, &p.Metadata.Path, &p.Metadata.Version, &tagsRaw); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &p.Metadata.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal passage tags: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return out, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
