package export

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	run_id      TEXT    NOT NULL,
	id          INTEGER NOT NULL,
	image_url   TEXT    NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	date        TEXT    NOT NULL DEFAULT '',
	metadata    TEXT    NOT NULL DEFAULT '{}',
	exported_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	PRIMARY KEY (run_id, id)
);
CREATE INDEX IF NOT EXISTS idx_records_image_url ON records(image_url);`

// SQLiteSink appends every run to a records table, keyed by run id.
type SQLiteSink struct {
	path  string
	runID string
}

func NewSQLiteSink(path, runID string) *SQLiteSink {
	return &SQLiteSink{path: path, runID: runID}
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Export(ctx context.Context, records []model.Record) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("sqlite: open %s: %w", s.path, err)
	}
	defer db.Close()

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=10000"} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite: schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, id, image_url, description, date, metadata) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := marshalMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: metadata of id %d: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.runID, r.ID, r.ImageURL, r.Description, r.Date, meta); err != nil {
			return fmt.Errorf("sqlite: insert id %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
