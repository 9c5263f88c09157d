package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"docstore/internal/apperr"
	"docstore/internal/model"
	"docstore/internal/repository"
)

// LinePostgres is a PostgreSQL implementation of repository.LineRepository.
type LinePostgres struct {
	db *sql.DB
}

// NewLinePostgres creates a new LinePostgres repository.
func NewLinePostgres(db *sql.DB) *LinePostgres {
	return &LinePostgres{db: db}
}

var _ repository.LineRepository = (*LinePostgres)(nil)

// BulkReplace deletes the current line set of a document and inserts the
// new one inside a single transaction. The transaction is scoped to this
// call and released on every exit path.
func (r *LinePostgres) BulkReplace(ctx context.Context, documentID string, lines []model.Line) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const qDelete = `DELETE FROM document_lines WHERE document_id = $1`
	if _, err := tx.ExecContext(ctx, qDelete, documentID); err != nil {
		return fmt.Errorf("delete previous lines: %w", err)
	}

	const qInsert = `
		INSERT INTO document_lines (id, document_id, block_id, position, block_type, content)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	stmt, err := tx.PrepareContext(ctx, qInsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ln := range lines {
		id := ln.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, id, documentID, ln.BlockID, ln.Position, ln.Type, ln.Content); err != nil {
			return fmt.Errorf("insert line %s: %w", ln.BlockID, err)
		}
	}

	return tx.Commit()
}

// ListByDocument returns lines in position order. Ties on position are
// broken by block_id so the ordering is total and stable.
func (r *LinePostgres) ListByDocument(ctx context.Context, documentID string) ([]model.Line, error) {
	const q = `
		SELECT id, document_id, block_id, position, block_type, content
		FROM document_lines
		WHERE document_id = $1
		ORDER BY position ASC, block_id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]model.Line, 0)
	for rows.Next() {
		var ln model.Line
		if err := rows.Scan(&ln.ID, &ln.DocumentID, &ln.BlockID, &ln.Position, &ln.Type, &ln.Content); err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// DeleteAll removes every line of a document. Zero rows affected is
// still success, so delete-protocol retries are no-ops.
func (r *LinePostgres) DeleteAll(ctx context.Context, documentID string) error {
	const q = `DELETE FROM document_lines WHERE document_id = $1`
	_, err := r.db.ExecContext(ctx, q, documentID)
	return err
}

// UpdateContent rewrites one line's content addressed by block id.
func (r *LinePostgres) UpdateContent(ctx context.Context, documentID, blockID, content string) error {
	const q = `
		UPDATE document_lines SET content = $3
		WHERE document_id = $1 AND block_id = $2
	`
	res, err := r.db.ExecContext(ctx, q, documentID, blockID, content)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: block %s in document %s", apperr.ErrNotFound, blockID, documentID)
	}
	return nil
}
