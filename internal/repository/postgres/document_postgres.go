package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"docstore/internal/apperr"
	"docstore/internal/model"
	"docstore/internal/repository"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// DocumentPostgres is a PostgreSQL implementation of
// repository.DocumentRepository. It uses database/sql with parameterized
// queries and contains no cross-store logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, external_id, name, owner_id, access_group, extension, size, checksum, state, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	var accessGroup sql.NullString
	if err := row.Scan(
		&d.ID,
		&d.ExternalID,
		&d.Name,
		&d.OwnerID,
		&accessGroup,
		&d.Extension,
		&d.Size,
		&d.Checksum,
		&d.State,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.AccessGroup = accessGroup.String
	return &d, nil
}

// Insert creates a new document row and returns the stored record.
// A unique violation on external_id is reported as apperr.ErrDuplicateKey.
func (r *DocumentPostgres) Insert(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, external_id, name, owner_id, access_group, extension, size, checksum, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.ExternalID,
		doc.Name,
		doc.OwnerID,
		nullable(doc.AccessGroup),
		doc.Extension,
		doc.Size,
		doc.Checksum,
		doc.State,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: external_id %q", apperr.ErrDuplicateKey, doc.ExternalID)
		}
		return nil, err
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	out, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %s", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return out, nil
}

// UpdateState transitions the lifecycle state of a document.
func (r *DocumentPostgres) UpdateState(ctx context.Context, id string, state model.DocumentState) (*model.Document, error) {
	const q = `
		UPDATE documents SET state = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + documentColumns
	out, err := scanDocument(r.db.QueryRowContext(ctx, q, id, state))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %s", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return out, nil
}

// Delete removes a document row by ID. An absent row is not an error;
// the bool reports whether anything was deleted.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) (bool, error) {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count,
// optionally filtered by lifecycle state.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	var (
		total int
		rows  *sql.Rows
		err   error
	)

	if pq.State != "" {
		const qCount = `SELECT COUNT(*) FROM documents WHERE state = $1`
		if err = r.db.QueryRowContext(ctx, qCount, pq.State).Scan(&total); err != nil {
			return nil, err
		}
		const qList = `
			SELECT ` + documentColumns + ` FROM documents
			WHERE state = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.db.QueryContext(ctx, qList, pq.State, pq.Limit, pq.Offset)
	} else {
		const qCount = `SELECT COUNT(*) FROM documents`
		if err = r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
			return nil, err
		}
		const qList = `
			SELECT ` + documentColumns + ` FROM documents
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`
		rows, err = r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// ListStalePending returns PENDING rows untouched since the cutoff. These
// are the detectable residue of interrupted uploads.
func (r *DocumentPostgres) ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Document, error) {
	const q = `
		SELECT ` + documentColumns + ` FROM documents
		WHERE state = 'PENDING' AND updated_at < $1
		ORDER BY updated_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ping reports relational backend reachability.
func (r *DocumentPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
