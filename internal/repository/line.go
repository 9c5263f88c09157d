package repository

import (
	"context"

	"docstore/internal/model"
)

// LineRepository defines data access for parsed content lines. Lines
// never touch the object store, so every method here is atomic at the
// relational layer alone.
type LineRepository interface {
	// BulkReplace swaps the full line set of a document in one relational
	// transaction (delete-then-insert). All-or-nothing: a failure leaves
	// the previous line set untouched.
	BulkReplace(ctx context.Context, documentID string, lines []model.Line) error

	// ListByDocument returns lines ordered by position ascending, ties
	// broken by block id ascending.
	ListByDocument(ctx context.Context, documentID string) ([]model.Line, error)

	// DeleteAll removes every line of a document. Absent lines are a
	// no-op success so delete-protocol retries stay idempotent.
	DeleteAll(ctx context.Context, documentID string) error

	// UpdateContent rewrites the content of one line addressed by its
	// block id. Returns apperr.ErrNotFound if no such line exists.
	UpdateContent(ctx context.Context, documentID, blockID, content string) error
}
