package repository

import (
	"context"
	"time"

	"docstore/internal/model"
)

// DocumentRepository defines data access for document metadata rows using
// SQL queries only. No cross-store logic here; that belongs to the
// orchestrator in the service layer.
type DocumentRepository interface {
	// Insert creates a new document row. Returns apperr.ErrDuplicateKey
	// (wrapped) if the external reference id already exists; in that case
	// nothing was written.
	Insert(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or apperr.ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// UpdateState transitions a document's lifecycle state and bumps
	// updated_at. Returns apperr.ErrNotFound if the row is gone.
	UpdateState(ctx context.Context, id string, state model.DocumentState) (*model.Document, error)

	// Delete removes a document row by ID. Deleting an absent row is a
	// no-op success; the bool reports whether a row actually existed, so
	// the orchestrator can distinguish the two.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns a paginated list of documents and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// ListStalePending returns PENDING documents not updated since the
	// cutoff. Used by the reconciliation sweep for interrupted uploads.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Document, error)

	// Ping reports relational backend reachability for health probing.
	Ping(ctx context.Context) error
}

// PageQuery holds limit/offset pagination parameters plus an optional
// lifecycle-state filter.
type PageQuery struct {
	Limit  int
	Offset int
	State  model.DocumentState
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
