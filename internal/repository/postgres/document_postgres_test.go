package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"docstore/internal/apperr"
	"docstore/internal/model"
	"docstore/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

var documentTestColumns = []string{
	"id", "external_id", "name", "owner_id", "access_group",
	"extension", "size", "checksum", "state", "created_at", "updated_at",
}

func documentRow(doc *model.Document) *sqlmock.Rows {
	return sqlmock.NewRows(documentTestColumns).AddRow(
		doc.ID, doc.ExternalID, doc.Name, doc.OwnerID, doc.AccessGroup,
		doc.Extension, doc.Size, doc.Checksum, doc.State, doc.CreatedAt, doc.UpdatedAt,
	)
}

func testDocument() *model.Document {
	now := time.Now().UTC()
	return &model.Document{
		ID:          "doc-uuid",
		ExternalID:  "ext-1",
		Name:        "report.pdf",
		OwnerID:     "owner-uuid",
		AccessGroup: "finance",
		Extension:   "pdf",
		Size:        123,
		Checksum:    "abc123",
		State:       model.StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestDocumentPostgres_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		doc := testDocument()
		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(doc.ID, doc.ExternalID, doc.Name, doc.OwnerID, nullable(doc.AccessGroup),
				doc.Extension, doc.Size, doc.Checksum, doc.State, doc.CreatedAt, doc.UpdatedAt).
			WillReturnRows(documentRow(doc))

		result, err := repo.Insert(ctx, doc)

		assert.NoError(t, err)
		assert.Equal(t, doc.ID, result.ID)
		assert.Equal(t, model.StatePending, result.State)
	})

	t.Run("duplicate external id", func(t *testing.T) {
		doc := testDocument()
		mock.ExpectQuery("INSERT INTO documents").
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		result, err := repo.Insert(ctx, doc)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, apperr.ErrDuplicateKey)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("doc-uuid").
			WillReturnRows(documentRow(testDocument()))

		doc, err := repo.FindByID(ctx, "doc-uuid")

		assert.NoError(t, err)
		assert.Equal(t, "ext-1", doc.ExternalID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByID(ctx, "missing")

		assert.Nil(t, doc)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestDocumentPostgres_UpdateState(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("pending to active", func(t *testing.T) {
		doc := testDocument()
		doc.State = model.StateActive
		mock.ExpectQuery("UPDATE documents SET state").
			WithArgs("doc-uuid", model.StateActive).
			WillReturnRows(documentRow(doc))

		updated, err := repo.UpdateState(ctx, "doc-uuid", model.StateActive)

		assert.NoError(t, err)
		assert.Equal(t, model.StateActive, updated.State)
	})

	t.Run("row gone", func(t *testing.T) {
		mock.ExpectQuery("UPDATE documents SET state").
			WithArgs("missing", model.StateActive).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.UpdateState(ctx, "missing", model.StateActive)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestDocumentPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("row existed", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM documents WHERE id = ?").
			WithArgs("doc-uuid").
			WillReturnResult(sqlmock.NewResult(0, 1))

		existed, err := repo.Delete(ctx, "doc-uuid")

		assert.NoError(t, err)
		assert.True(t, existed)
	})

	t.Run("row absent is no-op success", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM documents WHERE id = ?").
			WithArgs("doc-uuid").
			WillReturnResult(sqlmock.NewResult(0, 0))

		existed, err := repo.Delete(ctx, "doc-uuid")

		assert.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("all states", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(documentRow(testDocument()))

		res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

		assert.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("filtered by state", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE state").
			WithArgs(model.StateActive).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT (.+) FROM documents\\s+WHERE state").
			WithArgs(model.StateActive, 10, 0).
			WillReturnRows(sqlmock.NewRows(documentTestColumns))

		res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0, State: model.StateActive})

		assert.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.Empty(t, res.Items)
	})
}

func TestDocumentPostgres_ListStalePending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()
	cutoff := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM documents\\s+WHERE state = 'PENDING'").
		WithArgs(cutoff).
		WillReturnRows(documentRow(testDocument()))

	stale, err := repo.ListStalePending(ctx, cutoff)

	assert.NoError(t, err)
	assert.Len(t, stale, 1)
	assert.Equal(t, model.StatePending, stale[0].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectPing()

	repo := NewDocumentPostgres(db)
	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
