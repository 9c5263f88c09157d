package postgres

import (
	"context"
	"errors"
	"testing"

	"docstore/internal/apperr"
	"docstore/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestLinePostgres_BulkReplace(t *testing.T) {
	ctx := context.Background()

	lines := []model.Line{
		{BlockID: "b1", Position: 1.0, Type: model.LineHeader, Content: "Title"},
		{BlockID: "b2", Position: 2.0, Type: model.LineParagraph, Content: "Body"},
	}

	t.Run("delete then insert in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
		}
		defer db.Close()

		repo := NewLinePostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM document_lines WHERE document_id = ?").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 2))
		prep := mock.ExpectPrepare("INSERT INTO document_lines")
		prep.ExpectExec().
			WithArgs(sqlmock.AnyArg(), "doc-1", "b1", 1.0, model.LineHeader, "Title").
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().
			WithArgs(sqlmock.AnyArg(), "doc-1", "b2", 2.0, model.LineParagraph, "Body").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = repo.BulkReplace(ctx, "doc-1", lines)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
		}
		defer db.Close()

		repo := NewLinePostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM document_lines WHERE document_id = ?").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		prep := mock.ExpectPrepare("INSERT INTO document_lines")
		prep.ExpectExec().
			WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		err = repo.BulkReplace(ctx, "doc-1", lines)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "insert line b1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty set clears lines", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
		}
		defer db.Close()

		repo := NewLinePostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM document_lines WHERE document_id = ?").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectPrepare("INSERT INTO document_lines")
		mock.ExpectCommit()

		err = repo.BulkReplace(ctx, "doc-1", nil)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinePostgres_ListByDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewLinePostgres(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "document_id", "block_id", "position", "block_type", "content"}).
		AddRow("l1", "doc-1", "b1", 1.0, "header", "Title").
		AddRow("l2", "doc-1", "b2", 1.5, "paragraph", "Inserted").
		AddRow("l3", "doc-1", "b3", 2.0, "paragraph", "Body")

	mock.ExpectQuery("SELECT (.+) FROM document_lines\\s+WHERE document_id = (.+) ORDER BY position ASC, block_id ASC").
		WithArgs("doc-1").
		WillReturnRows(rows)

	lines, err := repo.ListByDocument(ctx, "doc-1")

	assert.NoError(t, err)
	assert.Len(t, lines, 3)
	assert.Equal(t, []float64{1.0, 1.5, 2.0}, []float64{lines[0].Position, lines[1].Position, lines[2].Position})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinePostgres_DeleteAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewLinePostgres(db)
	ctx := context.Background()

	// Zero rows affected is still success.
	mock.ExpectExec("DELETE FROM document_lines WHERE document_id = ?").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.DeleteAll(ctx, "doc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinePostgres_UpdateContent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewLinePostgres(db)
	ctx := context.Background()

	t.Run("updated", func(t *testing.T) {
		mock.ExpectExec("UPDATE document_lines SET content").
			WithArgs("doc-1", "b1", "new text").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateContent(ctx, "doc-1", "b1", "new text"))
	})

	t.Run("unknown block", func(t *testing.T) {
		mock.ExpectExec("UPDATE document_lines SET content").
			WithArgs("doc-1", "missing", "new text").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateContent(ctx, "doc-1", "missing", "new text")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
