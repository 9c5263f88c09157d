package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

// Every step is written to be safe to re-run, so the whole migration is
// idempotent and can double as the init surface of the system.
var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id           UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  external_id  TEXT        NOT NULL UNIQUE,
  name         TEXT        NOT NULL,
  owner_id     TEXT        NOT NULL,
  access_group TEXT,
  extension    TEXT        NOT NULL,
  size         BIGINT      NOT NULL CHECK (size >= 0),
  checksum     TEXT        NOT NULL,
  state        TEXT        NOT NULL DEFAULT 'PENDING'
               CHECK (state IN ('PENDING', 'ACTIVE', 'DELETED')),
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		// Cascade is defense-in-depth: the orchestrator deletes lines
		// explicitly before the document row, but the schema enforces the
		// invariant even if that ordering is ever bypassed.
		Name: "create_table_document_lines",
		SQL: `CREATE TABLE IF NOT EXISTS document_lines (
  id          UUID             PRIMARY KEY DEFAULT uuid_generate_v4(),
  document_id UUID             NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  block_id    TEXT             NOT NULL,
  position    DOUBLE PRECISION NOT NULL,
  block_type  TEXT             NOT NULL,
  content     TEXT             NOT NULL DEFAULT '',
  UNIQUE (document_id, block_id)
);`,
	},
	{
		Name: "create_index_documents_state",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_state ON documents (state, updated_at);`,
	},
	{
		Name: "create_index_documents_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_id);`,
	},
	{
		Name: "create_index_document_lines_position",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_lines_position ON document_lines (document_id, position);`,
	},
}

// EnsureMigrated checks whether the schema already exists and applies the
// migration steps if it does not. Safe to run repeatedly.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.document_lines') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logJSON(loc, map[string]any{
				"component":      "database",
				"event":          "db_migration_failed",
				"status":         "error",
				"migration_step": step.Name,
				"error_message":  err.Error(),
				"db_host":        dbHost,
				"duration_ms":    time.Since(start).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
