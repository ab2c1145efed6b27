// Package audit appends membership changes to a PostgreSQL table.
package audit

import (
	"context"
	"database/sql"
	"fmt"

	"mergington-activities/internal/activities"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS activity_audit_log (
	id            BIGSERIAL PRIMARY KEY,
	event_type    TEXT        NOT NULL,
	activity_name TEXT        NOT NULL,
	email         TEXT        NOT NULL,
	request_id    TEXT        NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO activity_audit_log (event_type, activity_name, email, request_id, created_at)
VALUES ($1, $2, $3, $4, $5)`

type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the audit table when it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create activity_audit_log: %w", err)
	}
	return nil
}

// Record inserts one row for change.
func (r *Recorder) Record(ctx context.Context, change activities.Change, requestID string) error {
	_, err := r.db.ExecContext(ctx, insertSQL,
		"activity_"+string(change.Operation),
		change.Activity,
		change.Email,
		requestID,
		change.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
