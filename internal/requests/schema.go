package requests

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema uses types understood by both postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS requests (
		id              VARCHAR(36) PRIMARY KEY,
		title           TEXT NOT NULL,
		type_id         TEXT NOT NULL,
		priority        VARCHAR(16) NOT NULL,
		status          INTEGER NOT NULL,
		requester_id    VARCHAR(36) NOT NULL,
		designer_id     VARCHAR(36),
		approver_id     VARCHAR(36),
		submission_date TIMESTAMP NOT NULL,
		due_date        DATE,
		completion_date TIMESTAMP,
		detail_kind     VARCHAR(16) NOT NULL DEFAULT '',
		details         TEXT NOT NULL DEFAULT '{}',
		version         INTEGER NOT NULL DEFAULT 0,
		updated_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_due_priority ON requests (due_date, priority)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests (requester_id)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_designer ON requests (designer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_approver ON requests (approver_id)`,
	`CREATE TABLE IF NOT EXISTS request_history (
		id              VARCHAR(36) PRIMARY KEY,
		request_id      VARCHAR(36) NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
		sequence        INTEGER NOT NULL,
		action_date     TIMESTAMP NOT NULL,
		actor_id        VARCHAR(36) NOT NULL,
		previous_status INTEGER NOT NULL,
		new_status      INTEGER NOT NULL,
		action          VARCHAR(32) NOT NULL,
		comment         TEXT NOT NULL,
		UNIQUE (request_id, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS request_attachments (
		id               VARCHAR(36) PRIMARY KEY,
		request_id       VARCHAR(36) NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
		history_entry_id VARCHAR(36) NOT NULL REFERENCES request_history(id) ON DELETE CASCADE,
		original_name    TEXT NOT NULL,
		stored_ref       TEXT NOT NULL,
		content_type     TEXT NOT NULL DEFAULT '',
		size             BIGINT NOT NULL DEFAULT 0,
		uploaded_by      VARCHAR(36) NOT NULL,
		uploaded_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_attachments_request ON request_attachments (request_id)`,
	`CREATE TABLE IF NOT EXISTS capacity_locks (
		due_date DATE NOT NULL,
		priority VARCHAR(16) NOT NULL,
		version  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (due_date, priority)
	)`,
}

// Migrate creates the workflow tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
