package postgres

import (
	"context"
	"fmt"
)

// schema is idempotent and applied on every start. feedback.project_id has no
// foreign key so feedback outlives a deleted project.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		domain      TEXT NOT NULL,
		description TEXT,
		api_key     TEXT NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS projects_api_key_idx ON projects (api_key)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id         UUID PRIMARY KEY,
		project_id UUID,
		name       TEXT,
		email      TEXT,
		message    TEXT NOT NULL CHECK (length(message) > 0),
		rating     SMALLINT CHECK (rating BETWEEN 1 AND 5),
		metadata   JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS feedback_project_created_idx ON feedback (project_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS feedback_created_idx ON feedback (created_at DESC)`,
}

// Migrate creates the tables and indexes the adapters expect.
func (c *Client) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return nil
}
