package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// A multi-statement Exec runs in one implicit transaction.
	ddl := `
CREATE TABLE IF NOT EXISTS dialogue_roots (
    path     TEXT PRIMARY KEY,
    root_id  BIGINT NOT NULL,
    revision UUID NOT NULL,
    saved_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dialogue_pending_roots (
    path     TEXT PRIMARY KEY,
    root_id  BIGINT NOT NULL,
    revision UUID NOT NULL
);

CREATE TABLE IF NOT EXISTS dialogue_objects (
    path     TEXT NOT NULL,
    revision UUID NOT NULL,
    id       BIGINT NOT NULL,
    kind     TEXT NOT NULL,
    data     BYTEA NOT NULL,
    PRIMARY KEY (revision, id)
);

CREATE INDEX IF NOT EXISTS idx_dialogue_objects_path ON dialogue_objects (path, revision);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
