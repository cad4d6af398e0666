package sqlite

import (
	"context"
	"fmt"
	"strings"
)

const ddl = `
CREATE TABLE IF NOT EXISTS roots (
	path     TEXT PRIMARY KEY,
	root_id  INTEGER NOT NULL,
	revision TEXT NOT NULL,
	saved_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pending_roots (
	path     TEXT PRIMARY KEY,
	root_id  INTEGER NOT NULL,
	revision TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS objects (
	path     TEXT NOT NULL,
	revision TEXT NOT NULL,
	id       INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	data     BLOB NOT NULL,
	PRIMARY KEY (revision, id)
);

CREATE INDEX IF NOT EXISTS idx_objects_path ON objects (path, revision);
`

func (c *Client) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for line := range strings.Lines(ddl) {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
