package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dialoguecraft/internal/store"
)

const upsertObject = `
INSERT INTO dialogue_objects (path, revision, id, kind, data) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (revision, id) DO UPDATE SET
    kind = EXCLUDED.kind,
    data = EXCLUDED.data
`

func (c *Client) CreateRoot(ctx context.Context, root store.Record, path string) (store.Handle, error) {
	if err := store.ValidatePath(path); err != nil {
		return store.Handle{}, err
	}
	h := store.NewHandle(path)

	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
DELETE FROM dialogue_objects
WHERE revision IN (SELECT revision FROM dialogue_pending_roots WHERE path = $1)
`, path)
		if err != nil {
			return fmt.Errorf("dropping staged revision of %s: %w", path, err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO dialogue_pending_roots (path, root_id, revision) VALUES ($1, $2, $3)
ON CONFLICT (path) DO UPDATE SET
    root_id = EXCLUDED.root_id,
    revision = EXCLUDED.revision
`, path, int64(root.ID), h.Revision)
		if err != nil {
			return fmt.Errorf("staging root %s: %w", path, err)
		}
		if _, err := tx.Exec(ctx, upsertObject, path, h.Revision, int64(root.ID), root.Kind, root.Data); err != nil {
			return fmt.Errorf("writing %s %d: %w", root.Kind, root.ID, err)
		}
		return nil
	})
	if err != nil {
		return store.Handle{}, err
	}
	return h, nil
}

func (c *Client) AddSubObject(ctx context.Context, rec store.Record, h store.Handle) error {
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		var live bool
		err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM dialogue_roots WHERE path = $1 AND revision = $2)
    OR EXISTS (SELECT 1 FROM dialogue_pending_roots WHERE path = $1 AND revision = $2)
`, h.Path, h.Revision).Scan(&live)
		if err != nil {
			return fmt.Errorf("reading root %s: %w", h.Path, err)
		}
		if !live {
			return fmt.Errorf("add %s %d to %s: %w", rec.Kind, rec.ID, h.Path, store.ErrStaleHandle)
		}
		if _, err := tx.Exec(ctx, upsertObject, h.Path, h.Revision, int64(rec.ID), rec.Kind, rec.Data); err != nil {
			return fmt.Errorf("writing %s %d: %w", rec.Kind, rec.ID, err)
		}
		return nil
	})
}

func (c *Client) Commit(ctx context.Context, h store.Handle) error {
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		var rootID int64
		var revision uuid.UUID
		err := tx.QueryRow(ctx, `SELECT root_id, revision FROM dialogue_pending_roots WHERE path = $1 FOR UPDATE`, h.Path).Scan(&rootID, &revision)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && revision != h.Revision) {
			return fmt.Errorf("commit %s: %w", h.Path, store.ErrStaleHandle)
		}
		if err != nil {
			return fmt.Errorf("reading staged root %s: %w", h.Path, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM dialogue_objects WHERE path = $1 AND revision <> $2`, h.Path, revision); err != nil {
			return fmt.Errorf("dropping replaced revision of %s: %w", h.Path, err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO dialogue_roots (path, root_id, revision) VALUES ($1, $2, $3)
ON CONFLICT (path) DO UPDATE SET
    root_id = EXCLUDED.root_id,
    revision = EXCLUDED.revision,
    saved_at = now()
`, h.Path, rootID, revision)
		if err != nil {
			return fmt.Errorf("writing root %s: %w", h.Path, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dialogue_pending_roots WHERE path = $1`, h.Path); err != nil {
			return fmt.Errorf("clearing staged root %s: %w", h.Path, err)
		}
		return nil
	})
}

func (c *Client) LoadAll(ctx context.Context, path string) (*store.Snapshot, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}

	var rootID int64
	var revision uuid.UUID
	err := c.pool.QueryRow(ctx, `SELECT root_id, revision FROM dialogue_roots WHERE path = $1`, path).Scan(&rootID, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", path, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading root %s: %w", path, err)
	}

	rows, err := c.pool.Query(ctx, `SELECT id, kind, data FROM dialogue_objects WHERE revision = $1 ORDER BY id`, revision)
	if err != nil {
		return nil, fmt.Errorf("loading objects of %s: %w", path, err)
	}
	defer rows.Close()

	snap := &store.Snapshot{Handle: store.Handle{Path: path, Revision: revision}}
	foundRoot := false
	for rows.Next() {
		var id int64
		var rec store.Record
		if err := rows.Scan(&id, &rec.Kind, &rec.Data); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		rec.ID = uint64(id)
		if id == rootID {
			snap.Root = rec
			foundRoot = true
			continue
		}
		snap.Objects = append(snap.Objects, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating objects: %w", err)
	}
	if !foundRoot {
		return nil, fmt.Errorf("load %s: root record %d missing: %w", path, rootID, store.ErrNotFound)
	}
	return snap, nil
}

func (c *Client) List(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT path FROM dialogue_roots ORDER BY path COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning paths: %w", err)
	}
	return paths, nil
}
