package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dialoguecraft/internal/store"
)

func (c *Client) CreateRoot(ctx context.Context, root store.Record, path string) (store.Handle, error) {
	if err := store.ValidatePath(path); err != nil {
		return store.Handle{}, err
	}
	h := store.NewHandle(path)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Handle{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	DELETE FROM objects WHERE revision IN (SELECT revision FROM pending_roots WHERE path = ?)
	`, path)
	if err != nil {
		return store.Handle{}, fmt.Errorf("dropping staged revision of %s: %w", path, err)
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO pending_roots (path, root_id, revision) VALUES (?, ?, ?)
	ON CONFLICT (path) DO UPDATE SET
		root_id = excluded.root_id,
		revision = excluded.revision
	`, path, int64(root.ID), h.Revision.String())
	if err != nil {
		return store.Handle{}, fmt.Errorf("staging root %s: %w", path, err)
	}
	if err := upsertObject(ctx, tx, h, root); err != nil {
		return store.Handle{}, err
	}

	if err := tx.Commit(); err != nil {
		return store.Handle{}, fmt.Errorf("committing root %s: %w", path, err)
	}
	return h, nil
}

func upsertObject(ctx context.Context, tx *sql.Tx, h store.Handle, rec store.Record) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO objects (path, revision, id, kind, data) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (revision, id) DO UPDATE SET
		kind = excluded.kind,
		data = excluded.data
	`, h.Path, h.Revision.String(), int64(rec.ID), rec.Kind, rec.Data)
	if err != nil {
		return fmt.Errorf("writing %s %d: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func (c *Client) AddSubObject(ctx context.Context, rec store.Record, h store.Handle) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx, `
	SELECT (SELECT COUNT(*) FROM roots WHERE path = ? AND revision = ?)
	     + (SELECT COUNT(*) FROM pending_roots WHERE path = ? AND revision = ?)
	`, h.Path, h.Revision.String(), h.Path, h.Revision.String()).Scan(&n)
	if err != nil {
		return fmt.Errorf("reading root %s: %w", h.Path, err)
	}
	if n == 0 {
		return fmt.Errorf("add %s %d to %s: %w", rec.Kind, rec.ID, h.Path, store.ErrStaleHandle)
	}
	if err := upsertObject(ctx, tx, h, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Client) Commit(ctx context.Context, h store.Handle) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rootID int64
	var revision string
	err = tx.QueryRowContext(ctx, `SELECT root_id, revision FROM pending_roots WHERE path = ?`, h.Path).Scan(&rootID, &revision)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && revision != h.Revision.String()) {
		return fmt.Errorf("commit %s: %w", h.Path, store.ErrStaleHandle)
	}
	if err != nil {
		return fmt.Errorf("reading staged root %s: %w", h.Path, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE path = ? AND revision <> ?`, h.Path, revision); err != nil {
		return fmt.Errorf("dropping replaced revision of %s: %w", h.Path, err)
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO roots (path, root_id, revision) VALUES (?, ?, ?)
	ON CONFLICT (path) DO UPDATE SET
		root_id = excluded.root_id,
		revision = excluded.revision,
		saved_at = datetime('now')
	`, h.Path, rootID, revision)
	if err != nil {
		return fmt.Errorf("writing root %s: %w", h.Path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_roots WHERE path = ?`, h.Path); err != nil {
		return fmt.Errorf("clearing staged root %s: %w", h.Path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", h.Path, err)
	}
	return nil
}

func (c *Client) LoadAll(ctx context.Context, path string) (*store.Snapshot, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}

	var rootID int64
	var revision string
	err := c.db.QueryRowContext(ctx, `SELECT root_id, revision FROM roots WHERE path = ?`, path).Scan(&rootID, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", path, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading root %s: %w", path, err)
	}
	rev, err := uuid.Parse(revision)
	if err != nil {
		return nil, fmt.Errorf("parsing revision of %s: %w", path, err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT id, kind, data FROM objects WHERE revision = ? ORDER BY id`, revision)
	if err != nil {
		return nil, fmt.Errorf("loading objects of %s: %w", path, err)
	}
	defer rows.Close()

	snap := &store.Snapshot{Handle: store.Handle{Path: path, Revision: rev}}
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
	rows, err := c.db.QueryContext(ctx, `SELECT path FROM roots ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
