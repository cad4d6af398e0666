// Package memory is a store.Store held in process memory, for tests and
// throwaway sessions.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"dialoguecraft/internal/store"
)

var _ store.Store = (*Store)(nil)

type save struct {
	handle  store.Handle
	rootID  uint64
	records map[uint64]store.Record
}

// Store keeps one committed save and at most one staged revision per path.
type Store struct {
	mu      sync.Mutex
	saves   map[string]*save
	pending map[string]*save
}

func New() *Store {
	return &Store{
		saves:   make(map[string]*save),
		pending: make(map[string]*save),
	}
}

func (s *Store) CreateRoot(ctx context.Context, root store.Record, path string) (store.Handle, error) {
	if err := store.ValidatePath(path); err != nil {
		return store.Handle{}, err
	}
	if err := ctx.Err(); err != nil {
		return store.Handle{}, err
	}
	h := store.NewHandle(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[path] = &save{
		handle:  h,
		rootID:  root.ID,
		records: map[uint64]store.Record{root.ID: copyRecord(root)},
	}
	return h, nil
}

func (s *Store) AddSubObject(ctx context.Context, rec store.Record, h store.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sv := s.lookup(h)
	if sv == nil {
		return fmt.Errorf("add %s %d to %s: %w", rec.Kind, rec.ID, h.Path, store.ErrStaleHandle)
	}
	sv.records[rec.ID] = copyRecord(rec)
	return nil
}

func (s *Store) Commit(ctx context.Context, h store.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.pending[h.Path]
	if !ok || sv.handle != h {
		return fmt.Errorf("commit %s: %w", h.Path, store.ErrStaleHandle)
	}
	delete(s.pending, h.Path)
	s.saves[h.Path] = sv
	return nil
}

func (s *Store) lookup(h store.Handle) *save {
	if sv, ok := s.saves[h.Path]; ok && sv.handle == h {
		return sv
	}
	if sv, ok := s.pending[h.Path]; ok && sv.handle == h {
		return sv
	}
	return nil
}

func (s *Store) LoadAll(ctx context.Context, path string) (*store.Snapshot, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.saves[path]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", path, store.ErrNotFound)
	}

	snap := &store.Snapshot{Handle: sv.handle, Root: copyRecord(sv.records[sv.rootID])}
	for _, id := range slices.Sorted(maps.Keys(sv.records)) {
		if id != sv.rootID {
			snap.Objects = append(snap.Objects, copyRecord(sv.records[id]))
		}
	}
	return snap, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.saves)), nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func copyRecord(r store.Record) store.Record {
	r.Data = slices.Clone(r.Data)
	return r
}
