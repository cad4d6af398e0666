package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/graph"
	"dialoguecraft/internal/store"
)

// TempPath is where Autosave writes. Save refuses it.
const TempPath = "Saves/Temp/Last Session.dialogue"

// Session owns the active graph and where it was last saved.
type Session struct {
	cache  *graph.Cache
	store  store.Store
	log    *slog.Logger
	handle store.Handle
	saved  bool
	stored map[entity.ID]struct{}
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.log = logger
		}
	}
}

func NewSession(cache *graph.Cache, st store.Store, opts ...Option) *Session {
	s := &Session{
		cache:  cache,
		store:  st,
		log:    cache.Logger(),
		stored: make(map[entity.ID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph is the active graph. Save and Load may replace it.
func (s *Session) Graph() *graph.Cache {
	return s.cache
}

// Handle reports where the active graph is saved.
func (s *Session) Handle() (store.Handle, bool) {
	return s.handle, s.saved
}

func persistErr(op, path string, err error) error {
	if errors.Is(err, entity.ErrPersistence) {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", entity.ErrPersistence, op, path, err)
}

// Save writes the active graph under path. A graph that was never saved is
// written as is. Otherwise a clone is written and, once every write has
// succeeded, becomes the active graph. On failure the active graph and its
// save location are unchanged.
func (s *Session) Save(ctx context.Context, path string) (err error) {
	ctx, span := tracer.Start(ctx, "persist.Session.Save", trace.WithAttributes(attribute.String("save.path", path)))
	defer func() { finish(span, "save", err) }()

	if err := store.ValidatePath(path); err != nil {
		return persistErr("save", path, err)
	}
	if path == TempPath {
		return persistErr("save", path, errors.New("path is reserved for autosave"))
	}

	if !s.saved {
		h, stored, err := s.writeAll(ctx, s.cache, path)
		if err != nil {
			return persistErr("save", path, err)
		}
		s.handle, s.stored, s.saved = h, stored, true
		return nil
	}

	clone, err := s.clone(ctx)
	if err != nil {
		return persistErr("save", path, err)
	}
	h, stored, err := s.writeAll(ctx, clone, path)
	if err != nil {
		return persistErr("save", path, err)
	}
	s.cache, s.handle, s.stored = clone, h, stored
	s.log.Info("saved graph copy", slog.String("path", path), slog.Int("entities", clone.Len()))
	return nil
}

// Autosave writes a clone of the active graph to TempPath. The active graph
// keeps its own save location.
func (s *Session) Autosave(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "persist.Session.Autosave")
	defer func() { finish(span, "autosave", err) }()

	clone, err := s.clone(ctx)
	if err != nil {
		return persistErr("autosave", TempPath, err)
	}
	if _, _, err := s.writeAll(ctx, clone, TempPath); err != nil {
		return persistErr("autosave", TempPath, err)
	}
	return nil
}

// Flush writes what changed since the last save or flush.
func (s *Session) Flush(ctx context.Context) (stats FlushStats, err error) {
	ctx, span := tracer.Start(ctx, "persist.Session.Flush")
	defer func() {
		span.SetAttributes(attribute.Int("flush.written", stats.Written))
		finish(span, "flush", err)
	}()

	if !s.saved {
		return stats, fmt.Errorf("%w: flush: graph has not been saved", entity.ErrPersistence)
	}
	stats, err = Flush(ctx, s.cache, s.store, s.handle, s.stored)
	if err != nil {
		return stats, persistErr("flush", s.handle.Path, err)
	}
	s.log.Debug("flushed graph",
		slog.String("path", s.handle.Path),
		slog.Int("written", stats.Written),
		slog.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// Load replaces the active graph with the one saved at path. Records that
// fail to decode are logged and left out; the graph repairs the references
// they leave behind.
func (s *Session) Load(ctx context.Context, path string) (err error) {
	ctx, span := tracer.Start(ctx, "persist.Session.Load", trace.WithAttributes(attribute.String("save.path", path)))
	defer func() { finish(span, "load", err) }()

	snap, err := s.store.LoadAll(ctx, path)
	if err != nil {
		return persistErr("load", path, err)
	}

	arena := entity.NewArena()
	rootID := entity.ID(snap.Root.ID)
	for _, rec := range snap.Records() {
		e, err := graph.Decode(entity.Kind(rec.Kind), entity.ID(rec.ID), rec.Data)
		if err != nil {
			if entity.ID(rec.ID) == rootID {
				return persistErr("load", path, err)
			}
			s.log.Warn("skipping undecodable record",
				slog.String("path", path),
				slog.Uint64("id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		arena.Put(e)
	}

	loaded, err := s.cache.Derive(arena, rootID)
	if err != nil {
		return persistErr("load", path, err)
	}

	stored := make(map[entity.ID]struct{}, len(snap.Objects)+1)
	for _, rec := range snap.Records() {
		if _, ok := loaded.Lookup(entity.ID(rec.ID)); ok {
			stored[entity.ID(rec.ID)] = struct{}{}
		}
	}
	s.cache, s.handle, s.stored, s.saved = loaded, snap.Handle, stored, true
	s.log.Info("loaded graph", slog.String("path", path), slog.Int("entities", loaded.Len()))
	return nil
}

// List returns the saved paths in the store.
func (s *Session) List(ctx context.Context) ([]string, error) {
	paths, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", entity.ErrPersistence, err)
	}
	return paths, nil
}

func (s *Session) clone(ctx context.Context) (*graph.Cache, error) {
	_, span := tracer.Start(ctx, "persist.Clone")
	defer span.End()

	arena := entity.NewArenaAfter(s.cache.Arena())
	m, err := Clone(s.cache, arena)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("clone.entities", len(m)))
	cloneEntities.Observe(float64(len(m)))
	return s.cache.Derive(arena, m.Lookup(s.cache.Root()))
}

// writeAll stages a new root at path, writes every entity of c under it and
// commits. Until the commit the store keeps serving whatever was saved at
// path before, and c keeps its dirty marks.
func (s *Session) writeAll(ctx context.Context, c *graph.Cache, path string) (store.Handle, map[entity.ID]struct{}, error) {
	root, ok := c.Lookup(c.Root())
	if !ok {
		return store.Handle{}, nil, fmt.Errorf("%w: root %s is missing", entity.ErrReferenceIntegrity, c.Root())
	}
	rec, err := record(root)
	if err != nil {
		return store.Handle{}, nil, err
	}
	h, err := s.store.CreateRoot(ctx, rec, path)
	if err != nil {
		return store.Handle{}, nil, err
	}
	stored := map[entity.ID]struct{}{c.Root(): {}}
	never := func(entity.ID) bool { return false }
	if _, _, err := flush(ctx, c, s.store, h, stored, never); err != nil {
		return store.Handle{}, nil, err
	}
	if err := s.store.Commit(ctx, h); err != nil {
		return store.Handle{}, nil, err
	}
	for id := range stored {
		c.MarkClean(id)
	}
	return h, stored, nil
}
