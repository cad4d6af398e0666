// Package badger stores saved graphs in an embedded BadgerDB.
//
// Keys:
//
//	root/<path>                        -> rootMeta of the committed revision (JSON)
//	pending/<path>                     -> rootMeta of the staged revision (JSON)
//	obj/<path>\x00<revision><id BE>    -> objectValue (JSON)
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"dialoguecraft/internal/store"
)

var _ store.Store = (*Store)(nil)

type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives BadgerDB's own logging. Nil silences it.
	Logger *slog.Logger
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stop   chan struct{}
	done   chan struct{}
}

func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	s := &Store{db: db, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Store) Close(ctx context.Context) error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	return s.db.Close()
}

type rootMeta struct {
	RootID   uint64    `json:"root_id"`
	Revision uuid.UUID `json:"revision"`
}

type objectValue struct {
	Kind string `json:"kind"`
	Data []byte `json:"data"`
}

func rootKey(path string) []byte {
	return []byte("root/" + path)
}

func pendingKey(path string) []byte {
	return []byte("pending/" + path)
}

func objectPrefix(path string, rev uuid.UUID) []byte {
	return append([]byte("obj/"+path+"\x00"), rev[:]...)
}

func objectKey(path string, rev uuid.UUID, id uint64) []byte {
	return binary.BigEndian.AppendUint64(objectPrefix(path, rev), id)
}

func (s *Store) withTxn(ctx context.Context, update bool, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := s.db.NewTransaction(update)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	if !update {
		return nil
	}
	return txn.Commit()
}

func (s *Store) CreateRoot(ctx context.Context, root store.Record, path string) (store.Handle, error) {
	if err := store.ValidatePath(path); err != nil {
		return store.Handle{}, err
	}
	h := store.NewHandle(path)
	err := s.withTxn(ctx, true, func(txn *badger.Txn) error {
		prev, err := getMeta(txn, pendingKey(path))
		switch {
		case err == nil:
			if err := dropRevision(txn, path, prev.Revision); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := putMeta(txn, pendingKey(path), rootMeta{RootID: root.ID, Revision: h.Revision}); err != nil {
			return err
		}
		return putObject(txn, path, h.Revision, root)
	})
	if err != nil {
		return store.Handle{}, fmt.Errorf("create root %s: %w", path, err)
	}
	return h, nil
}

func dropRevision(txn *badger.Txn, path string, rev uuid.UUID) error {
	var stale [][]byte
	it := txn.NewIterator(badger.IteratorOptions{Prefix: objectPrefix(path, rev)})
	for it.Rewind(); it.Valid(); it.Next() {
		stale = append(stale, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, key := range stale {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func putObject(txn *badger.Txn, path string, rev uuid.UUID, rec store.Record) error {
	val, err := json.Marshal(objectValue{Kind: rec.Kind, Data: rec.Data})
	if err != nil {
		return err
	}
	return txn.Set(objectKey(path, rev, rec.ID), val)
}

func putMeta(txn *badger.Txn, key []byte, meta rootMeta) error {
	val, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}

func getMeta(txn *badger.Txn, key []byte) (rootMeta, error) {
	var meta rootMeta
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta, store.ErrNotFound
	}
	if err != nil {
		return meta, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	return meta, err
}

// holds reports whether key names revision rev.
func holds(txn *badger.Txn, key []byte, rev uuid.UUID) (bool, error) {
	meta, err := getMeta(txn, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return meta.Revision == rev, nil
}

func (s *Store) AddSubObject(ctx context.Context, rec store.Record, h store.Handle) error {
	err := s.withTxn(ctx, true, func(txn *badger.Txn) error {
		for _, key := range [][]byte{rootKey(h.Path), pendingKey(h.Path)} {
			ok, err := holds(txn, key, h.Revision)
			if err != nil {
				return err
			}
			if ok {
				return putObject(txn, h.Path, h.Revision, rec)
			}
		}
		return store.ErrStaleHandle
	})
	if err != nil {
		return fmt.Errorf("add %s %d to %s: %w", rec.Kind, rec.ID, h.Path, err)
	}
	return nil
}

func (s *Store) Commit(ctx context.Context, h store.Handle) error {
	err := s.withTxn(ctx, true, func(txn *badger.Txn) error {
		staged, err := getMeta(txn, pendingKey(h.Path))
		if errors.Is(err, store.ErrNotFound) || (err == nil && staged.Revision != h.Revision) {
			return store.ErrStaleHandle
		}
		if err != nil {
			return err
		}
		prev, err := getMeta(txn, rootKey(h.Path))
		switch {
		case err == nil:
			if err := dropRevision(txn, h.Path, prev.Revision); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := putMeta(txn, rootKey(h.Path), staged); err != nil {
			return err
		}
		return txn.Delete(pendingKey(h.Path))
	})
	if err != nil {
		return fmt.Errorf("commit %s: %w", h.Path, err)
	}
	return nil
}

func (s *Store) LoadAll(ctx context.Context, path string) (*store.Snapshot, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	snap := &store.Snapshot{}
	err := s.withTxn(ctx, false, func(txn *badger.Txn) error {
		meta, err := getMeta(txn, rootKey(path))
		if err != nil {
			return err
		}
		snap.Handle = store.Handle{Path: path, Revision: meta.Revision}

		prefix := objectPrefix(path, meta.Revision)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		foundRoot := false
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := binary.BigEndian.Uint64(bytes.TrimPrefix(item.Key(), prefix))
			var val objectValue
			if err := item.Value(func(b []byte) error { return json.Unmarshal(b, &val) }); err != nil {
				return fmt.Errorf("decoding object %d: %w", id, err)
			}
			rec := store.Record{ID: id, Kind: val.Kind, Data: val.Data}
			if id == meta.RootID {
				snap.Root = rec
				foundRoot = true
				continue
			}
			snap.Objects = append(snap.Objects, rec)
		}
		if !foundRoot {
			return fmt.Errorf("root record %d missing: %w", meta.RootID, store.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return snap, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := s.withTxn(ctx, false, func(txn *badger.Txn) error {
		prefix := []byte("root/")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			paths = append(paths, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	return paths, nil
}
