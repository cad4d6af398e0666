package persist

import (
	"context"
	"fmt"
	"time"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/graph"
	"dialoguecraft/internal/store"
)

// Tracked is a graph that remembers which entities changed since they were
// last written.
type Tracked interface {
	entity.Source
	Dirty(id entity.ID) bool
	MarkClean(id entity.ID)
}

type FlushStats struct {
	Visited int
	Written int
	Skipped int
}

// Flush writes every reachable entity that is not in stored, or is dirty,
// as a sub-object of h. Written entities are added to stored and marked
// clean. The first store error stops the flush; what was written before it
// stays marked clean.
func Flush(ctx context.Context, src Tracked, st store.Store, h store.Handle, stored map[entity.ID]struct{}) (FlushStats, error) {
	stats, written, err := flush(ctx, src, st, h, stored, src.Dirty)
	for _, id := range written {
		src.MarkClean(id)
	}
	return stats, err
}

// flush writes every reachable entity that is not in stored, or is stale,
// and returns the ids it wrote. It leaves dirty marks alone.
func flush(ctx context.Context, src entity.Source, st store.Store, h store.Handle, stored map[entity.ID]struct{}, stale func(entity.ID) bool) (FlushStats, []entity.ID, error) {
	var stats FlushStats
	var written []entity.ID
	start := time.Now()
	err := entity.Walk(src, func(e entity.Entity) error {
		stats.Visited++
		id := e.ID()
		if _, ok := stored[id]; ok && !stale(id) {
			stats.Skipped++
			return nil
		}
		rec, err := record(e)
		if err != nil {
			return err
		}
		if err := st.AddSubObject(ctx, rec, h); err != nil {
			return fmt.Errorf("%w: writing %s %s: %w", entity.ErrPersistence, e.EntityKind(), id, err)
		}
		stored[id] = struct{}{}
		written = append(written, id)
		stats.Written++
		return nil
	})
	flushDuration.Observe(time.Since(start).Seconds())
	flushWritten.Add(float64(stats.Written))
	return stats, written, err
}

func record(e entity.Entity) (store.Record, error) {
	kind, data, err := graph.Encode(e)
	if err != nil {
		return store.Record{}, err
	}
	return store.Record{ID: uint64(e.ID()), Kind: string(kind), Data: data}, nil
}
