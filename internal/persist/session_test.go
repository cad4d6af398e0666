package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/graph"
	"dialoguecraft/internal/logging"
	"dialoguecraft/internal/registry"
	"dialoguecraft/internal/store"
	"dialoguecraft/internal/store/memory"
)

// countingStore counts writes and can fail every AddSubObject after the
// first failAfter of them.
type countingStore struct {
	store.Store
	creates   int
	adds      int
	failAfter int
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New(), failAfter: -1}
}

func (s *countingStore) CreateRoot(ctx context.Context, root store.Record, path string) (store.Handle, error) {
	h, err := s.Store.CreateRoot(ctx, root, path)
	if err == nil {
		s.creates++
	}
	return h, err
}

func (s *countingStore) AddSubObject(ctx context.Context, rec store.Record, h store.Handle) error {
	if s.failAfter >= 0 && s.adds >= s.failAfter {
		return errors.New("disk full")
	}
	s.adds++
	return s.Store.AddSubObject(ctx, rec, h)
}

func (s *countingStore) reset() {
	s.creates, s.adds = 0, 0
}

// sampleGraph is a main node with two options, fed by the start node.
func sampleGraph(t *testing.T) (*graph.Cache, entity.ID) {
	t.Helper()
	c := graph.New("sample", graph.WithLogger(logging.Discard()))
	m, err := c.CreateNode(registry.NodeMain, geom.Vec2{X: 100, Y: 100})
	require.NoError(t, err)
	in, err := c.AddConnector(m, registry.ConnectorInput)
	require.NoError(t, err)
	require.NoError(t, c.Connect(c.Connectors(c.StartNode())[0], in))
	for range 2 {
		_, err := c.CreateOption(m)
		require.NoError(t, err)
	}
	return c, m
}

func TestSession_SaveThenFlush(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, m := sampleGraph(t)
	s := NewSession(c, st)

	require.NoError(t, s.Save(ctx, "intro.dialogue"))
	assert.Same(t, c, s.Graph(), "first save writes the graph itself")
	assert.Equal(t, 1, st.creates)
	assert.Equal(t, len(c.Reachable())-1, st.adds)

	st.reset()
	stats, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)
	assert.Equal(t, len(c.Reachable()), stats.Skipped)
	assert.Equal(t, 0, st.adds+st.creates)

	require.NoError(t, c.SetBody(m, "Well met."))
	stats, err = s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Written)

	opt, err := c.CreateOption(m)
	require.NoError(t, err)
	stats, err = s.Flush(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Written, 2, "new option and its main")

	snap, err := st.LoadAll(ctx, "intro.dialogue")
	require.NoError(t, err)
	var found bool
	for _, rec := range snap.Objects {
		found = found || rec.ID == uint64(opt)
	}
	assert.True(t, found)
}

func TestSession_InvalidPathWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, _ := sampleGraph(t)
	s := NewSession(c, st)

	for _, path := range []string{"", "../up.dialogue", "notes.txt", TempPath} {
		err := s.Save(ctx, path)
		assert.ErrorIs(t, err, entity.ErrPersistence, "path %q", path)
	}
	assert.ErrorIs(t, s.Save(ctx, "/abs.dialogue"), store.ErrInvalidPath)
	assert.Equal(t, 0, st.creates+st.adds)
	_, saved := s.Handle()
	assert.False(t, saved)

	_, err := s.Flush(ctx)
	assert.ErrorIs(t, err, entity.ErrPersistence)
}

func TestSession_SaveAsClones(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, _ := sampleGraph(t)
	s := NewSession(c, st)
	require.NoError(t, s.Save(ctx, "a.dialogue"))

	require.NoError(t, s.Save(ctx, "b.dialogue"))
	clone := s.Graph()
	require.NotSame(t, c, clone)
	h, _ := s.Handle()
	assert.Equal(t, "b.dialogue", h.Path)

	assert.Equal(t, len(c.Reachable()), len(clone.Reachable()))
	original := map[entity.ID]bool{}
	for _, id := range c.Reachable() {
		original[id] = true
	}
	for _, id := range clone.Reachable() {
		assert.False(t, original[id], "clone shares id %s", id)
	}
	assertSameShape(t, c, clone)

	// The clone is live; the original is not written by later flushes.
	require.NoError(t, clone.SetBody(clone.Options(clone.Nodes()[1])[0], "changed"))
	stats, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Written)
}

func TestSession_StoreFailureKeepsGraph(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, _ := sampleGraph(t)
	s := NewSession(c, st)
	require.NoError(t, s.Save(ctx, "a.dialogue"))

	st.reset()
	st.failAfter = 3
	err := s.Save(ctx, "b.dialogue")
	assert.ErrorIs(t, err, entity.ErrPersistence)
	assert.Same(t, c, s.Graph())
	h, _ := s.Handle()
	assert.Equal(t, "a.dialogue", h.Path)

	st.failAfter = -1
	stats, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)
}

func TestSession_FirstSaveFailureStaysUnsaved(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	st.failAfter = 0
	c, _ := sampleGraph(t)
	s := NewSession(c, st)

	assert.ErrorIs(t, s.Save(ctx, "a.dialogue"), entity.ErrPersistence)
	_, saved := s.Handle()
	assert.False(t, saved)

	st.failAfter = -1
	require.NoError(t, s.Save(ctx, "a.dialogue"))
	snap, err := st.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Len(t, snap.Records(), len(c.Reachable()))
}

func TestSession_FailedOverwriteKeepsLastSave(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, m := sampleGraph(t)
	s := NewSession(c, st)
	require.NoError(t, s.Save(ctx, "intro.dialogue"))
	before, err := st.LoadAll(ctx, "intro.dialogue")
	require.NoError(t, err)
	require.Len(t, before.Records(), len(c.Reachable()))

	require.NoError(t, c.SetBody(m, "Changed."))
	st.reset()
	st.failAfter = 2
	assert.ErrorIs(t, s.Save(ctx, "intro.dialogue"), entity.ErrPersistence)

	after, err := st.LoadAll(ctx, "intro.dialogue")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	h, _ := s.Handle()
	assert.Equal(t, before.Handle, h)
	assert.Same(t, c, s.Graph())

	// The last good save still takes incremental writes.
	st.failAfter = -1
	stats, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Written)
	snap, err := st.LoadAll(ctx, "intro.dialogue")
	require.NoError(t, err)
	assert.Len(t, snap.Records(), len(c.Reachable()))
	for _, rec := range snap.Objects {
		if rec.ID == uint64(m) {
			assert.Contains(t, string(rec.Data), "Changed.")
		}
	}
}

func TestSession_FailedFirstSaveKeepsDirtyMarks(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, _ := sampleGraph(t)
	s := NewSession(c, st)

	st.failAfter = 2
	require.Error(t, s.Save(ctx, "a.dialogue"))
	_, err := st.LoadAll(ctx, "a.dialogue")
	assert.ErrorIs(t, err, store.ErrNotFound)
	for _, id := range c.Reachable() {
		assert.True(t, c.Dirty(id), "entity %s lost its dirty mark", id)
	}

	st.failAfter = -1
	require.NoError(t, s.Save(ctx, "a.dialogue"))
	for _, id := range c.Reachable() {
		assert.False(t, c.Dirty(id), "entity %s still dirty", id)
	}
}

func TestSession_LoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, _ := sampleGraph(t)
	require.NoError(t, NewSession(c, st).Save(ctx, "a.dialogue"))

	s := NewSession(graph.New("scratch", graph.WithLogger(logging.Discard())), st)
	require.NoError(t, s.Load(ctx, "a.dialogue"))
	loaded := s.Graph()
	assert.Equal(t, "sample", loaded.Name())
	assert.Equal(t, c.AllNodes(), loaded.AllNodes())
	assertSameShape(t, c, loaded)

	st.reset()
	stats, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)

	err = s.Load(ctx, "missing.dialogue")
	assert.ErrorIs(t, err, entity.ErrPersistence)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Same(t, loaded, s.Graph())
}

func TestSession_LoadHealsDroppedRecords(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	c, m := sampleGraph(t)
	s := NewSession(c, mem)
	require.NoError(t, s.Save(ctx, "a.dialogue"))

	// Overwrite the main node's input with garbage.
	in := c.Connectors(m)[0]
	h, _ := s.Handle()
	require.NoError(t, mem.AddSubObject(ctx, store.Record{ID: uint64(in), Kind: "connector", Data: []byte(`{`)}, h))

	require.NoError(t, s.Load(ctx, "a.dialogue"))
	loaded := s.Graph()
	assert.Empty(t, loaded.Connectors(m))
	startOut, _ := loaded.Connector(loaded.Connectors(loaded.StartNode())[0])
	assert.Empty(t, startOut.Peers)
	assert.Empty(t, startOut.Values)
}

func TestSession_Autosave(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c, _ := sampleGraph(t)
	s := NewSession(c, st)
	require.NoError(t, s.Save(ctx, "a.dialogue"))

	require.NoError(t, s.Autosave(ctx))
	assert.Same(t, c, s.Graph())
	h, _ := s.Handle()
	assert.Equal(t, "a.dialogue", h.Path)

	paths, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{TempPath, "a.dialogue"}, paths)
}

// assertSameShape compares two graphs node by node in set order.
func assertSameShape(t *testing.T, a, b *graph.Cache) {
	t.Helper()
	an, bn := a.AllNodes(), b.AllNodes()
	require.Len(t, bn, len(an))
	for i := range an {
		na, _ := a.Node(an[i])
		nb, _ := b.Node(bn[i])
		assert.Equal(t, na.Name, nb.Name)
		assert.Equal(t, na.Kind, nb.Kind)
		assert.Equal(t, na.Rect, nb.Rect)
		assert.Equal(t, na.Body, nb.Body)
		ac, bc := a.Connectors(an[i]), b.Connectors(bn[i])
		require.Len(t, bc, len(ac))
		for j := range ac {
			ca, _ := a.Connector(ac[j])
			cb, _ := b.Connector(bc[j])
			assert.Equal(t, ca.Name, cb.Name)
			assert.Equal(t, ca.Side, cb.Side)
			assert.Equal(t, ca.Offset, cb.Offset)
			assert.Len(t, cb.Peers, len(ca.Peers))
		}
	}
}
