// Package storetest is the behaviour every store.Store driver must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialoguecraft/internal/store"
)

// Run exercises a driver. open must return an empty store; the suite
// closes it.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndLoad", testCreateAndLoad},
		{"UpsertReplaces", testUpsertReplaces},
		{"RootUpdate", testRootUpdate},
		{"ReplaceRoot", testReplaceRoot},
		{"AbandonedRevisionKeepsSave", testAbandonedRevisionKeepsSave},
		{"CommittedAcceptsWrites", testCommittedAcceptsWrites},
		{"StaleHandle", testStaleHandle},
		{"NotFound", testNotFound},
		{"UncommittedInvisible", testUncommittedInvisible},
		{"InvalidPath", testInvalidPath},
		{"List", testList},
		{"PathsIsolated", testPathsIsolated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			tt.fn(t, s)
		})
	}
}

func rec(id uint64, kind, data string) store.Record {
	return store.Record{ID: id, Kind: kind, Data: []byte(data)}
}

func testCreateAndLoad(t *testing.T, s store.Store) {
	ctx := context.Background()
	h, err := s.CreateRoot(ctx, rec(1, "root", `{"name":"a"}`), "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, "a.dialogue", h.Path)

	require.NoError(t, s.AddSubObject(ctx, rec(3, "node", `{"n":3}`), h))
	require.NoError(t, s.AddSubObject(ctx, rec(2, "actor", `{"n":2}`), h))
	require.NoError(t, s.Commit(ctx, h))

	snap, err := s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, h, snap.Handle)
	assert.Equal(t, rec(1, "root", `{"name":"a"}`), snap.Root)
	require.Len(t, snap.Objects, 2)
	assert.Equal(t, rec(2, "actor", `{"n":2}`), snap.Objects[0])
	assert.Equal(t, rec(3, "node", `{"n":3}`), snap.Objects[1])
}

func testUpsertReplaces(t *testing.T, s store.Store) {
	ctx := context.Background()
	h, err := s.CreateRoot(ctx, rec(1, "root", `{}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{"v":1}`), h))
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{"v":2}`), h))
	require.NoError(t, s.Commit(ctx, h))

	snap, err := s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	require.Len(t, snap.Objects, 1)
	assert.Equal(t, `{"v":2}`, string(snap.Objects[0].Data))
}

func testRootUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	h, err := s.CreateRoot(ctx, rec(1, "root", `{"v":1}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(1, "root", `{"v":2}`), h))
	require.NoError(t, s.Commit(ctx, h))

	snap, err := s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(snap.Root.Data))
	assert.Empty(t, snap.Objects)
}

func testReplaceRoot(t *testing.T, s store.Store) {
	ctx := context.Background()
	h1, err := s.CreateRoot(ctx, rec(1, "root", `{}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{}`), h1))
	require.NoError(t, s.Commit(ctx, h1))

	h2, err := s.CreateRoot(ctx, rec(10, "root", `{}`), "a.dialogue")
	require.NoError(t, err)
	assert.NotEqual(t, h1.Revision, h2.Revision)

	snap, err := s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, h1, snap.Handle)
	assert.Len(t, snap.Objects, 1)

	require.NoError(t, s.Commit(ctx, h2))
	snap, err = s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, h2, snap.Handle)
	assert.Equal(t, uint64(10), snap.Root.ID)
	assert.Empty(t, snap.Objects)

	err = s.AddSubObject(ctx, rec(3, "node", `{}`), h1)
	assert.ErrorIs(t, err, store.ErrStaleHandle)
}

// A revision whose writes stopped part way is never committed; the save it
// would have replaced must come back intact.
func testAbandonedRevisionKeepsSave(t *testing.T, s store.Store) {
	ctx := context.Background()
	h1, err := s.CreateRoot(ctx, rec(1, "root", `{"v":1}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{"v":1}`), h1))
	require.NoError(t, s.AddSubObject(ctx, rec(3, "node", `{"v":1}`), h1))
	require.NoError(t, s.Commit(ctx, h1))

	h2, err := s.CreateRoot(ctx, rec(1, "root", `{"v":2}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{"v":2}`), h2))

	snap, err := s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, h1, snap.Handle)
	assert.Equal(t, `{"v":1}`, string(snap.Root.Data))
	require.Len(t, snap.Objects, 2)
	assert.Equal(t, `{"v":1}`, string(snap.Objects[0].Data))

	// A later save replaces both the committed and the abandoned revision.
	h3, err := s.CreateRoot(ctx, rec(1, "root", `{"v":3}`), "a.dialogue")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Commit(ctx, h2), store.ErrStaleHandle)
	require.NoError(t, s.Commit(ctx, h3))
	snap, err = s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, h3, snap.Handle)
	assert.Equal(t, `{"v":3}`, string(snap.Root.Data))
	assert.Empty(t, snap.Objects)
}

func testCommittedAcceptsWrites(t *testing.T, s store.Store) {
	ctx := context.Background()
	h, err := s.CreateRoot(ctx, rec(1, "root", `{}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, h))

	// Staging a new revision leaves the committed one writable.
	_, err = s.CreateRoot(ctx, rec(1, "root", `{}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{"v":1}`), h))

	snap, err := s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	require.Len(t, snap.Objects, 1)
	assert.Equal(t, `{"v":1}`, string(snap.Objects[0].Data))

	assert.ErrorIs(t, s.Commit(ctx, h), store.ErrStaleHandle)
}

func testStaleHandle(t *testing.T, s store.Store) {
	ctx := context.Background()
	h1, err := s.CreateRoot(ctx, rec(1, "root", `{}`), "a.dialogue")
	require.NoError(t, err)
	_, err = s.CreateRoot(ctx, rec(1, "root", `{}`), "a.dialogue")
	require.NoError(t, err)

	err = s.AddSubObject(ctx, rec(2, "node", `{}`), h1)
	assert.ErrorIs(t, err, store.ErrStaleHandle)
	assert.ErrorIs(t, s.Commit(ctx, h1), store.ErrStaleHandle)

	never := store.NewHandle("never.dialogue")
	err = s.AddSubObject(ctx, rec(2, "node", `{}`), never)
	assert.ErrorIs(t, err, store.ErrStaleHandle)
	assert.ErrorIs(t, s.Commit(ctx, never), store.ErrStaleHandle)
}

func testNotFound(t *testing.T, s store.Store) {
	_, err := s.LoadAll(context.Background(), "missing.dialogue")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUncommittedInvisible(t *testing.T, s store.Store) {
	ctx := context.Background()
	h, err := s.CreateRoot(ctx, rec(1, "root", `{}`), "a.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{}`), h))

	_, err = s.LoadAll(ctx, "a.dialogue")
	assert.ErrorIs(t, err, store.ErrNotFound)
	paths, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func testInvalidPath(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.CreateRoot(ctx, rec(1, "root", `{}`), "../escape.dialogue")
	assert.ErrorIs(t, err, store.ErrInvalidPath)
	_, err = s.LoadAll(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidPath)

	paths, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, p := range []string{"b.dialogue", "Saves/a.dialogue", "a.dialogue"} {
		h, err := s.CreateRoot(ctx, rec(1, "root", `{}`), p)
		require.NoError(t, err)
		require.NoError(t, s.Commit(ctx, h))
	}
	paths, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saves/a.dialogue", "a.dialogue", "b.dialogue"}, paths)
}

func testPathsIsolated(t *testing.T, s store.Store) {
	ctx := context.Background()
	ha, err := s.CreateRoot(ctx, rec(1, "root", `{"p":"a"}`), "a.dialogue")
	require.NoError(t, err)
	hb, err := s.CreateRoot(ctx, rec(1, "root", `{"p":"b"}`), "b.dialogue")
	require.NoError(t, err)
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{"p":"a"}`), ha))
	require.NoError(t, s.AddSubObject(ctx, rec(2, "node", `{"p":"b"}`), hb))
	require.NoError(t, s.Commit(ctx, ha))
	require.NoError(t, s.Commit(ctx, hb))

	snap, err := s.LoadAll(ctx, "a.dialogue")
	require.NoError(t, err)
	assert.Equal(t, `{"p":"a"}`, string(snap.Root.Data))
	require.Len(t, snap.Objects, 1)
	assert.Equal(t, `{"p":"a"}`, string(snap.Objects[0].Data))
}
