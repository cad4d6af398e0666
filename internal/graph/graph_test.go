package graph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/entityset"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New("test", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func mustNode(t *testing.T, c *Cache, kind registry.NodeKind, x, y float64) entity.ID {
	t.Helper()
	id, err := c.CreateNode(kind, geom.Vec2{X: x, Y: y})
	require.NoError(t, err)
	return id
}

func mustConnector(t *testing.T, c *Cache, node entity.ID, kind registry.ConnectorKind) entity.ID {
	t.Helper()
	id, err := c.AddConnector(node, kind)
	require.NoError(t, err)
	return id
}

// assertLinksConsistent checks every live connector's peers resolve, point
// back, and that outputs carry one condition value per peer.
func assertLinksConsistent(t *testing.T, c *Cache) {
	t.Helper()
	for _, id := range c.arena.IDs() {
		conn, ok := c.connector(id)
		if !ok {
			continue
		}
		_, ownerOK := c.node(conn.Owner)
		assert.True(t, ownerOK, "connector %s has no owner", id)
		for _, peerID := range conn.Peers {
			peer, ok := c.connector(peerID)
			if assert.True(t, ok, "connector %s has dangling peer %s", id, peerID) {
				assert.True(t, peer.hasPeer(id), "link %s -> %s is one-sided", id, peerID)
			}
		}
		if conn.IsOutput() {
			require.Len(t, conn.Values, len(conn.Peers))
			for i, v := range conn.Values {
				assert.Equal(t, conn.Peers[i], v.Peer)
			}
		} else {
			assert.Empty(t, conn.Values)
		}
	}
}

func TestNew_ReservedEntities(t *testing.T) {
	c := newTestCache(t)

	assert.Equal(t, "test", c.Name())
	assert.Equal(t, 5, c.Len())

	startID := c.StartNode()
	require.NotEqual(t, entity.Nil, startID)
	start, _ := c.Node(startID)
	assert.Equal(t, StartNodeName, start.Name)
	assert.Equal(t, entity.Nil, start.Actor)
	assert.Equal(t, geom.Vec2{X: 4962.5, Y: 4975}, start.Rect.Position())

	conns := c.Connectors(startID)
	require.Len(t, conns, 1)
	out, _ := c.Connector(conns[0])
	assert.True(t, out.IsOutput())
	assert.Equal(t, "Output", out.Name)
	assert.Equal(t, c.NoneCondition(), out.Condition)

	actor, ok := c.Actor(c.DefaultActor())
	require.True(t, ok)
	assert.Equal(t, DefaultActorName, actor.Name)
	assert.Equal(t, White, actor.Tint)

	cond, ok := c.Condition(c.NoneCondition())
	require.True(t, ok)
	assert.Equal(t, NoneConditionName, cond.Name)
	assert.Equal(t, ValueNone, cond.Type)
}

func TestCreateNode(t *testing.T) {
	c := newTestCache(t)

	_, err := c.CreateNode(registry.NodeStart, geom.Vec2{})
	assert.ErrorIs(t, err, entity.ErrValidation)

	a := mustNode(t, c, registry.NodeMain, 0, 0)
	b := mustNode(t, c, registry.NodeMain, 20000, -5)
	na, _ := c.Node(a)
	nb, _ := c.Node(b)
	assert.Equal(t, "MainNode", na.Name)
	assert.Equal(t, "MainNode 1", nb.Name)
	assert.Equal(t, "Speech goes here.", na.Body)
	assert.Equal(t, c.DefaultActor(), na.Actor)
	assert.Equal(t, geom.Vec2{X: 9700, Y: 0}, nb.Rect.Position())
}

func TestSides(t *testing.T) {
	tests := []struct {
		name      string
		owner     geom.Rect
		peer      geom.Rect
		ownerSide registry.Side
		peerSide  registry.Side
		ok        bool
	}{
		{"peer to the right", geom.Rect{X: 0, W: 300}, geom.Rect{X: 500, W: 300}, registry.SideRight, registry.SideLeft, true},
		{"peer to the left", geom.Rect{X: 500, W: 300}, geom.Rect{X: 0, W: 300}, registry.SideLeft, registry.SideRight, true},
		{"owner starts inside peer", geom.Rect{X: 100, W: 300}, geom.Rect{X: 0, W: 300}, registry.SideLeft, registry.SideLeft, true},
		{"owner overlaps peer start", geom.Rect{X: 0, W: 300}, geom.Rect{X: 100, W: 300}, registry.SideRight, registry.SideRight, true},
		{"extents touch", geom.Rect{X: 0, W: 300}, geom.Rect{X: 300, W: 300}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ownerSide, peerSide, ok := sides(tt.owner, tt.peer)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.ownerSide, ownerSide)
				assert.Equal(t, tt.peerSide, peerSide)
			}
		})
	}
}

func TestConnect_SidesAndOffsets(t *testing.T) {
	c := newTestCache(t)
	a := mustNode(t, c, registry.NodeMain, 0, 0)
	b := mustNode(t, c, registry.NodeMain, 500, 0)
	out := mustConnector(t, c, a, registry.ConnectorOutput)
	in := mustConnector(t, c, b, registry.ConnectorInput)

	require.NoError(t, c.Connect(out, in))

	co, _ := c.Connector(out)
	ci, _ := c.Connector(in)
	assert.Equal(t, registry.SideRight, co.Side)
	assert.Equal(t, registry.SideLeft, ci.Side)
	assert.Equal(t, geom.Vec2{X: 150, Y: -12.5}, co.Offset)
	assert.Equal(t, geom.Vec2{X: -170, Y: -12.5}, ci.Offset)
	assert.Equal(t, []entity.ID{in}, co.Peers)
	assert.Equal(t, []entity.ID{out}, ci.Peers)

	r, ok := c.ConnectorRect(out)
	require.True(t, ok)
	assert.Equal(t, geom.Rect{X: 300, Y: 87.5, W: 20, H: 20}, r)
	hit, ok := c.ConnectorAt(geom.Vec2{X: 310, Y: 95})
	assert.True(t, ok)
	assert.Equal(t, out, hit)

	// Moving a past b flips both sides.
	require.NoError(t, c.Move(a, geom.Vec2{X: 1000, Y: 0}))
	assert.Equal(t, registry.SideLeft, co.Side)
	assert.Equal(t, registry.SideRight, ci.Side)
	assert.Equal(t, geom.Vec2{X: -170, Y: -12.5}, co.Offset)
	assert.Equal(t, geom.Vec2{X: 150, Y: -12.5}, ci.Offset)
}

func TestConnect_Rules(t *testing.T) {
	c := newTestCache(t)
	a := mustNode(t, c, registry.NodeMain, 0, 0)
	b := mustNode(t, c, registry.NodeMain, 500, 0)
	aOut := mustConnector(t, c, a, registry.ConnectorOutput)
	aIn := mustConnector(t, c, a, registry.ConnectorInput)
	bIn := mustConnector(t, c, b, registry.ConnectorInput)
	bIn2 := mustConnector(t, c, b, registry.ConnectorInput)

	tests := []struct {
		name string
		a, b entity.ID
	}{
		{"same node", aOut, aIn},
		{"input to input", aIn, bIn},
		{"missing connector", aOut, 999},
		{"self", aOut, aOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, c.Connect(tt.a, tt.b), entity.ErrValidation)
		})
	}

	require.NoError(t, c.Connect(aOut, bIn))
	assert.ErrorIs(t, c.Connect(bIn, aOut), entity.ErrValidation, "duplicate link in reverse")

	require.NoError(t, c.SetConditionValue(aOut, bIn, GreaterThan, Value{Int: 3}))
	require.NoError(t, c.Connect(aOut, bIn2))
	co, _ := c.Connector(aOut)
	require.Len(t, co.Values, 2)
	assert.Equal(t, ConditionValue{Peer: bIn2, Equality: Equal, Param: Value{Int: 3}}, co.Values[1])

	require.NoError(t, c.Disconnect(bIn, aOut))
	assert.Equal(t, []entity.ID{bIn2}, co.Peers)
	assert.ErrorIs(t, c.Disconnect(aOut, bIn), entity.ErrValidation)
	assertLinksConsistent(t, c)
}

func TestStartNode_Rules(t *testing.T) {
	c := newTestCache(t)
	start := c.StartNode()
	startOut := c.Connectors(start)[0]
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	in := mustConnector(t, c, m, registry.ConnectorInput)
	out := mustConnector(t, c, m, registry.ConnectorOutput)

	_, err := c.AddConnector(start, registry.ConnectorInput)
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.ErrorIs(t, c.Delete(start), entity.ErrValidation)
	assert.ErrorIs(t, c.Delete(startOut), entity.ErrValidation)
	assert.ErrorIs(t, c.SetActor(start, c.DefaultActor()), entity.ErrValidation)

	require.NoError(t, c.Connect(startOut, in))
	assert.ErrorIs(t, c.Connect(out, startOut), entity.ErrValidation, "output to output")
	_, err = c.DuplicateNode(start)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestOptions_Column(t *testing.T) {
	c := newTestCache(t)
	m := mustNode(t, c, registry.NodeMain, 100, 100)

	o1, err := c.CreateOption(m)
	require.NoError(t, err)
	o2, err := c.CreateOption(m)
	require.NoError(t, err)

	n1, _ := c.Node(o1)
	n2, _ := c.Node(o2)
	main, _ := c.Node(m)
	assert.Equal(t, "Option", n1.Name)
	assert.Equal(t, "Option 1", n2.Name)
	assert.Equal(t, "Player speech goes here.", n1.Body)
	assert.Equal(t, geom.Vec2{X: 100, Y: 308}, n1.Rect.Position())
	assert.Equal(t, geom.Vec2{X: 100, Y: 416}, n2.Rect.Position())
	assert.Equal(t, geom.Vec2{X: 100, Y: 524}, main.NextOption)
	assert.Equal(t, []entity.ID{o1, o2}, c.Options(m))
	assert.NotContains(t, c.Nodes(), o1)
	assert.Equal(t, m, n1.Main)

	_, err = c.AddConnector(o1, registry.ConnectorInput)
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.ErrorIs(t, c.Move(o1, geom.Vec2{}), entity.ErrValidation)

	require.NoError(t, c.DetachOption(o1))
	assert.Equal(t, entity.Nil, n1.Main)
	assert.Contains(t, c.Nodes(), o1)
	assert.Equal(t, geom.Vec2{X: 150, Y: 358}, n1.Rect.Position())
	assert.Equal(t, geom.Vec2{X: 100, Y: 308}, n2.Rect.Position())
	assert.Equal(t, geom.Vec2{X: 100, Y: 416}, main.NextOption)

	target, ok := c.AttachTarget(geom.Vec2{X: 110, Y: 420})
	require.True(t, ok)
	assert.Equal(t, m, target)
	require.NoError(t, c.AttachOption(o1, m))
	assert.Equal(t, []entity.ID{o2, o1}, c.Options(m))
	assert.Equal(t, geom.Vec2{X: 100, Y: 416}, n1.Rect.Position())
	assert.NotContains(t, c.Nodes(), o1)

	require.NoError(t, c.Move(m, geom.Vec2{X: 200, Y: 100}))
	assert.Equal(t, geom.Vec2{X: 200, Y: 308}, n2.Rect.Position())
	assert.Equal(t, geom.Vec2{X: 200, Y: 416}, n1.Rect.Position())
}

func TestAttachOption_RejectsInput(t *testing.T) {
	c := newTestCache(t)
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	o := mustNode(t, c, registry.NodeOption, 800, 0)
	mustConnector(t, c, o, registry.ConnectorInput)

	assert.ErrorIs(t, c.AttachOption(o, m), entity.ErrValidation)
	assert.Contains(t, c.Nodes(), o)
	assert.Empty(t, c.Options(m))
}

func TestMove_ClampsColumn(t *testing.T) {
	c := newTestCache(t)
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	_, err := c.CreateOption(m)
	require.NoError(t, err)

	require.NoError(t, c.Move(m, geom.Vec2{X: -100, Y: 20000}))
	main, _ := c.Node(m)
	// main (200) + gap (8) + option (100)
	assert.Equal(t, geom.Vec2{X: 0, Y: 10000 - 308}, main.Rect.Position())

	id, ok := c.NodeAt(geom.Vec2{X: 10, Y: 10000 - 50})
	require.True(t, ok)
	assert.Equal(t, c.Options(m)[0], id)
}

func TestDelete_Cascade(t *testing.T) {
	c := newTestCache(t)
	start := c.StartNode()
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	other := mustNode(t, c, registry.NodeMain, 1000, 0)
	mIn := mustConnector(t, c, m, registry.ConnectorInput)
	otherIn := mustConnector(t, c, other, registry.ConnectorInput)
	otherOut := mustConnector(t, c, other, registry.ConnectorOutput)

	o1, err := c.CreateOption(m)
	require.NoError(t, err)
	o2, err := c.CreateOption(m)
	require.NoError(t, err)
	o1Out := mustConnector(t, c, o1, registry.ConnectorOutput)
	o2Out := mustConnector(t, c, o2, registry.ConnectorOutput)

	require.NoError(t, c.Connect(c.Connectors(start)[0], mIn))
	require.NoError(t, c.Connect(otherOut, mIn))
	require.NoError(t, c.Connect(o1Out, otherIn))
	require.NoError(t, c.Connect(o2Out, otherIn))
	before := c.Len()

	require.NoError(t, c.Delete(m))

	for _, id := range []entity.ID{m, mIn, o1, o2, o1Out, o2Out} {
		_, ok := c.Lookup(id)
		assert.False(t, ok, "entity %s survived", id)
	}
	assert.Equal(t, before-6, c.Len())
	assert.NotContains(t, c.Nodes(), m)
	assertLinksConsistent(t, c)

	oi, _ := c.Connector(otherIn)
	assert.Empty(t, oi.Peers)
	oo, _ := c.Connector(otherOut)
	assert.Empty(t, oo.Values)
	assert.Len(t, c.Reachable(), c.Len())
}

func TestDeleteActor(t *testing.T) {
	c := newTestCache(t)
	hero, err := c.CreateActor("Hero", Color{R: 1, A: 1})
	require.NoError(t, err)
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	require.NoError(t, c.SetActor(m, hero))
	assert.Equal(t, 1, c.ActorUsage(hero))

	assert.ErrorIs(t, c.Delete(c.DefaultActor()), entity.ErrValidation)
	require.NoError(t, c.Delete(hero))

	n, _ := c.Node(m)
	assert.Equal(t, c.DefaultActor(), n.Actor)
	assert.Equal(t, []entity.ID{c.DefaultActor()}, c.Actors())
	assert.ErrorIs(t, c.SetActor(m, hero), ErrNotFound)
}

func TestDeleteCondition(t *testing.T) {
	c := newTestCache(t)
	flag, err := c.CreateCondition("HasKey", ValueBool)
	require.NoError(t, err)
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	out := mustConnector(t, c, m, registry.ConnectorOutput)
	in := mustConnector(t, c, m, registry.ConnectorInput)

	assert.ErrorIs(t, c.SetCondition(in, flag), entity.ErrValidation)
	require.NoError(t, c.SetCondition(out, flag))
	assert.ErrorIs(t, c.Delete(c.NoneCondition()), entity.ErrValidation)
	require.NoError(t, c.Delete(flag))

	conn, _ := c.Connector(out)
	assert.Equal(t, c.NoneCondition(), conn.Condition)
	assert.Len(t, c.Conditions(), 1)

	_, err = c.CreateCondition("  ", ValueInt)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestRename(t *testing.T) {
	c := newTestCache(t)
	a := mustNode(t, c, registry.NodeMain, 0, 0)
	b := mustNode(t, c, registry.NodeMain, 500, 0)

	require.NoError(t, c.Rename(a, "  Greeting "))
	na, _ := c.Node(a)
	assert.Equal(t, "Greeting", na.Name)

	err := c.Rename(b, "Greeting")
	assert.ErrorIs(t, err, entityset.ErrNameTaken)
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.ErrorIs(t, c.Rename(b, ""), entity.ErrValidation)

	require.NoError(t, c.SetLocked(b, true))
	assert.ErrorIs(t, c.Rename(b, "Farewell"), ErrLocked)
	assert.ErrorIs(t, c.SetActor(b, c.DefaultActor()), ErrLocked)
	require.NoError(t, c.SetBody(b, "still editable"))

	require.NoError(t, c.Rename(c.Root(), "renamed"))
	assert.Equal(t, "renamed", c.Name())

	require.NoError(t, c.MoveInSet(a, c.rootEntity().Nodes.Count()))
	nodes := c.Nodes()
	assert.Equal(t, a, nodes[len(nodes)-1])
}

func TestDuplicateNode(t *testing.T) {
	c := newTestCache(t)
	m := mustNode(t, c, registry.NodeMain, 100, 100)
	mustConnector(t, c, m, registry.ConnectorInput)
	require.NoError(t, c.SetBody(m, "Hello"))

	dup, err := c.DuplicateNode(m)
	require.NoError(t, err)
	n, _ := c.Node(dup)
	assert.Equal(t, "MainNode.copy", n.Name)
	assert.Equal(t, "Hello", n.Body)
	assert.Equal(t, geom.Vec2{X: 150, Y: 150}, n.Rect.Position())
	assert.Empty(t, c.Connectors(dup))
}

func TestRoute(t *testing.T) {
	c := newTestCache(t)
	level, err := c.CreateCondition("Level", ValueInt)
	require.NoError(t, err)
	src := mustNode(t, c, registry.NodeMain, 0, 0)
	out := mustConnector(t, c, src, registry.ConnectorOutput)

	var ins []entity.ID
	for i := range 3 {
		n := mustNode(t, c, registry.NodeMain, 1000, float64(i)*300)
		in := mustConnector(t, c, n, registry.ConnectorInput)
		require.NoError(t, c.Connect(out, in))
		ins = append(ins, in)
	}

	got, ok, err := c.Route(out, Value{Int: 42})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ins[0], got, "None condition takes the first peer")

	require.NoError(t, c.SetCondition(out, level))
	require.NoError(t, c.SetConditionValue(out, ins[0], GreaterThan, Value{Int: 10}))
	require.NoError(t, c.SetConditionValue(out, ins[1], LessThan, Value{Int: 0}))
	require.NoError(t, c.SetConditionValue(out, ins[2], Equal, Value{Int: 5}))

	tests := []struct {
		in   int64
		want entity.ID
		ok   bool
	}{
		{20, ins[0], true},
		{-3, ins[1], true},
		{5, ins[2], true},
		{7, entity.Nil, false},
	}
	for _, tt := range tests {
		got, ok, err := c.Route(out, Value{Int: tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.ok, ok, "value %d", tt.in)
		assert.Equal(t, tt.want, got, "value %d", tt.in)
	}

	_, _, err = c.Route(ins[0], Value{})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

type layoutState struct {
	Rect   geom.Rect
	Side   registry.Side
	Offset geom.Vec2
}

func snapshotLayout(c *Cache) map[entity.ID]layoutState {
	out := make(map[entity.ID]layoutState)
	for _, id := range c.arena.IDs() {
		switch e, _ := c.arena.Get(id); v := e.(type) {
		case *Node:
			out[id] = layoutState{Rect: v.Rect}
		case *Connector:
			out[id] = layoutState{Side: v.Side, Offset: v.Offset}
		}
	}
	return out
}

func TestRelayoutAll_Idempotent(t *testing.T) {
	c := newTestCache(t)
	a := mustNode(t, c, registry.NodeMain, 0, 0)
	b := mustNode(t, c, registry.NodeMain, 600, 0)
	aOut := mustConnector(t, c, a, registry.ConnectorOutput)
	bIn := mustConnector(t, c, b, registry.ConnectorInput)
	for range 12 {
		mustConnector(t, c, b, registry.ConnectorOutput)
	}
	require.NoError(t, c.Connect(aOut, bIn))
	_, err := c.CreateOption(a)
	require.NoError(t, err)

	c.RelayoutAll()
	first := snapshotLayout(c)
	c.RelayoutAll()
	assert.Equal(t, first, snapshotLayout(c))
}

func TestPack_ShrinksSpacing(t *testing.T) {
	c := newTestCache(t)
	s := mustNode(t, c, registry.NodeMain, 0, 0)
	var last entity.ID
	for range 9 {
		last = mustConnector(t, c, s, registry.ConnectorOutput)
	}
	// 9 * (20 + 5) = 225 > 200, 9 * (20 + 2) = 198 fits.
	conn, _ := c.Connector(last)
	assert.Equal(t, geom.Vec2{X: 150, Y: -99 + 8*22}, conn.Offset)
}

func TestHeal_RepairsDamage(t *testing.T) {
	c := newTestCache(t)
	a := mustNode(t, c, registry.NodeMain, 0, 0)
	b := mustNode(t, c, registry.NodeMain, 600, 0)
	aOut := mustConnector(t, c, a, registry.ConnectorOutput)
	bIn := mustConnector(t, c, b, registry.ConnectorInput)
	hero, err := c.CreateActor("Hero", White)
	require.NoError(t, err)
	require.NoError(t, c.SetActor(a, hero))

	// One-sided link with a dangling peer and no condition values.
	out, _ := c.connector(aOut)
	out.Peers = []entity.ID{bIn, 999}
	// Actor vanishes from the arena but stays listed.
	c.arena.Delete(hero)
	// Start node vanishes entirely.
	c.arena.Delete(c.StartNode())
	// An orphan nothing references.
	c.arena.Put(&Actor{id: 500, Name: "orphan"})

	healed, err := c.Derive(c.Arena(), c.Root())
	require.NoError(t, err)

	assertLinksConsistent(t, healed)
	hc, _ := healed.Connector(aOut)
	assert.Equal(t, []entity.ID{bIn}, hc.Peers)
	hi, _ := healed.Connector(bIn)
	assert.Equal(t, []entity.ID{aOut}, hi.Peers)

	na, _ := healed.Node(a)
	assert.Equal(t, healed.DefaultActor(), na.Actor)
	assert.Equal(t, []entity.ID{healed.DefaultActor()}, healed.Actors())

	start := healed.StartNode()
	require.NotEqual(t, entity.Nil, start)
	require.Len(t, healed.Connectors(start), 1)

	_, ok := healed.Lookup(500)
	assert.False(t, ok)
	assert.Len(t, healed.Reachable(), healed.Len())
}

func TestHeal_ReplacesLostReservedSlot(t *testing.T) {
	c := newTestCache(t)
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	out := mustConnector(t, c, m, registry.ConnectorOutput)
	hero, err := c.CreateActor("Hero", White)
	require.NoError(t, err)
	hasKey, err := c.CreateCondition("HasKey", ValueBool)
	require.NoError(t, err)
	oldActor, oldNone := c.DefaultActor(), c.NoneCondition()
	require.NoError(t, c.SetActor(m, oldActor))
	require.NoError(t, c.SetCondition(out, oldNone))

	c.arena.Delete(oldActor)
	c.arena.Delete(oldNone)

	healed, err := c.Derive(c.Arena(), c.Root())
	require.NoError(t, err)

	def := healed.DefaultActor()
	require.NotEqual(t, hero, def)
	a, ok := healed.Actor(def)
	require.True(t, ok)
	assert.Equal(t, DefaultActorName, a.Name)
	assert.Equal(t, []entity.ID{def, hero}, healed.Actors())
	n, _ := healed.Node(m)
	assert.Equal(t, def, n.Actor)

	none := healed.NoneCondition()
	require.NotEqual(t, hasKey, none)
	cond, ok := healed.Condition(none)
	require.True(t, ok)
	assert.Equal(t, NoneConditionName, cond.Name)
	assert.Equal(t, ValueNone, cond.Type)
	assert.Equal(t, []entity.ID{none, hasKey}, healed.Conditions())
	hc, _ := healed.Connector(out)
	assert.Equal(t, none, hc.Condition)

	// User entities stay deletable.
	require.NoError(t, healed.Delete(hero))
	require.NoError(t, healed.Delete(hasKey))
	assert.Error(t, healed.Delete(def))
}

func TestHeal_UnreservedSetsKeepDefaultsFirst(t *testing.T) {
	c := newTestCache(t)
	hero, err := c.CreateActor("Hero", White)
	require.NoError(t, err)
	def, none := c.DefaultActor(), c.NoneCondition()
	root := c.rootEntity()

	// Reserved marker lost with a user actor listed first.
	actors := newIDSet()
	actors.Add(hero, "Hero")
	actors.Add(def, DefaultActorName)
	root.Actors = actors
	// Reserved marker lost but None still first.
	conditions := newIDSet()
	conditions.Add(none, NoneConditionName)
	root.Conditions = conditions

	healed, err := c.Derive(c.Arena(), c.Root())
	require.NoError(t, err)

	got := healed.DefaultActor()
	require.NotEqual(t, hero, got)
	a, _ := healed.Actor(got)
	assert.Equal(t, DefaultActorName, a.Name)
	assert.Equal(t, hero, healed.Actors()[1])
	require.NoError(t, healed.Delete(hero))

	assert.Equal(t, none, healed.NoneCondition())
	assert.Error(t, healed.Delete(none))
}

func TestHeal_DuplicateStartAndAttachedInputs(t *testing.T) {
	c := newTestCache(t)
	m := mustNode(t, c, registry.NodeMain, 0, 0)
	o, err := c.CreateOption(m)
	require.NoError(t, err)

	extra := &Node{
		id:         c.arena.Allocate(),
		Kind:       registry.NodeStart,
		Rect:       geom.NewRect(geom.Vec2{}, registry.StartNodeSize),
		Connectors: newIDSet(),
	}
	c.arena.Put(extra)
	c.rootEntity().Nodes.Add(extra.id, StartNodeName)

	opt, _ := c.node(o)
	in := &Connector{id: c.arena.Allocate(), Kind: registry.ConnectorInput, Owner: o}
	c.arena.Put(in)
	opt.Connectors.Add(in.id, "Input")
	// Listed both top-level and in the column.
	c.rootEntity().Nodes.Add(o, "stray")

	healed, err := c.Derive(c.Arena(), c.Root())
	require.NoError(t, err)

	starts := 0
	for _, id := range healed.Nodes() {
		if n, _ := healed.Node(id); n.Kind == registry.NodeStart {
			starts++
		}
	}
	assert.Equal(t, 1, starts)
	assert.NotContains(t, healed.Nodes(), o)
	assert.Equal(t, []entity.ID{o}, healed.Options(m))
	assert.Empty(t, healed.Connectors(o))
	_, ok := healed.Lookup(in.id)
	assert.False(t, ok)
}

func TestAssemble_MissingRoot(t *testing.T) {
	_, err := Assemble(entity.NewArena(), 1)
	assert.ErrorIs(t, err, entity.ErrReferenceIntegrity)
}

func TestCodec_RoundTripThroughAssemble(t *testing.T) {
	c := newTestCache(t)
	a := mustNode(t, c, registry.NodeMain, 0, 0)
	b := mustNode(t, c, registry.NodeMain, 600, 0)
	aOut := mustConnector(t, c, a, registry.ConnectorOutput)
	bIn := mustConnector(t, c, b, registry.ConnectorInput)
	require.NoError(t, c.Connect(aOut, bIn))
	_, err := c.CreateOption(a)
	require.NoError(t, err)
	level, err := c.CreateCondition("Level", ValueInt)
	require.NoError(t, err)
	require.NoError(t, c.SetCondition(aOut, level))
	require.NoError(t, c.SetConditionValue(aOut, bIn, LessThan, Value{Int: -2}))
	c.RelayoutAll()

	arena := entity.NewArena()
	for _, id := range c.Reachable() {
		e, _ := c.Lookup(id)
		kind, data, err := Encode(e)
		require.NoError(t, err)
		decoded, err := Decode(kind, id, data)
		require.NoError(t, err)
		arena.Put(decoded)
	}
	loaded, err := c.Derive(arena, c.Root())
	require.NoError(t, err)

	assert.Equal(t, snapshotLayout(c), snapshotLayout(loaded))
	assert.Equal(t, c.AllNodes(), loaded.AllNodes())
	lc, _ := loaded.Connector(aOut)
	assert.Equal(t, level, lc.Condition)
	assert.Equal(t, []ConditionValue{{Peer: bIn, Equality: LessThan, Param: Value{Int: -2}}}, lc.Values)

	_, err = Decode("bogus", 1, []byte(`{}`))
	assert.ErrorIs(t, err, entity.ErrPersistence)
	_, err = Decode(entity.KindNode, 1, []byte(`{"connectors":{"items":[1,1],"names":["a","b"]}}`))
	assert.ErrorIs(t, err, entity.ErrPersistence)
}
