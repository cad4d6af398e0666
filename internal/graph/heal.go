package graph

import (
	"log/slog"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/entityset"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

// ensureDefaults creates whichever reserved entities are missing and
// reports what it had to create.
func (c *Cache) ensureDefaults() (created []string) {
	root := c.rootEntity()
	if root.Actors.Count() == 0 {
		a := newReservedActor(c.arena.Allocate())
		a.Name = root.Actors.Add(a.id, a.Name)
		c.put(a)
		c.touch(root.id)
		created = append(created, "default actor")
	}
	if root.Conditions.Count() == 0 {
		cond := newReservedCondition(c.arena.Allocate())
		cond.Name = root.Conditions.Add(cond.id, cond.Name)
		c.put(cond)
		c.touch(root.id)
		created = append(created, "none condition")
	}
	if c.StartNode() == entity.Nil {
		size := registry.StartNodeSize
		if t, ok := c.reg.Node(registry.NodeStart); ok {
			size = t.Size
		}
		pos := geom.Vec2{X: (c.layout.Canvas.X - size.X) / 2, Y: (c.layout.Canvas.Y - size.Y) / 2}
		if _, err := c.CreateNode(registry.NodeStart, pos); err == nil {
			created = append(created, "start node")
		}
	}
	return created
}

// heal restores the invariants a decoded or cloned graph may have lost:
// reserved actor and condition slots, a single Start node owning a single
// output, resolvable and mutual peer links, condition values matching peers,
// and consistent option ownership. Anything that cannot be repaired is
// logged and discarded. Entities no longer reachable are dropped from the
// arena. Layout is recomputed at the end.
func (c *Cache) heal() {
	root := c.rootEntity()
	nodes, actors, conditions := root.Nodes, root.Actors, root.Conditions
	root.Nodes = orNew(root.Nodes, 0)
	root.Actors = reserveFirst(orNew(root.Actors, 1))
	root.Conditions = reserveFirst(orNew(root.Conditions, 1))
	if nodes != root.Nodes || actors != root.Actors || conditions != root.Conditions {
		c.touch(root.id)
	}

	reservedActor := heldSlot(actors, DefaultActorName)
	reservedCondition := heldSlot(conditions, NoneConditionName)
	c.dropMissing(root.id, "actor", root.Actors.Retain(func(id entity.ID) bool {
		_, ok := c.actor(id)
		return ok
	}))
	c.dropMissing(root.id, "condition", root.Conditions.Retain(func(id entity.ID) bool {
		_, ok := c.condition(id)
		return ok
	}))
	if slotLost(root.Actors, reservedActor) {
		a := newReservedActor(c.arena.Allocate())
		root.Actors = c.reseat(root.Actors, a, a.Name)
		c.log.Warn("synthesized missing reserved entity", slog.String("entity", "default actor"))
	}
	if slotLost(root.Conditions, reservedCondition) {
		cond := newReservedCondition(c.arena.Allocate())
		root.Conditions = c.reseat(root.Conditions, cond, cond.Name)
		c.log.Warn("synthesized missing reserved entity", slog.String("entity", "none condition"))
	}
	c.dropMissing(root.id, "node", root.Nodes.Retain(func(id entity.ID) bool {
		_, ok := c.node(id)
		return ok
	}))

	for _, what := range c.ensureDefaults() {
		c.log.Warn("synthesized missing reserved entity", slog.String("entity", what))
	}

	c.healOptionOwnership(root)
	c.healNodes(root)
	c.healPeers()
	c.healStart(root)
	c.healAttachedInputs()
	c.syncNames(root)
	c.purgeUnreachable()
	c.RelayoutAll()
}

// heldSlot returns the member of s that holds its reserved slot. A set that
// reserves nothing only counts a first member named want.
func heldSlot(s *idSet, want string) entity.ID {
	if s == nil || s.Count() == 0 {
		return entity.Nil
	}
	if s.Reserved() == 0 {
		if name, _ := s.NameAt(0); name != want {
			return entity.Nil
		}
	}
	id, _ := s.Get(0)
	return id
}

// slotLost reports whether s has members but none of them is reserved.
func slotLost(s *idSet, reserved entity.ID) bool {
	if s.Count() == 0 {
		return false
	}
	first, _ := s.Get(0)
	return first != reserved
}

// reseat returns a copy of s with e in the reserved slot, followed by the
// members of s in order.
func (c *Cache) reseat(s *idSet, e entity.Entity, name string) *idSet {
	out := newIDSet(entityset.WithReserved(1))
	out.Add(e.ID(), name)
	for i, id := range s.All() {
		n, _ := s.NameAt(i)
		out.Add(id, n)
	}
	c.put(e)
	c.touch(c.root)
	return out
}

func orNew(s *idSet, reserved int) *idSet {
	if s == nil {
		return newIDSet(entityset.WithReserved(reserved))
	}
	return s
}

// reserveFirst returns s with its first slot reserved.
func reserveFirst(s *idSet) *idSet {
	if s.Reserved() == 1 {
		return s
	}
	out := newIDSet(entityset.WithReserved(1))
	for i, id := range s.All() {
		name, _ := s.NameAt(i)
		out.Add(id, name)
	}
	return out
}

func (c *Cache) dropMissing(owner entity.ID, what string, dropped []entity.ID) {
	if len(dropped) == 0 {
		return
	}
	c.touch(owner)
	for _, id := range dropped {
		c.log.Warn("discarding missing reference",
			slog.String("kind", what),
			slog.String("id", id.String()),
			slog.String("owner", owner.String()),
		)
	}
}

// healOptionOwnership makes every option owned by exactly one of a main
// node's option set or the top-level set.
func (c *Cache) healOptionOwnership(root *Root) {
	owner := make(map[entity.ID]entity.ID)
	for _, id := range root.Nodes.Items() {
		n, _ := c.node(id)
		if n.Kind != registry.NodeMain {
			if n.Options != nil {
				n.Options = nil
				c.touch(n.id)
			}
			continue
		}
		n.Options = orNew(n.Options, 0)
		dropped := n.Options.Retain(func(optID entity.ID) bool {
			opt, ok := c.node(optID)
			if !ok || opt.Kind != registry.NodeOption {
				return false
			}
			if _, taken := owner[optID]; taken {
				return false
			}
			owner[optID] = n.id
			return true
		})
		c.dropMissing(n.id, "option", dropped)
	}

	for optID, mainID := range owner {
		opt, _ := c.node(optID)
		if opt.Main != mainID {
			opt.Main = mainID
			c.touch(opt.id)
		}
		opt.Options = nil
		if root.Nodes.Contains(optID) {
			_ = root.Nodes.Remove(optID)
			c.touch(root.id)
			c.log.Warn("option listed twice, keeping it attached",
				slog.String("option", optID.String()),
				slog.String("main", mainID.String()),
			)
		}
	}
	for _, id := range root.Nodes.Items() {
		n, _ := c.node(id)
		if n.Kind == registry.NodeOption && n.Main != entity.Nil {
			n.Main = entity.Nil
			c.touch(n.id)
		}
	}
}

// healNodes repairs per-node fields: connector membership and ownership,
// size and actor.
func (c *Cache) healNodes(root *Root) {
	claimed := make(map[entity.ID]struct{})
	for _, n := range c.allNodes() {
		if t, ok := c.reg.Node(n.Kind); ok && (n.Rect.W <= 0 || n.Rect.H <= 0) {
			n.Rect.W, n.Rect.H = t.Size.X, t.Size.Y
			c.touch(n.id)
		}
		n.Connectors = orNew(n.Connectors, 0)
		dropped := n.Connectors.Retain(func(id entity.ID) bool {
			conn, ok := c.connector(id)
			if !ok {
				return false
			}
			if _, taken := claimed[id]; taken {
				return false
			}
			claimed[id] = struct{}{}
			if conn.Owner != n.id {
				conn.Owner = n.id
				c.touch(conn.id)
			}
			return true
		})
		c.dropMissing(n.id, "connector", dropped)

		switch {
		case n.Kind == registry.NodeStart:
			if n.Actor != entity.Nil {
				n.Actor = entity.Nil
				c.touch(n.id)
			}
		case !root.Actors.Contains(n.Actor):
			if n.Actor != entity.Nil {
				c.log.Warn("node actor missing, using default",
					slog.String("node", n.id.String()),
					slog.String("actor", n.Actor.String()),
				)
			}
			n.Actor = c.DefaultActor()
			c.touch(n.id)
		}
	}
}

// healPeers keeps only peers that are live, compatible connectors on other
// nodes, makes every link mutual and resynchronises condition values.
func (c *Cache) healPeers() {
	root := c.rootEntity()
	var live []*Connector
	for _, n := range c.allNodes() {
		for _, id := range n.Connectors.Items() {
			if conn, ok := c.connector(id); ok {
				live = append(live, conn)
			}
		}
	}
	isLive := make(map[entity.ID]*Connector, len(live))
	for _, conn := range live {
		isLive[conn.id] = conn
	}

	for _, conn := range live {
		if t, ok := c.reg.Connector(conn.Kind); ok && (conn.Size.X <= 0 || conn.Size.Y <= 0) {
			conn.Size = t.Size
			c.touch(conn.id)
		}
		seen := make(map[entity.ID]struct{}, len(conn.Peers))
		peers := conn.Peers[:0]
		for _, id := range conn.Peers {
			peer, ok := isLive[id]
			_, dup := seen[id]
			if !ok || dup || peer.Owner == conn.Owner || !c.compatible(conn, peer) {
				c.log.Warn("discarding peer",
					slog.String("connector", conn.id.String()),
					slog.String("peer", id.String()),
				)
				c.touch(conn.id)
				continue
			}
			seen[id] = struct{}{}
			peers = append(peers, id)
		}
		conn.Peers = peers
	}

	for _, conn := range live {
		for _, id := range conn.Peers {
			peer := isLive[id]
			if !peer.hasPeer(conn.id) {
				c.log.Warn("repairing one-sided link",
					slog.String("connector", peer.id.String()),
					slog.String("peer", conn.id.String()),
				)
				peer.Peers = append(peer.Peers, conn.id)
				c.touch(peer.id)
			}
		}
	}

	for _, conn := range live {
		if syncValues(conn) {
			c.touch(conn.id)
		}
		switch {
		case !conn.IsOutput():
			if conn.Condition != entity.Nil {
				conn.Condition = entity.Nil
				c.touch(conn.id)
			}
		case !root.Conditions.Contains(conn.Condition):
			conn.Condition = c.NoneCondition()
			c.touch(conn.id)
		}
	}
}

func (c *Cache) compatible(a, b *Connector) bool {
	t, ok := c.reg.Connector(a.Kind)
	return ok && t.Accepts(b.Kind)
}

// healStart keeps the first Start node and its first output, destroying the
// rest.
func (c *Cache) healStart(root *Root) {
	var starts []*Node
	for _, id := range root.Nodes.Items() {
		if n, _ := c.node(id); n.Kind == registry.NodeStart {
			starts = append(starts, n)
		}
	}
	if len(starts) == 0 {
		return
	}
	for _, extra := range starts[1:] {
		c.log.Warn("destroying extra start node", slog.String("node", extra.id.String()))
		c.destroyNode(extra)
	}

	start := starts[0]
	if start.Name != StartNodeName && root.Nodes.IndexOfName(StartNodeName) < 0 {
		_ = root.Nodes.Rename(start.id, StartNodeName)
	}
	var keep entity.ID
	for _, id := range start.Connectors.Items() {
		conn, _ := c.connector(id)
		if keep == entity.Nil && conn.IsOutput() {
			keep = id
			continue
		}
		c.log.Warn("destroying extra start connector", slog.String("connector", id.String()))
		c.destroyConnector(conn)
	}
	if keep == entity.Nil {
		c.log.Warn("start node has no output, adding one")
		c.attachConnector(start, registry.ConnectorOutput)
	}
}

func (c *Cache) healAttachedInputs() {
	for _, n := range c.allNodes() {
		if !n.Attached() {
			continue
		}
		for _, id := range n.Connectors.Items() {
			conn, ok := c.connector(id)
			if !ok || conn.IsOutput() {
				continue
			}
			c.log.Warn("destroying input on attached option",
				slog.String("option", n.id.String()),
				slog.String("connector", id.String()),
			)
			c.destroyConnector(conn)
		}
	}
}

// syncNames copies the name each set holds onto the entity it names.
func (c *Cache) syncNames(root *Root) {
	setName := func(e entity.Entity, name string) {
		switch v := e.(type) {
		case *Node:
			if v.Name != name {
				v.Name = name
				c.touch(v.id)
			}
		case *Connector:
			if v.Name != name {
				v.Name = name
				c.touch(v.id)
			}
		case *Actor:
			if v.Name != name {
				v.Name = name
				c.touch(v.id)
			}
		case *Condition:
			if v.Name != name {
				v.Name = name
				c.touch(v.id)
			}
		}
	}
	sync := func(s *idSet) {
		if s == nil {
			return
		}
		for i, id := range s.All() {
			name, _ := s.NameAt(i)
			if e, ok := c.arena.Get(id); ok {
				setName(e, name)
			}
		}
	}
	sync(root.Nodes)
	sync(root.Actors)
	sync(root.Conditions)
	for _, n := range c.allNodes() {
		sync(n.Connectors)
		sync(n.Options)
	}
}

func (c *Cache) purgeUnreachable() {
	reachable := make(map[entity.ID]struct{})
	for _, id := range entity.Reachable(c) {
		reachable[id] = struct{}{}
	}
	purged := 0
	for _, id := range c.arena.IDs() {
		if _, ok := reachable[id]; ok {
			continue
		}
		c.arena.Delete(id)
		delete(c.dirty, id)
		purged++
	}
	if purged > 0 {
		c.log.Debug("dropped unreachable entities", slog.Int("count", purged))
	}
}
