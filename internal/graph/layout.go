package graph

import (
	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

// sides decides which side the owner's connector and the peer's connector
// face, from the horizontal extents of their nodes. ok is false when the
// extents only touch, in which case nothing changes.
func sides(owner, peer geom.Rect) (ownerSide, peerSide registry.Side, ok bool) {
	switch {
	case owner.XMin() > peer.XMin() && owner.XMin() < peer.XMax():
		return registry.SideLeft, registry.SideLeft, true
	case owner.XMax() > peer.XMin() && owner.XMin() < peer.XMax():
		return registry.SideRight, registry.SideRight, true
	case owner.XMin() > peer.XMax():
		return registry.SideLeft, registry.SideRight, true
	case owner.XMax() < peer.XMin():
		return registry.SideRight, registry.SideLeft, true
	}
	return 0, 0, false
}

// relayout reassigns the side of every connector on n from its first peer
// and the side of every peer from n. Nodes whose connector sides changed are
// repacked; n itself is repacked when force is set.
func (c *Cache) relayout(n *Node, force bool) {
	for _, id := range n.Connectors.Items() {
		conn, ok := c.connector(id)
		if !ok {
			continue
		}
		if len(conn.Peers) == 0 {
			if side := c.defaultSide(conn.Kind); conn.Side != side {
				conn.Side = side
				c.touch(conn.id)
				force = true
			}
			continue
		}
		for i, peerID := range conn.Peers {
			peer, ok := c.connector(peerID)
			if !ok {
				continue
			}
			peerNode, ok := c.node(peer.Owner)
			if !ok {
				continue
			}
			ownerSide, peerSide, ok := sides(n.Rect, peerNode.Rect)
			if !ok {
				continue
			}
			if i == 0 && conn.Side != ownerSide {
				conn.Side = ownerSide
				c.touch(conn.id)
				force = true
			}
			if peer.Side != peerSide {
				peer.Side = peerSide
				c.touch(peer.id)
				c.pack(peerNode)
			}
		}
	}
	if force {
		c.pack(n)
	}
}

// RelayoutAll recomputes sides for every node, then repacks every node and
// option column.
func (c *Cache) RelayoutAll() {
	nodes := c.allNodes()
	for _, n := range nodes {
		if n.Kind == registry.NodeMain {
			c.repackColumn(n)
		}
	}
	for _, n := range nodes {
		c.relayout(n, false)
	}
	for _, n := range nodes {
		c.pack(n)
	}
}

// Relayout recomputes layout around one node.
func (c *Cache) Relayout(id entity.ID) error {
	n, ok := c.node(id)
	if !ok {
		return missing("node", id)
	}
	c.relayout(n, true)
	return nil
}

func (c *Cache) defaultSide(kind registry.ConnectorKind) registry.Side {
	if t, ok := c.reg.Connector(kind); ok {
		return t.DefaultSide
	}
	if kind == registry.ConnectorOutput {
		return registry.SideRight
	}
	return registry.SideLeft
}

// pack lays out the connectors of n on each side: a column centred on the
// node, its gaps shrunk one unit at a time until it fits the node's height.
func (c *Cache) pack(n *Node) {
	var left, right []*Connector
	for _, id := range n.Connectors.Items() {
		conn, ok := c.connector(id)
		if !ok {
			continue
		}
		if conn.Side == registry.SideRight {
			right = append(right, conn)
		} else {
			left = append(left, conn)
		}
	}
	c.packSide(n, left, registry.SideLeft)
	c.packSide(n, right, registry.SideRight)
}

func (c *Cache) packSide(n *Node, conns []*Connector, side registry.Side) {
	if len(conns) == 0 {
		return
	}
	spacing := c.layout.ConnectorSpacing
	total := columnHeight(conns, spacing)
	for total > n.Rect.H && spacing > 0 {
		spacing = max(spacing-1, 0)
		total = columnHeight(conns, spacing)
	}

	y := -total / 2
	for _, conn := range conns {
		offset := geom.Vec2{X: n.Rect.W / 2, Y: y}
		if side == registry.SideLeft {
			offset.X = -n.Rect.W/2 - conn.Size.X
		}
		if conn.Offset != offset {
			conn.Offset = offset
			c.touch(conn.id)
		}
		y += conn.Size.Y + spacing
	}
}

func columnHeight(conns []*Connector, spacing float64) float64 {
	var total float64
	for _, conn := range conns {
		total += conn.Size.Y + spacing
	}
	return total
}

// ConnectorRect is the canvas rectangle a connector occupies.
func (c *Cache) ConnectorRect(id entity.ID) (geom.Rect, bool) {
	conn, ok := c.connector(id)
	if !ok {
		return geom.Rect{}, false
	}
	owner, ok := c.node(conn.Owner)
	if !ok {
		return geom.Rect{}, false
	}
	return geom.NewRect(owner.Rect.Center().Add(conn.Offset), conn.Size), true
}

func (c *Cache) clampRect(r geom.Rect) geom.Rect {
	r.X = clamp(r.X, 0, c.layout.Canvas.X-r.W)
	r.Y = clamp(r.Y, 0, c.layout.Canvas.Y-r.H)
	return r
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}
