package graph

import (
	"fmt"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/registry"
)

// Delete removes an entity. Nodes take their connectors and options with
// them and are unlinked from every peer first. Actors and conditions in use
// are replaced by the reserved defaults. The Start node, its connector and
// the reserved slots cannot be deleted.
func (c *Cache) Delete(id entity.ID) error {
	e, ok := c.arena.Get(id)
	if !ok {
		return missing("entity", id)
	}
	switch v := e.(type) {
	case *Node:
		if v.Kind == registry.NodeStart {
			return invalid("the start node cannot be deleted")
		}
		c.destroyNode(v)
	case *Connector:
		if owner, ok := c.node(v.Owner); ok && owner.Kind == registry.NodeStart {
			return invalid("the start node's connector cannot be deleted")
		}
		c.destroyConnector(v)
		if owner, ok := c.node(v.Owner); ok {
			c.relayout(owner, true)
		}
	case *Actor:
		return c.deleteActor(v)
	case *Condition:
		return c.deleteCondition(v)
	default:
		return invalid("%s %s cannot be deleted", e.EntityKind(), id)
	}
	return nil
}

// destroyNode unlinks and deallocates n with everything it owns. It skips
// the Start check so that healing can drop extra Start nodes.
func (c *Cache) destroyNode(n *Node) {
	if n.Options != nil {
		for _, id := range n.Options.Items() {
			if opt, ok := c.node(id); ok {
				c.destroyNode(opt)
			}
		}
	}
	for _, id := range n.Connectors.Items() {
		if conn, ok := c.connector(id); ok {
			c.destroyConnector(conn)
		}
	}

	if n.Attached() {
		if main, ok := c.node(n.Main); ok {
			_ = main.Options.Remove(n.id)
			c.touch(main.id)
			c.repackOptions(main)
		}
	} else {
		_ = c.rootEntity().Nodes.Remove(n.id)
		c.touch(c.root)
	}
	c.arena.Delete(n.id)
	delete(c.dirty, n.id)
}

// destroyConnector prunes conn from every peer, then removes it from its
// owner and the arena.
func (c *Cache) destroyConnector(conn *Connector) {
	for _, peerID := range conn.Peers {
		peer, ok := c.connector(peerID)
		if !ok {
			continue
		}
		c.unlink(peer, conn.id)
		if peerNode, ok := c.node(peer.Owner); ok && peerNode.id != conn.Owner {
			c.relayout(peerNode, true)
		}
	}
	if owner, ok := c.node(conn.Owner); ok {
		_ = owner.Connectors.Remove(conn.id)
		c.touch(owner.id)
	}
	c.arena.Delete(conn.id)
	delete(c.dirty, conn.id)
}

func (c *Cache) deleteActor(a *Actor) error {
	root := c.rootEntity()
	switch i := root.Actors.IndexOf(a.id); {
	case i < 0:
		return missing("actor", a.id)
	case i < root.Actors.Reserved():
		return invalid("actor %q is reserved", a.Name)
	}
	fallback := c.DefaultActor()
	for _, n := range c.allNodes() {
		if n.Actor == a.id {
			n.Actor = fallback
			c.touch(n.id)
		}
	}
	if err := root.Actors.Remove(a.id); err != nil {
		return rejectedBy(fmt.Sprintf("delete actor %s", a.id), err)
	}
	c.touch(root.id)
	c.arena.Delete(a.id)
	delete(c.dirty, a.id)
	return nil
}

func (c *Cache) deleteCondition(cond *Condition) error {
	root := c.rootEntity()
	switch i := root.Conditions.IndexOf(cond.id); {
	case i < 0:
		return missing("condition", cond.id)
	case i < root.Conditions.Reserved():
		return invalid("condition %q is reserved", cond.Name)
	}
	fallback := c.NoneCondition()
	for _, n := range c.allNodes() {
		for _, id := range n.Connectors.Items() {
			if conn, ok := c.connector(id); ok && conn.Condition == cond.id {
				conn.Condition = fallback
				c.touch(conn.id)
			}
		}
	}
	if err := root.Conditions.Remove(cond.id); err != nil {
		return rejectedBy(fmt.Sprintf("delete condition %s", cond.id), err)
	}
	c.touch(root.id)
	c.arena.Delete(cond.id)
	delete(c.dirty, cond.id)
	return nil
}
