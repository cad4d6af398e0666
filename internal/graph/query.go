package graph

import (
	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
)

// NodeAt returns the topmost node under pos. Later nodes are on top and
// attached options sit above every top-level node.
func (c *Cache) NodeAt(pos geom.Vec2) (entity.ID, bool) {
	nodes := c.allNodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Rect.Contains(pos) {
			return nodes[i].id, true
		}
	}
	return entity.Nil, false
}

// ConnectorAt returns the connector under pos.
func (c *Cache) ConnectorAt(pos geom.Vec2) (entity.ID, bool) {
	nodes := c.allNodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		for _, id := range nodes[i].Connectors.Items() {
			if r, ok := c.ConnectorRect(id); ok && r.Contains(pos) {
				return id, true
			}
		}
	}
	return entity.Nil, false
}

// Nodes lists the top-level nodes in order.
func (c *Cache) Nodes() []entity.ID {
	return c.rootEntity().Nodes.Items()
}

// AllNodes lists top-level nodes followed by attached options.
func (c *Cache) AllNodes() []entity.ID {
	nodes := c.allNodes()
	ids := make([]entity.ID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
	}
	return ids
}

func (c *Cache) Options(mainID entity.ID) []entity.ID {
	n, ok := c.node(mainID)
	if !ok || n.Options == nil {
		return nil
	}
	return n.Options.Items()
}

func (c *Cache) Connectors(nodeID entity.ID) []entity.ID {
	n, ok := c.node(nodeID)
	if !ok {
		return nil
	}
	return n.Connectors.Items()
}

func (c *Cache) Actors() []entity.ID {
	return c.rootEntity().Actors.Items()
}

func (c *Cache) Conditions() []entity.ID {
	return c.rootEntity().Conditions.Items()
}

// ActorUsage counts the nodes spoken by an actor.
func (c *Cache) ActorUsage(actorID entity.ID) int {
	count := 0
	for _, n := range c.allNodes() {
		if n.Actor == actorID {
			count++
		}
	}
	return count
}

// Reachable lists every entity reachable from the root.
func (c *Cache) Reachable() []entity.ID {
	return entity.Reachable(c)
}

// Len is the number of entities in the arena, reachable or not.
func (c *Cache) Len() int {
	return c.arena.Len()
}
