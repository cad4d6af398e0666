package graph

import (
	"strings"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/registry"
)

// owningSet returns the set an entity is listed in.
func (c *Cache) owningSet(e entity.Entity) (*idSet, bool) {
	root := c.rootEntity()
	switch v := e.(type) {
	case *Node:
		if v.Attached() {
			main, ok := c.node(v.Main)
			if !ok {
				return nil, false
			}
			return main.Options, true
		}
		return root.Nodes, true
	case *Connector:
		owner, ok := c.node(v.Owner)
		if !ok {
			return nil, false
		}
		return owner.Connectors, true
	case *Actor:
		return root.Actors, true
	case *Condition:
		return root.Conditions, true
	}
	return nil, false
}

// Rename changes the display name of an entity. A name already used in the
// same set is rejected rather than suffixed.
func (c *Cache) Rename(id entity.ID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name is required")
	}
	e, ok := c.arena.Get(id)
	if !ok {
		return missing("entity", id)
	}
	if r, ok := e.(*Root); ok {
		r.Name = name
		c.touch(r.id)
		return nil
	}
	if n, ok := e.(*Node); ok && n.Locked {
		return rejectedBy("rename", ErrLocked)
	}
	set, ok := c.owningSet(e)
	if !ok {
		return missing("owner of", id)
	}
	if err := set.Rename(id, name); err != nil {
		return rejectedBy("rename", err)
	}
	switch v := e.(type) {
	case *Node:
		v.Name = name
	case *Connector:
		v.Name = name
	case *Actor:
		v.Name = name
	case *Condition:
		v.Name = name
	}
	c.touch(id)
	return nil
}

func (c *Cache) SetBody(id entity.ID, body string) error {
	n, ok := c.node(id)
	if !ok {
		return missing("node", id)
	}
	n.Body = body
	c.touch(n.id)
	return nil
}

func (c *Cache) SetLocked(id entity.ID, locked bool) error {
	n, ok := c.node(id)
	if !ok {
		return missing("node", id)
	}
	n.Locked = locked
	c.touch(n.id)
	return nil
}

// SetActor assigns the speaking actor of a main or option node.
func (c *Cache) SetActor(nodeID, actorID entity.ID) error {
	n, ok := c.node(nodeID)
	if !ok {
		return missing("node", nodeID)
	}
	if n.Kind == registry.NodeStart {
		return invalid("the start node has no actor")
	}
	if n.Locked {
		return rejectedBy("set actor", ErrLocked)
	}
	if !c.rootEntity().Actors.Contains(actorID) {
		return missing("actor", actorID)
	}
	n.Actor = actorID
	c.touch(n.id)
	return nil
}

func (c *Cache) SetTint(actorID entity.ID, tint Color) error {
	a, ok := c.actor(actorID)
	if !ok {
		return missing("actor", actorID)
	}
	a.Tint = tint
	c.touch(a.id)
	return nil
}

// SetCondition chooses the condition an output routes on.
func (c *Cache) SetCondition(outputID, conditionID entity.ID) error {
	conn, ok := c.connector(outputID)
	if !ok {
		return missing("connector", outputID)
	}
	if !conn.IsOutput() {
		return invalid("connector %s is not an output", outputID)
	}
	if !c.rootEntity().Conditions.Contains(conditionID) {
		return missing("condition", conditionID)
	}
	conn.Condition = conditionID
	c.touch(conn.id)
	return nil
}

// SetConditionValue sets the rule an output applies for one of its peers.
func (c *Cache) SetConditionValue(outputID, peerID entity.ID, eq Equality, param Value) error {
	conn, ok := c.connector(outputID)
	if !ok {
		return missing("connector", outputID)
	}
	if !conn.IsOutput() {
		return invalid("connector %s is not an output", outputID)
	}
	if eq < Equal || eq > LessThan {
		return invalid("unknown equality %d", eq)
	}
	i := conn.valueIndex(peerID)
	if i < 0 {
		return invalid("connector %s is not linked to %s", outputID, peerID)
	}
	conn.Values[i].Equality = eq
	conn.Values[i].Param = param
	c.touch(conn.id)
	return nil
}

// MoveInSet reorders an entity within the set that lists it, with the same
// index rules as entityset.Set.Move.
func (c *Cache) MoveInSet(id entity.ID, to int) error {
	e, ok := c.arena.Get(id)
	if !ok {
		return missing("entity", id)
	}
	set, ok := c.owningSet(e)
	if !ok {
		return missing("owner of", id)
	}
	if err := set.Move(set.IndexOf(id), to); err != nil {
		return rejectedBy("move in set", err)
	}
	switch v := e.(type) {
	case *Node:
		if v.Attached() {
			if main, ok := c.node(v.Main); ok {
				c.touch(main.id)
				c.repackOptions(main)
			}
			return nil
		}
		c.touch(c.root)
	case *Connector:
		if owner, ok := c.node(v.Owner); ok {
			c.touch(owner.id)
			c.pack(owner)
		}
	default:
		c.touch(c.root)
	}
	return nil
}
