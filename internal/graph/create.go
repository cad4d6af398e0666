package graph

import (
	"fmt"
	"strings"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

// CreateNode adds a top-level node of kind with its top-left corner at pos.
// Only one Start node may exist.
func (c *Cache) CreateNode(kind registry.NodeKind, pos geom.Vec2) (entity.ID, error) {
	t, ok := c.reg.Node(kind)
	if !ok {
		return entity.Nil, invalid("node kind %s is not registered", kind)
	}
	if kind == registry.NodeStart && c.StartNode() != entity.Nil {
		return entity.Nil, invalid("graph already has a start node")
	}
	n := c.newNode(t, pos)
	if kind == registry.NodeStart {
		n.Name = StartNodeName
		n.Actor = entity.Nil
	}
	n.Name = c.rootEntity().Nodes.Add(n.id, n.Name)
	c.put(n)
	c.touch(c.root)
	if kind == registry.NodeStart {
		c.attachConnector(n, registry.ConnectorOutput)
	}
	c.relayout(n, true)
	return n.id, nil
}

func (c *Cache) newNode(t registry.NodeType, pos geom.Vec2) *Node {
	n := &Node{
		id:         c.arena.Allocate(),
		Kind:       t.Kind,
		Name:       t.Name(),
		Rect:       c.clampRect(geom.NewRect(pos, t.Size)),
		Actor:      c.DefaultActor(),
		Body:       t.Body,
		Connectors: newIDSet(),
	}
	if t.Kind == registry.NodeMain {
		n.Options = newIDSet()
		n.NextOption = c.columnStart(n)
	}
	return n
}

// CreateOption adds a new option at the bottom of main's option column.
func (c *Cache) CreateOption(mainID entity.ID) (entity.ID, error) {
	main, ok := c.node(mainID)
	if !ok || main.Kind != registry.NodeMain {
		return entity.Nil, missing("main node", mainID)
	}
	t, ok := c.reg.Node(registry.NodeOption)
	if !ok {
		return entity.Nil, invalid("option nodes are not registered")
	}
	opt := c.newNode(t, main.NextOption)
	opt.Main = main.id
	opt.Name = main.Options.Add(opt.id, "Option")
	c.put(opt)
	c.touch(main.id)
	c.repackOptions(main)
	return opt.id, nil
}

// AddConnector attaches a new connector of kind to a node.
func (c *Cache) AddConnector(nodeID entity.ID, kind registry.ConnectorKind) (entity.ID, error) {
	n, ok := c.node(nodeID)
	if !ok {
		return entity.Nil, missing("node", nodeID)
	}
	if err := c.reg.CheckAttach(n.info(), kind, entity.Nil); err != nil {
		return entity.Nil, fmt.Errorf("add connector: %w", err)
	}
	id := c.attachConnector(n, kind)
	c.relayout(n, true)
	return id, nil
}

func (c *Cache) attachConnector(n *Node, kind registry.ConnectorKind) entity.ID {
	size := registry.ConnectorSize
	side := registry.SideLeft
	if kind == registry.ConnectorOutput {
		side = registry.SideRight
	}
	if t, ok := c.reg.Connector(kind); ok {
		size = t.Size
		side = t.DefaultSide
	}
	conn := &Connector{
		id:    c.arena.Allocate(),
		Kind:  kind,
		Owner: n.id,
		Side:  side,
		Size:  size,
	}
	if conn.IsOutput() {
		conn.Condition = c.NoneCondition()
	}
	conn.Name = n.Connectors.Add(conn.id, kind.BaseName())
	c.put(conn)
	c.touch(n.id)
	return conn.id
}

func (c *Cache) CreateActor(name string, tint Color) (entity.ID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.Nil, invalid("actor name is required")
	}
	a := &Actor{id: c.arena.Allocate(), Tint: tint}
	a.Name = c.rootEntity().Actors.Add(a.id, name)
	c.put(a)
	c.touch(c.root)
	return a.id, nil
}

func (c *Cache) CreateCondition(name string, typ ValueType) (entity.ID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.Nil, invalid("condition name is required")
	}
	if _, ok := valueTypeNames[typ]; !ok {
		return entity.Nil, invalid("unknown value type %d", typ)
	}
	cond := &Condition{id: c.arena.Allocate(), Type: typ}
	cond.Name = c.rootEntity().Conditions.Add(cond.id, name)
	c.put(cond)
	c.touch(c.root)
	return cond.id, nil
}

// DuplicateNode copies a main or option node into the top-level set, offset
// by (50, 50). Connectors and options are not copied.
func (c *Cache) DuplicateNode(id entity.ID) (entity.ID, error) {
	src, ok := c.node(id)
	if !ok {
		return entity.Nil, missing("node", id)
	}
	if src.Kind == registry.NodeStart {
		return entity.Nil, invalid("the start node cannot be duplicated")
	}
	t, ok := c.reg.Node(src.Kind)
	if !ok {
		return entity.Nil, invalid("node kind %s is not registered", src.Kind)
	}
	dup := c.newNode(t, src.Rect.Position().Add(duplicateOffset))
	dup.Actor = src.Actor
	dup.Body = src.Body
	dup.Name = c.rootEntity().Nodes.Add(dup.id, src.Name+".copy")
	c.put(dup)
	c.touch(c.root)
	c.relayout(dup, true)
	return dup.id, nil
}

var duplicateOffset = geom.Vec2{X: 50, Y: 50}

func newReservedActor(id entity.ID) *Actor {
	return &Actor{id: id, Name: DefaultActorName, Tint: White}
}

func newReservedCondition(id entity.ID) *Condition {
	return &Condition{id: id, Name: NoneConditionName, Type: ValueNone}
}
