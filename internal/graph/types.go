// Package graph is the dialogue graph: nodes, their connectors, actors and
// conditions, all owned by a Cache that also lays connectors out and keeps
// the structural invariants.
package graph

import (
	"fmt"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/entityset"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

const (
	DefaultActorName  = "Default Actor"
	NoneConditionName = "None"
	StartNodeName     = "Start Node"
)

type ValueType int

const (
	ValueNone ValueType = iota
	ValueFloat
	ValueInt
	ValueBool
)

var valueTypeNames = map[ValueType]string{
	ValueNone:  "None",
	ValueFloat: "Float",
	ValueInt:   "Int",
	ValueBool:  "Bool",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

func ParseValueType(s string) (ValueType, error) {
	for t, name := range valueTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

type Equality int

const (
	Equal Equality = iota
	GreaterThan
	LessThan
)

func (e Equality) String() string {
	switch e {
	case GreaterThan:
		return "GreaterThan"
	case LessThan:
		return "LessThan"
	}
	return "Equal"
}

// Value holds a condition parameter. Which field is meaningful depends on
// the ValueType of the condition it is compared under.
type Value struct {
	Float float64 `json:"float,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
}

// ConditionValue is the routing rule an output applies for one peer.
type ConditionValue struct {
	Peer     entity.ID `json:"peer"`
	Equality Equality  `json:"equality"`
	Param    Value     `json:"param"`
}

type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

var White = Color{R: 1, G: 1, B: 1, A: 1}

type idSet = entityset.Set[entity.ID]

func newIDSet(opts ...entityset.Option) *idSet {
	return entityset.New[entity.ID](opts...)
}

// remapSet rewires a set copied from orig, dropping members without a clone.
func remapSet(orig *idSet, m entity.IDMap) *idSet {
	if orig == nil {
		return nil
	}
	s := orig.Clone()
	s.Remap(func(id entity.ID) (entity.ID, bool) {
		mapped := m.Lookup(id)
		return mapped, mapped != entity.Nil
	})
	return s
}

func emptyLike(orig *idSet) *idSet {
	if orig == nil {
		return nil
	}
	return newIDSet(entityset.WithReserved(orig.Reserved()))
}

// Root is the persistence root: it owns the top-level sets.
type Root struct {
	id         entity.ID
	Name       string `json:"name"`
	Nodes      *idSet `json:"nodes"`
	Actors     *idSet `json:"actors"`
	Conditions *idSet `json:"conditions"`
}

func (r *Root) ID() entity.ID           { return r.id }
func (r *Root) EntityKind() entity.Kind { return entity.KindRoot }

func (r *Root) References() []entity.ID {
	var refs []entity.ID
	for _, s := range []*idSet{r.Nodes, r.Actors, r.Conditions} {
		if s != nil {
			refs = append(refs, s.Items()...)
		}
	}
	return refs
}

func (r *Root) CloneEmpty(id entity.ID) entity.Entity {
	return &Root{
		id:         id,
		Name:       r.Name,
		Nodes:      emptyLike(r.Nodes),
		Actors:     emptyLike(r.Actors),
		Conditions: emptyLike(r.Conditions),
	}
}

func (r *Root) Rewire(orig entity.Entity, m entity.IDMap) {
	o := orig.(*Root)
	r.Nodes = remapSet(o.Nodes, m)
	r.Actors = remapSet(o.Actors, m)
	r.Conditions = remapSet(o.Conditions, m)
}

// Node is a Start, Main or Option node. Options and NextOption are used by
// main nodes only; Main is set on options owned by a main node.
type Node struct {
	id         entity.ID
	Kind       registry.NodeKind `json:"kind"`
	Name       string            `json:"name"`
	Rect       geom.Rect         `json:"rect"`
	Actor      entity.ID         `json:"actor,omitempty"`
	Body       string            `json:"body,omitempty"`
	Locked     bool              `json:"locked,omitempty"`
	Connectors *idSet            `json:"connectors"`
	Options    *idSet            `json:"options,omitempty"`
	Main       entity.ID         `json:"main,omitempty"`
	NextOption geom.Vec2         `json:"next_option"`
}

func (n *Node) ID() entity.ID           { return n.id }
func (n *Node) EntityKind() entity.Kind { return entity.KindNode }

// Attached reports whether n is an option owned by a main node.
func (n *Node) Attached() bool {
	return n.Kind == registry.NodeOption && n.Main != entity.Nil
}

func (n *Node) References() []entity.ID {
	var refs []entity.ID
	if n.Connectors != nil {
		refs = append(refs, n.Connectors.Items()...)
	}
	if n.Options != nil {
		refs = append(refs, n.Options.Items()...)
	}
	if n.Actor != entity.Nil {
		refs = append(refs, n.Actor)
	}
	if n.Main != entity.Nil {
		refs = append(refs, n.Main)
	}
	return refs
}

func (n *Node) CloneEmpty(id entity.ID) entity.Entity {
	return &Node{
		id:         id,
		Kind:       n.Kind,
		Name:       n.Name,
		Rect:       n.Rect,
		Body:       n.Body,
		Locked:     n.Locked,
		Connectors: emptyLike(n.Connectors),
		Options:    emptyLike(n.Options),
		NextOption: n.NextOption,
	}
}

func (n *Node) Rewire(orig entity.Entity, m entity.IDMap) {
	o := orig.(*Node)
	n.Connectors = remapSet(o.Connectors, m)
	n.Options = remapSet(o.Options, m)
	n.Actor = m.Lookup(o.Actor)
	n.Main = m.Lookup(o.Main)
}

func (n *Node) info() registry.NodeInfo {
	info := registry.NodeInfo{ID: n.id, Kind: n.Kind, Main: n.Main}
	if n.Connectors != nil {
		info.Connectors = n.Connectors.Items()
	}
	return info
}

// Connector is an attachment point on a node. Offset is derived by layout
// and relative to the centre of the owning node.
type Connector struct {
	id        entity.ID
	Kind      registry.ConnectorKind `json:"kind"`
	Name      string                 `json:"name"`
	Owner     entity.ID              `json:"owner"`
	Side      registry.Side          `json:"side"`
	Offset    geom.Vec2              `json:"offset"`
	Size      geom.Vec2              `json:"size"`
	Peers     []entity.ID            `json:"peers,omitempty"`
	Condition entity.ID              `json:"condition,omitempty"`
	Values    []ConditionValue       `json:"values,omitempty"`
}

func (c *Connector) ID() entity.ID           { return c.id }
func (c *Connector) EntityKind() entity.Kind { return entity.KindConnector }

func (c *Connector) IsOutput() bool {
	return c.Kind == registry.ConnectorOutput
}

func (c *Connector) References() []entity.ID {
	refs := make([]entity.ID, 0, len(c.Peers)+2)
	if c.Owner != entity.Nil {
		refs = append(refs, c.Owner)
	}
	refs = append(refs, c.Peers...)
	if c.Condition != entity.Nil {
		refs = append(refs, c.Condition)
	}
	return refs
}

func (c *Connector) CloneEmpty(id entity.ID) entity.Entity {
	return &Connector{
		id:     id,
		Kind:   c.Kind,
		Name:   c.Name,
		Side:   c.Side,
		Offset: c.Offset,
		Size:   c.Size,
	}
}

func (c *Connector) Rewire(orig entity.Entity, m entity.IDMap) {
	o := orig.(*Connector)
	c.Owner = m.Lookup(o.Owner)
	c.Peers = m.LookupAll(o.Peers)
	c.Condition = m.Lookup(o.Condition)
	c.Values = nil
	for _, v := range o.Values {
		if peer := m.Lookup(v.Peer); peer != entity.Nil {
			v.Peer = peer
			c.Values = append(c.Values, v)
		}
	}
}

func (c *Connector) hasPeer(id entity.ID) bool {
	for _, p := range c.Peers {
		if p == id {
			return true
		}
	}
	return false
}

func (c *Connector) valueIndex(peer entity.ID) int {
	for i, v := range c.Values {
		if v.Peer == peer {
			return i
		}
	}
	return -1
}

type Actor struct {
	id   entity.ID
	Name string `json:"name"`
	Tint Color  `json:"tint"`
}

func (a *Actor) ID() entity.ID           { return a.id }
func (a *Actor) EntityKind() entity.Kind { return entity.KindActor }
func (a *Actor) References() []entity.ID { return nil }

func (a *Actor) CloneEmpty(id entity.ID) entity.Entity {
	return &Actor{id: id, Name: a.Name, Tint: a.Tint}
}

func (a *Actor) Rewire(entity.Entity, entity.IDMap) {}

type Condition struct {
	id   entity.ID
	Name string    `json:"name"`
	Type ValueType `json:"type"`
}

func (c *Condition) ID() entity.ID           { return c.id }
func (c *Condition) EntityKind() entity.Kind { return entity.KindCondition }
func (c *Condition) References() []entity.ID { return nil }

func (c *Condition) CloneEmpty(id entity.ID) entity.Entity {
	return &Condition{id: id, Name: c.Name, Type: c.Type}
}

func (c *Condition) Rewire(entity.Entity, entity.IDMap) {}
