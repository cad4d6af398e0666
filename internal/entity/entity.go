// Package entity holds the arena that owns every graph entity, the integer
// ids used for references between them, and the error taxonomy shared by
// the graph and persistence layers.
package entity

import (
	"slices"
	"strconv"
)

// ID identifies an entity inside an Arena. Zero is never allocated.
type ID uint64

const Nil ID = 0

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

type Kind string

const (
	KindRoot      Kind = "root"
	KindNode      Kind = "node"
	KindConnector Kind = "connector"
	KindActor     Kind = "actor"
	KindCondition Kind = "condition"
)

// Entity is implemented by every record kind that lives in an Arena.
//
// References lists every id the entity points at, owned or not. CloneEmpty
// returns a copy carrying only value fields under a new id. Rewire fills the
// reference fields of a clone from the original it was copied from, mapping
// each id through m.
type Entity interface {
	ID() ID
	EntityKind() Kind
	References() []ID
	CloneEmpty(id ID) Entity
	Rewire(orig Entity, m IDMap)
}

// Source is a rooted view over a set of entities.
type Source interface {
	Root() ID
	Lookup(id ID) (Entity, bool)
}

// IDMap maps original ids to their clones.
type IDMap map[ID]ID

// Lookup returns the clone id for id, or Nil when id is Nil or unmapped.
func (m IDMap) Lookup(id ID) ID {
	if id == Nil {
		return Nil
	}
	return m[id]
}

// LookupAll maps ids in order, dropping any that have no clone.
func (m IDMap) LookupAll(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if mapped := m.Lookup(id); mapped != Nil {
			out = append(out, mapped)
		}
	}
	return out
}

// Arena owns entities by id and allocates new ids monotonically.
type Arena struct {
	items map[ID]Entity
	next  ID
}

func NewArena() *Arena {
	return &Arena{items: make(map[ID]Entity), next: 1}
}

// NewArenaAfter returns an empty arena whose ids start past every id other
// has allocated, so entities cloned into it never share an id with other.
func NewArenaAfter(other *Arena) *Arena {
	a := NewArena()
	if other != nil {
		a.next = other.next
	}
	return a
}

func (a *Arena) Allocate() ID {
	id := a.next
	a.next++
	return id
}

// Put stores e under its id, advancing the allocator past it if needed.
func (a *Arena) Put(e Entity) {
	id := e.ID()
	a.items[id] = e
	if id >= a.next {
		a.next = id + 1
	}
}

func (a *Arena) Get(id ID) (Entity, bool) {
	if id == Nil {
		return nil, false
	}
	e, ok := a.items[id]
	return e, ok
}

func (a *Arena) Delete(id ID) {
	delete(a.items, id)
}

func (a *Arena) Len() int {
	return len(a.items)
}

func (a *Arena) Next() ID {
	return a.next
}

// IDs returns every stored id in ascending order.
func (a *Arena) IDs() []ID {
	ids := make([]ID, 0, len(a.items))
	for id := range a.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Lookup returns the entity stored under id with its concrete type.
func Lookup[T Entity](a *Arena, id ID) (T, bool) {
	var zero T
	e, ok := a.Get(id)
	if !ok {
		return zero, false
	}
	typed, ok := e.(T)
	return typed, ok
}
