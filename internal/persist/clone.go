// Package persist copies dialogue graphs and writes them to a store.
package persist

import (
	"fmt"

	"dialoguecraft/internal/entity"
)

// Sink receives cloned entities. *entity.Arena is a Sink.
type Sink interface {
	Allocate() entity.ID
	Put(e entity.Entity)
}

// Clone copies every entity reachable from src's root into dst and returns
// the original-to-clone id map.
//
// The first pass allocates one clone per original, memoised by id, so
// shared and cyclic references are cloned once. The second pass walks the
// originals again and rewires each clone through the finished map. Nil and
// unresolvable references are treated as leaves. Neither pass recurses.
func Clone(src entity.Source, dst Sink) (entity.IDMap, error) {
	m := make(entity.IDMap)
	clones := make(map[entity.ID]entity.Entity)

	stack := []entity.ID{src.Root()}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == entity.Nil {
			continue
		}
		if _, done := m[id]; done {
			continue
		}
		orig, ok := src.Lookup(id)
		if !ok {
			continue
		}
		clone := orig.CloneEmpty(dst.Allocate())
		m[id] = clone.ID()
		clones[id] = clone
		for _, ref := range orig.References() {
			if _, done := m[ref]; !done {
				stack = append(stack, ref)
			}
		}
	}
	if _, ok := m[src.Root()]; !ok {
		return nil, fmt.Errorf("%w: clone: root %s is missing", entity.ErrReferenceIntegrity, src.Root())
	}

	visited := make(map[entity.ID]struct{}, len(m))
	stack = append(stack[:0], src.Root())
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		clone, ok := clones[id]
		if !ok {
			continue
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		orig, _ := src.Lookup(id)
		clone.Rewire(orig, m)
		dst.Put(clone)
		for _, ref := range orig.References() {
			if _, seen := visited[ref]; !seen {
				stack = append(stack, ref)
			}
		}
	}
	return m, nil
}
