package graph

import (
	"encoding/json"
	"fmt"

	"dialoguecraft/internal/entity"
)

// Encode serialises the fields of e. The id travels beside the payload.
func Encode(e entity.Entity) (entity.Kind, []byte, error) {
	switch e.(type) {
	case *Root, *Node, *Connector, *Actor, *Condition:
	default:
		return "", nil, fmt.Errorf("%w: cannot encode %T", entity.ErrPersistence, e)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("%w: encoding %s %s: %w", entity.ErrPersistence, e.EntityKind(), e.ID(), err)
	}
	return e.EntityKind(), data, nil
}

// Decode rebuilds an entity of kind stored under id.
func Decode(kind entity.Kind, id entity.ID, data []byte) (entity.Entity, error) {
	if id == entity.Nil {
		return nil, fmt.Errorf("%w: %s record has no id", entity.ErrPersistence, kind)
	}
	var e entity.Entity
	switch kind {
	case entity.KindRoot:
		e = &Root{id: id}
	case entity.KindNode:
		e = &Node{id: id}
	case entity.KindConnector:
		e = &Connector{id: id}
	case entity.KindActor:
		e = &Actor{id: id}
	case entity.KindCondition:
		e = &Condition{id: id}
	default:
		return nil, fmt.Errorf("%w: unknown record kind %q", entity.ErrPersistence, kind)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("%w: decoding %s %s: %w", entity.ErrPersistence, kind, id, err)
	}
	return e, nil
}
