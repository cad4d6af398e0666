package registry

import (
	"fmt"
	"slices"

	"dialoguecraft/internal/entity"
)

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", entity.ErrValidation, fmt.Sprintf(format, args...))
}

// CheckAttach reports why a connector of kind may not be attached to node.
// id is the connector being attached, or entity.Nil for a new one.
func (r *Registry) CheckAttach(node NodeInfo, kind ConnectorKind, id entity.ID) error {
	if _, ok := r.connectors[kind]; !ok {
		return rejected("connector kind %s is not registered", kind)
	}
	if node.Kind == NodeStart && len(node.Connectors) > 0 {
		return rejected("start node already owns a connector")
	}
	if node.Attached() && kind == ConnectorInput {
		return rejected("an attached option cannot own an input connector")
	}
	if id != entity.Nil && slices.Contains(node.Connectors, id) {
		return rejected("connector %s already belongs to node %s", id, node.ID)
	}
	return nil
}

func (r *Registry) CanAttach(node NodeInfo, kind ConnectorKind) bool {
	return r.CheckAttach(node, kind, entity.Nil) == nil
}

// CheckLink reports why a and b may not be linked. Nil arguments stand for
// missing connectors.
func (r *Registry) CheckLink(a, b *ConnectorInfo) error {
	if a == nil || b == nil {
		return rejected("both connectors are required")
	}
	if a.ID == b.ID {
		return rejected("cannot link a connector to itself")
	}
	if a.Owner.ID == entity.Nil || b.Owner.ID == entity.Nil {
		return rejected("connector has no owning node")
	}
	if a.Owner.ID == b.Owner.ID {
		return rejected("connectors share node %s", a.Owner.ID)
	}
	ta, ok := r.connectors[a.Kind]
	if !ok || !ta.Accepts(b.Kind) {
		return rejected("%s is not compatible with %s", a.Kind, b.Kind)
	}
	if slices.Contains(a.Peers, b.ID) || slices.Contains(b.Peers, a.ID) {
		return rejected("connectors %s and %s are already linked", a.ID, b.ID)
	}
	if loopsToOwnMain(a, b) || loopsToOwnMain(b, a) {
		return rejected("an option cannot link back into its own main node")
	}
	if (a.Owner.Kind == NodeStart && a.Kind == ConnectorInput) ||
		(b.Owner.Kind == NodeStart && b.Kind == ConnectorInput) {
		return rejected("start node cannot receive")
	}
	return nil
}

func (r *Registry) CanLink(a, b *ConnectorInfo) bool {
	return r.CheckLink(a, b) == nil
}

// loopsToOwnMain checks one hop only: a non-output connector on an attached
// option whose peer lives on that option's main node.
func loopsToOwnMain(from, to *ConnectorInfo) bool {
	return from.Owner.Attached() &&
		from.Kind != ConnectorOutput &&
		from.Owner.Main == to.Owner.ID
}
