// Package registry is the catalogue of node and connector kinds and the
// rules deciding which connectors may be attached to a node and which
// connectors may be linked to each other.
package registry

import (
	"fmt"
	"slices"
	"strings"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
)

type NodeKind int

const (
	NodeStart NodeKind = iota
	NodeMain
	NodeOption
)

var nodeKindNames = map[NodeKind]string{
	NodeStart:  "StartNode",
	NodeMain:   "MainNode",
	NodeOption: "OptionNode",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// ParseNodeKind accepts the class name ("MainNode") or its short form
// ("main"), case-insensitively.
func ParseNodeKind(s string) (NodeKind, error) {
	for kind, name := range nodeKindNames {
		if strings.EqualFold(s, name) || strings.EqualFold(s+"node", name) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

type ConnectorKind int

const (
	ConnectorInput ConnectorKind = iota
	ConnectorOutput
)

var connectorKindNames = map[ConnectorKind]string{
	ConnectorInput:  "InputNodule",
	ConnectorOutput: "OutputNodule",
}

func (k ConnectorKind) String() string {
	if name, ok := connectorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ConnectorKind(%d)", int(k))
}

// BaseName is the display name new connectors of this kind are derived from.
func (k ConnectorKind) BaseName() string {
	switch k {
	case ConnectorInput:
		return "Input"
	case ConnectorOutput:
		return "Output"
	}
	return k.String()
}

func ParseConnectorKind(s string) (ConnectorKind, error) {
	for kind, name := range connectorKindNames {
		if strings.EqualFold(s, name) || strings.EqualFold(s, kind.BaseName()) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown connector kind %q", s)
}

type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "Right"
	}
	return "Left"
}

type NodeType struct {
	Kind        NodeKind
	ContextPath string
	Hidden      bool
	Size        geom.Vec2
	Body        string
}

// Name is the last segment of the context path.
func (t NodeType) Name() string {
	return lastSegment(t.ContextPath)
}

type ConnectorType struct {
	Kind        ConnectorKind
	ContextPath string
	Hidden      bool
	Size        geom.Vec2
	DefaultSide Side
	Compatible  []ConnectorKind
}

func (t ConnectorType) Name() string {
	return lastSegment(t.ContextPath)
}

func (t ConnectorType) Accepts(kind ConnectorKind) bool {
	return slices.Contains(t.Compatible, kind)
}

// Module contributes types to a Registry.
type Module interface {
	Register(r *Registry)
}

type Registry struct {
	nodes      map[NodeKind]NodeType
	connectors map[ConnectorKind]ConnectorType
}

func New(modules ...Module) *Registry {
	r := &Registry{
		nodes:      make(map[NodeKind]NodeType),
		connectors: make(map[ConnectorKind]ConnectorType),
	}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

func (r *Registry) RegisterNode(t NodeType) {
	r.nodes[t.Kind] = t
}

func (r *Registry) RegisterConnector(t ConnectorType) {
	r.connectors[t.Kind] = t
}

func (r *Registry) Node(kind NodeKind) (NodeType, bool) {
	t, ok := r.nodes[kind]
	return t, ok
}

func (r *Registry) Connector(kind ConnectorKind) (ConnectorType, bool) {
	t, ok := r.connectors[kind]
	return t, ok
}

// VisibleNodeTypes lists the node types a user may create, ordered by
// context path.
func (r *Registry) VisibleNodeTypes() []NodeType {
	var out []NodeType
	for _, t := range r.nodes {
		if !t.Hidden {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b NodeType) int {
		return strings.Compare(a.ContextPath, b.ContextPath)
	})
	return out
}

func (r *Registry) VisibleConnectorTypes() []ConnectorType {
	var out []ConnectorType
	for _, t := range r.connectors {
		if !t.Hidden {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b ConnectorType) int {
		return strings.Compare(a.ContextPath, b.ContextPath)
	})
	return out
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// NodeInfo is the slice of a node the compatibility rules look at.
type NodeInfo struct {
	ID         entity.ID
	Kind       NodeKind
	Main       entity.ID
	Connectors []entity.ID
}

// Attached reports whether the node is an option owned by a main node.
func (n NodeInfo) Attached() bool {
	return n.Kind == NodeOption && n.Main != entity.Nil
}

// ConnectorInfo is the slice of a connector the link rules look at.
type ConnectorInfo struct {
	ID    entity.ID
	Kind  ConnectorKind
	Owner NodeInfo
	Peers []entity.ID
}
