package registry

import "dialoguecraft/internal/geom"

var (
	ConnectorSize  = geom.Vec2{X: 20, Y: 20}
	StartNodeSize  = geom.Vec2{X: 75, Y: 50}
	OptionNodeSize = geom.Vec2{X: 300, Y: 100}
	MainNodeSize   = geom.Vec2{X: 300, Y: 200}
)

type dialogueNodes struct{}

func (dialogueNodes) Register(r *Registry) {
	r.RegisterNode(NodeType{
		Kind:        NodeStart,
		ContextPath: "StartNode",
		Hidden:      true,
		Size:        StartNodeSize,
	})
	r.RegisterNode(NodeType{
		Kind:        NodeMain,
		ContextPath: "Dialogue/MainNode",
		Size:        MainNodeSize,
		Body:        "Speech goes here.",
	})
	r.RegisterNode(NodeType{
		Kind:        NodeOption,
		ContextPath: "Dialogue/OptionNode",
		Size:        OptionNodeSize,
		Body:        "Player speech goes here.",
	})
}

type connectors struct{}

func (connectors) Register(r *Registry) {
	r.RegisterConnector(ConnectorType{
		Kind:        ConnectorInput,
		ContextPath: "Connector/InputNodule",
		Size:        ConnectorSize,
		DefaultSide: SideLeft,
		Compatible:  []ConnectorKind{ConnectorOutput},
	})
	r.RegisterConnector(ConnectorType{
		Kind:        ConnectorOutput,
		ContextPath: "Connector/OutputNodule",
		Size:        ConnectorSize,
		DefaultSide: SideRight,
		Compatible:  []ConnectorKind{ConnectorInput},
	})
}

// Builtin is the fixed list of modules assembled by Default.
var Builtin = []Module{
	dialogueNodes{},
	connectors{},
}

func Default() *Registry {
	return New(Builtin...)
}
