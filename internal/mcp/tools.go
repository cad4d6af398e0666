package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/graph"
	"dialoguecraft/internal/registry"
	"dialoguecraft/internal/validate"
)

type ListNodesInput struct{}

type CreateNodeInput struct {
	Kind string  `json:"kind" jsonschema:"node kind: main or option"`
	X    float64 `json:"x" jsonschema:"left edge on the canvas"`
	Y    float64 `json:"y" jsonschema:"top edge on the canvas"`
}

type CreateOptionInput struct {
	Main uint64 `json:"main" jsonschema:"id of the main node to add an option to"`
}

type AddConnectorInput struct {
	Node uint64 `json:"node" jsonschema:"id of the node"`
	Kind string `json:"kind" jsonschema:"connector kind: input or output"`
}

type EntityInput struct {
	ID uint64 `json:"id" jsonschema:"entity id"`
}

type LinkInput struct {
	From uint64 `json:"from" jsonschema:"connector id"`
	To   uint64 `json:"to" jsonschema:"connector id"`
}

type MoveNodeInput struct {
	ID uint64  `json:"id" jsonschema:"node id"`
	X  float64 `json:"x" jsonschema:"new left edge"`
	Y  float64 `json:"y" jsonschema:"new top edge"`
}

type PointInput struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PathInput struct {
	Path string `json:"path" jsonschema:"save path ending in .dialogue"`
}

type ValidateInput struct{}

type ConnectorOutput struct {
	ID    uint64   `json:"id"`
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	Side  string   `json:"side"`
	Peers []uint64 `json:"peers"`
}

type NodeOutput struct {
	ID         uint64            `json:"id"`
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Main       uint64            `json:"main,omitempty"`
	Body       string            `json:"body,omitempty"`
	Connectors []ConnectorOutput `json:"connectors"`
}

type ListNodesOutput struct {
	Nodes []NodeOutput `json:"nodes"`
}

type CreatedOutput struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type OKOutput struct {
	OK bool `json:"ok"`
}

type NodeAtOutput struct {
	Found bool        `json:"found"`
	Node  *NodeOutput `json:"node,omitempty"`
}

type SaveOutput struct {
	Path     string `json:"path"`
	Revision string `json:"revision"`
}

type IssueOutput struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Entity   uint64 `json:"entity,omitempty"`
	Name     string `json:"name,omitempty"`
}

type ValidateOutput struct {
	Issues []IssueOutput `json:"issues"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_nodes",
		Description: "List every node with its connectors and links",
	}, s.handleListNodes)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_node",
		Description: "Create a top-level main or option node",
	}, s.handleCreateNode)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_option",
		Description: "Append an option to a main node",
	}, s.handleCreateOption)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "add_connector",
		Description: "Attach an input or output connector to a node",
	}, s.handleAddConnector)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "delete_entity",
		Description: "Delete a node, connector, actor or condition",
	}, s.handleDeleteEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "connect",
		Description: "Link two connectors",
	}, s.handleConnect)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "disconnect",
		Description: "Remove the link between two connectors",
	}, s.handleDisconnect)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "move_node",
		Description: "Move a node and relayout its connectors",
	}, s.handleMoveNode)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "node_at",
		Description: "Find the topmost node under a canvas point",
	}, s.handleNodeAt)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "save",
		Description: "Save the graph; saving to a new path continues on a copy",
	}, s.handleSave)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "load",
		Description: "Replace the graph with a saved one",
	}, s.handleLoad)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "validate",
		Description: "Report structural problems in the graph",
	}, s.handleValidate)
}

func (s *Server) handleListNodes(ctx context.Context, req *sdk.CallToolRequest, input ListNodesInput) (*sdk.CallToolResult, ListNodesOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, listNodes(s.session.Graph()), nil
}

func (s *Server) handleCreateNode(ctx context.Context, req *sdk.CallToolRequest, input CreateNodeInput) (*sdk.CallToolResult, CreatedOutput, error) {
	kind, err := registry.ParseNodeKind(input.Kind)
	if err != nil {
		return nil, CreatedOutput{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.session.Graph()
	id, err := g.CreateNode(kind, geom.Vec2{X: input.X, Y: input.Y})
	if err != nil {
		return nil, CreatedOutput{}, err
	}
	n, _ := g.Node(id)
	return nil, CreatedOutput{ID: uint64(id), Name: n.Name}, nil
}

func (s *Server) handleCreateOption(ctx context.Context, req *sdk.CallToolRequest, input CreateOptionInput) (*sdk.CallToolResult, CreatedOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.session.Graph()
	id, err := g.CreateOption(entity.ID(input.Main))
	if err != nil {
		return nil, CreatedOutput{}, err
	}
	n, _ := g.Node(id)
	return nil, CreatedOutput{ID: uint64(id), Name: n.Name}, nil
}

func (s *Server) handleAddConnector(ctx context.Context, req *sdk.CallToolRequest, input AddConnectorInput) (*sdk.CallToolResult, CreatedOutput, error) {
	kind, err := registry.ParseConnectorKind(input.Kind)
	if err != nil {
		return nil, CreatedOutput{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.session.Graph()
	id, err := g.AddConnector(entity.ID(input.Node), kind)
	if err != nil {
		return nil, CreatedOutput{}, err
	}
	c, _ := g.Connector(id)
	return nil, CreatedOutput{ID: uint64(id), Name: c.Name}, nil
}

func (s *Server) handleDeleteEntity(ctx context.Context, req *sdk.CallToolRequest, input EntityInput) (*sdk.CallToolResult, OKOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Graph().Delete(entity.ID(input.ID)); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleConnect(ctx context.Context, req *sdk.CallToolRequest, input LinkInput) (*sdk.CallToolResult, OKOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Graph().Connect(entity.ID(input.From), entity.ID(input.To)); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleDisconnect(ctx context.Context, req *sdk.CallToolRequest, input LinkInput) (*sdk.CallToolResult, OKOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Graph().Disconnect(entity.ID(input.From), entity.ID(input.To)); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleMoveNode(ctx context.Context, req *sdk.CallToolRequest, input MoveNodeInput) (*sdk.CallToolResult, NodeOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.session.Graph()
	id := entity.ID(input.ID)
	if err := g.Move(id, geom.Vec2{X: input.X, Y: input.Y}); err != nil {
		return nil, NodeOutput{}, err
	}
	n, _ := nodeOutputFromGraph(g, id)
	return nil, n, nil
}

func (s *Server) handleNodeAt(ctx context.Context, req *sdk.CallToolRequest, input PointInput) (*sdk.CallToolResult, NodeAtOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.session.Graph()
	id, ok := g.NodeAt(geom.Vec2{X: input.X, Y: input.Y})
	if !ok {
		return nil, NodeAtOutput{}, nil
	}
	n, _ := nodeOutputFromGraph(g, id)
	return nil, NodeAtOutput{Found: true, Node: &n}, nil
}

func (s *Server) handleSave(ctx context.Context, req *sdk.CallToolRequest, input PathInput) (*sdk.CallToolResult, SaveOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Path == "" {
		h, saved := s.session.Handle()
		if !saved {
			return nil, SaveOutput{}, fmt.Errorf("path is required for the first save")
		}
		if _, err := s.session.Flush(ctx); err != nil {
			return nil, SaveOutput{}, err
		}
		return nil, SaveOutput{Path: h.Path, Revision: h.Revision.String()}, nil
	}
	if err := s.session.Save(ctx, input.Path); err != nil {
		return nil, SaveOutput{}, err
	}
	h, _ := s.session.Handle()
	return nil, SaveOutput{Path: h.Path, Revision: h.Revision.String()}, nil
}

func (s *Server) handleLoad(ctx context.Context, req *sdk.CallToolRequest, input PathInput) (*sdk.CallToolResult, ListNodesOutput, error) {
	if input.Path == "" {
		return nil, ListNodesOutput{}, fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Load(ctx, input.Path); err != nil {
		return nil, ListNodesOutput{}, err
	}
	return nil, listNodes(s.session.Graph()), nil
}

func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, input ValidateInput) (*sdk.CallToolResult, ValidateOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := validate.Run(s.session.Graph())
	output := make([]IssueOutput, 0, len(report.Issues))
	for _, issue := range report.Issues {
		output = append(output, IssueOutput{
			Severity: string(issue.Severity),
			Code:     issue.Code,
			Message:  issue.Message,
			Entity:   uint64(issue.Entity),
			Name:     issue.Name,
		})
	}
	return nil, ValidateOutput{Issues: output}, nil
}

func listNodes(g *graph.Cache) ListNodesOutput {
	ids := g.AllNodes()
	output := make([]NodeOutput, 0, len(ids))
	for _, id := range ids {
		if n, ok := nodeOutputFromGraph(g, id); ok {
			output = append(output, n)
		}
	}
	return ListNodesOutput{Nodes: output}
}

func nodeOutputFromGraph(g *graph.Cache, id entity.ID) (NodeOutput, bool) {
	n, ok := g.Node(id)
	if !ok {
		return NodeOutput{}, false
	}
	out := NodeOutput{
		ID:         uint64(id),
		Name:       n.Name,
		Kind:       n.Kind.String(),
		X:          n.Rect.X,
		Y:          n.Rect.Y,
		Width:      n.Rect.W,
		Height:     n.Rect.H,
		Main:       uint64(n.Main),
		Body:       n.Body,
		Connectors: make([]ConnectorOutput, 0),
	}
	for _, cid := range g.Connectors(id) {
		c, ok := g.Connector(cid)
		if !ok {
			continue
		}
		peers := make([]uint64, 0, len(c.Peers))
		for _, p := range c.Peers {
			peers = append(peers, uint64(p))
		}
		out.Connectors = append(out.Connectors, ConnectorOutput{
			ID:    uint64(cid),
			Name:  c.Name,
			Kind:  c.Kind.String(),
			Side:  c.Side.String(),
			Peers: peers,
		})
	}
	return out, true
}
