// Package mcp exposes an editing session over the Model Context Protocol.
package mcp

import (
	"context"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"dialoguecraft/internal/persist"
)

// Server serialises tool calls onto one session; the graph is single-writer.
type Server struct {
	mu      sync.Mutex
	session *persist.Session
	mcp     *sdk.Server
}

func NewServer(session *persist.Session, version string) *Server {
	s := &Server{
		session: session,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "dialoguecraft",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
