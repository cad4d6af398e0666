package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"dialoguecraft/internal/logging"
	"dialoguecraft/internal/mcp"
	"dialoguecraft/internal/persist"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	var load string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(load)
		},
	}
	cmd.Flags().StringVar(&load, "load", "", "Saved graph to open instead of an empty one")
	return cmd
}

func runServe(load string) error {
	ctx := context.Background()

	p, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)
	ctx = logging.WithLogger(ctx, p.log)

	var session *persist.Session
	if load != "" {
		session, err = p.loadSession(ctx, load)
		if err != nil {
			return err
		}
	} else {
		session = p.newSession(p.cfg.Project)
	}

	defer func() {
		if err := session.Autosave(ctx); err != nil {
			logging.FromContext(ctx).Warn("autosave failed", slog.String("error", err.Error()))
		}
	}()

	server := mcp.NewServer(session, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
