package main

import (
	"context"

	"github.com/spf13/cobra"
)

func copyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <src> <dst>",
		Short: "Save an independent copy of a graph under a new path",
		Args:  cobra.ExactArgs(2),
		RunE:  runCopy,
	}
}

func runCopy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	session, err := p.loadSession(ctx, args[0])
	if err != nil {
		return err
	}
	if err := session.Save(ctx, args[1]); err != nil {
		return err
	}
	h, _ := session.Handle()
	cmd.Printf("Copied %s to %s (%d entities)\n", args[0], h.Path, len(session.Graph().Reachable()))
	return nil
}
