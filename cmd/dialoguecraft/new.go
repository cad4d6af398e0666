package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "new <path>",
		Short: "Save an empty dialogue graph to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd, args[0], name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Graph name; defaults to the project name")
	return cmd
}

func runNew(cmd *cobra.Command, path, name string) error {
	ctx := context.Background()

	p, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	if name == "" {
		name = p.cfg.Project
	}
	session := p.newSession(name)
	if err := session.Save(ctx, path); err != nil {
		return err
	}
	h, _ := session.Handle()
	cmd.Printf("Saved %s (revision %s)\n", h.Path, h.Revision)
	return nil
}
