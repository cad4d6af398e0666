package main

import (
	"context"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved dialogue graphs",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openProject(ctx)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	paths, err := p.newSession(p.cfg.Project).List(ctx)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		cmd.Println("No saved graphs.")
		return nil
	}
	for _, path := range paths {
		cmd.Println(path)
	}
	return nil
}
