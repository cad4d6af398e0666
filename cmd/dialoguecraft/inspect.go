package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/graph"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print the nodes, links, actors and conditions of a saved graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
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
	printGraph(cmd.OutOrStdout(), session.Graph())
	return nil
}

func printGraph(out io.Writer, g *graph.Cache) {
	fmt.Fprintf(out, "%s\n", g.Name())

	fmt.Fprintln(out, "Actors:")
	for _, id := range g.Actors() {
		if a, ok := g.Actor(id); ok {
			fmt.Fprintf(out, "  %s  %s (used by %d)\n", id, a.Name, g.ActorUsage(id))
		}
	}
	fmt.Fprintln(out, "Conditions:")
	for _, id := range g.Conditions() {
		if c, ok := g.Condition(id); ok {
			fmt.Fprintf(out, "  %s  %s [%s]\n", id, c.Name, c.Type)
		}
	}

	fmt.Fprintln(out, "Nodes:")
	for _, id := range g.AllNodes() {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		indent := "  "
		if n.Attached() {
			indent = "    "
		}
		fmt.Fprintf(out, "%s%s  %s <%s> at %s\n", indent, id, n.Name, n.Kind, formatPos(n.Rect.Position()))
		for _, cid := range g.Connectors(id) {
			c, ok := g.Connector(cid)
			if !ok {
				continue
			}
			fmt.Fprintf(out, "%s  %s  %s %s%s\n", indent, cid, c.Name, c.Side, peerList(g, c.Peers))
		}
	}
}

func peerList(g *graph.Cache, peers []entity.ID) string {
	if len(peers) == 0 {
		return ""
	}
	names := make([]string, 0, len(peers))
	for _, id := range peers {
		c, ok := g.Connector(id)
		if !ok {
			continue
		}
		owner := "?"
		if n, ok := g.Node(c.Owner); ok {
			owner = n.Name
		}
		names = append(names, fmt.Sprintf("%s.%s", owner, c.Name))
	}
	return " -> " + strings.Join(names, ", ")
}
