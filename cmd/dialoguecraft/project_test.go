package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"dialoguecraft/internal/config"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/logging"
	"dialoguecraft/internal/registry"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	st, err := openStore(ctx, config.StoreConfig{Driver: config.DriverMemory}, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close(ctx)

	if _, err := openStore(ctx, config.StoreConfig{Driver: "mongo"}, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestGraphOptions_Layout(t *testing.T) {
	cfg := config.Default("layout")
	cfg.Layout.CanvasWidth = 2000
	cfg.Layout.OptionSpacing = 20
	p := &project{cfg: cfg, log: logging.Discard()}

	session := p.newSession("layout")
	layout := session.Graph().Layout()
	if layout.Canvas.X != 2000 || layout.Canvas.Y != 10000 {
		t.Fatalf("unexpected canvas %+v", layout.Canvas)
	}
	if layout.OptionSpacing != 20 || layout.ConnectorSpacing != 5 {
		t.Fatalf("unexpected spacing %+v", layout)
	}
}

func TestPrintGraph(t *testing.T) {
	cfg := config.Default("print")
	p := &project{cfg: cfg, log: logging.Discard()}
	g := p.newSession("print").Graph()

	main, err := g.CreateNode(registry.NodeMain, geom.Vec2{X: 10, Y: 20})
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	in, err := g.AddConnector(main, registry.ConnectorInput)
	if err != nil {
		t.Fatalf("add connector: %v", err)
	}
	if err := g.Connect(g.Connectors(g.StartNode())[0], in); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var out bytes.Buffer
	printGraph(&out, g)
	text := out.String()
	for _, want := range []string{"print\n", "Default Actor (used by 1)", "None [None]", "MainNode <MainNode> at (10, 20)", "-> Start Node.Output"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}
