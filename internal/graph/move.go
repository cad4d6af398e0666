package graph

import (
	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

// Move places a top-level node with its top-left corner at pos, clamped so
// the node stays on the canvas. A main node drags its option column along
// and is clamped so the whole column stays on the canvas.
func (c *Cache) Move(id entity.ID, pos geom.Vec2) error {
	n, ok := c.node(id)
	if !ok {
		return missing("node", id)
	}
	if n.Attached() {
		return invalid("option %s moves with its main node; detach it first", id)
	}

	bounds := n.Rect
	if n.Kind == registry.NodeMain {
		bounds = c.columnBounds(n)
	}
	target := geom.Vec2{
		X: clamp(pos.X, 0, c.layout.Canvas.X-bounds.W),
		Y: clamp(pos.Y, 0, c.layout.Canvas.Y-bounds.H),
	}
	delta := target.Sub(n.Rect.Position())
	if delta == (geom.Vec2{}) {
		return nil
	}

	n.Rect = n.Rect.Translate(delta)
	c.touch(n.id)
	if n.Kind == registry.NodeMain {
		c.repackOptions(n)
	}
	c.relayout(n, true)
	return nil
}

// columnBounds spans a main node and its stacked options.
func (c *Cache) columnBounds(main *Node) geom.Rect {
	bounds := main.Rect
	for _, id := range main.Options.Items() {
		if opt, ok := c.node(id); ok {
			bounds.W = max(bounds.W, opt.Rect.XMax()-bounds.X)
			bounds.H = max(bounds.H, opt.Rect.YMax()-bounds.Y)
		}
	}
	return bounds
}
