package graph

import (
	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

func (c *Cache) columnStart(main *Node) geom.Vec2 {
	return geom.Vec2{X: main.Rect.XMin(), Y: main.Rect.YMax() + c.layout.OptionSpacing}
}

// repackColumn stacks main's options below it and moves the insertion point
// past the last one. It does not relayout connectors.
func (c *Cache) repackColumn(main *Node) {
	pos := c.columnStart(main)
	for _, id := range main.Options.Items() {
		opt, ok := c.node(id)
		if !ok {
			continue
		}
		if opt.Rect.Position() != pos {
			opt.Rect = opt.Rect.MoveTo(pos)
			c.touch(opt.id)
		}
		pos.Y += opt.Rect.H + c.layout.OptionSpacing
	}
	if main.NextOption != pos {
		main.NextOption = pos
		c.touch(main.id)
	}
}

func (c *Cache) repackOptions(main *Node) {
	c.repackColumn(main)
	for _, id := range main.Options.Items() {
		if opt, ok := c.node(id); ok {
			c.relayout(opt, true)
		}
	}
	c.relayout(main, false)
}

// AttachTarget returns the main node whose next option slot contains pos,
// the drop zone for re-attaching a dragged option.
func (c *Cache) AttachTarget(pos geom.Vec2) (entity.ID, bool) {
	size := registry.OptionNodeSize
	if t, ok := c.reg.Node(registry.NodeOption); ok {
		size = t.Size
	}
	for _, id := range c.rootEntity().Nodes.Items() {
		n, ok := c.node(id)
		if !ok || n.Kind != registry.NodeMain {
			continue
		}
		if geom.NewRect(n.NextOption, size).Contains(pos) {
			return n.id, true
		}
	}
	return entity.Nil, false
}

// AttachOption moves a detached option out of the top-level set and into
// main's option column.
func (c *Cache) AttachOption(optionID, mainID entity.ID) error {
	opt, ok := c.node(optionID)
	if !ok || opt.Kind != registry.NodeOption {
		return missing("option", optionID)
	}
	main, ok := c.node(mainID)
	if !ok || main.Kind != registry.NodeMain {
		return missing("main node", mainID)
	}
	if opt.Attached() {
		return invalid("option %s is already attached to %s", opt.id, opt.Main)
	}
	for _, id := range opt.Connectors.Items() {
		if conn, ok := c.connector(id); ok && conn.Kind == registry.ConnectorInput {
			return invalid("option %s owns input connector %s and cannot be attached", opt.id, id)
		}
	}

	root := c.rootEntity()
	if err := root.Nodes.Remove(opt.id); err != nil {
		return rejectedBy("attach option", err)
	}
	opt.Main = main.id
	opt.Name = main.Options.Add(opt.id, opt.Name)
	c.touch(root.id, opt.id, main.id)
	c.repackOptions(main)
	return nil
}

// DetachOption returns an attached option to the top-level set, offset by
// (50, 50) from where it stood.
func (c *Cache) DetachOption(optionID entity.ID) error {
	opt, ok := c.node(optionID)
	if !ok || opt.Kind != registry.NodeOption {
		return missing("option", optionID)
	}
	if !opt.Attached() {
		return invalid("option %s is not attached", opt.id)
	}
	main, ok := c.node(opt.Main)
	if !ok {
		return missing("main node", opt.Main)
	}
	if err := main.Options.Remove(opt.id); err != nil {
		return rejectedBy("detach option", err)
	}
	root := c.rootEntity()
	opt.Main = entity.Nil
	opt.Rect = c.clampRect(opt.Rect.Translate(duplicateOffset))
	opt.Name = root.Nodes.Add(opt.id, opt.Name)
	c.touch(root.id, opt.id, main.id)
	c.repackOptions(main)
	c.relayout(opt, true)
	return nil
}

// allNodes returns top-level nodes followed by attached options, in order.
func (c *Cache) allNodes() []*Node {
	var out []*Node
	var mains []*Node
	for _, id := range c.rootEntity().Nodes.Items() {
		n, ok := c.node(id)
		if !ok {
			continue
		}
		out = append(out, n)
		if n.Kind == registry.NodeMain {
			mains = append(mains, n)
		}
	}
	for _, main := range mains {
		for _, id := range main.Options.Items() {
			if opt, ok := c.node(id); ok {
				out = append(out, opt)
			}
		}
	}
	return out
}
