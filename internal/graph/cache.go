package graph

import (
	"fmt"
	"log/slog"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/entityset"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/registry"
)

// Layout holds the canvas and spacing constants used by layout.
type Layout struct {
	Canvas           geom.Vec2
	ConnectorSpacing float64
	OptionSpacing    float64
}

func DefaultLayout() Layout {
	return Layout{
		Canvas:           geom.Vec2{X: 10000, Y: 10000},
		ConnectorSpacing: 5,
		OptionSpacing:    8,
	}
}

// Cache is the root aggregate. It owns the arena holding every entity of one
// dialogue graph and is the only way to mutate them. A Cache is not safe for
// concurrent use.
type Cache struct {
	arena  *entity.Arena
	root   entity.ID
	reg    *registry.Registry
	layout Layout
	log    *slog.Logger
	dirty  map[entity.ID]struct{}
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.log = logger
		}
	}
}

func WithLayout(layout Layout) Option {
	return func(c *Cache) {
		c.layout = layout
	}
}

func WithRegistry(reg *registry.Registry) Option {
	return func(c *Cache) {
		if reg != nil {
			c.reg = reg
		}
	}
}

func newCache(arena *entity.Arena, opts []Option) *Cache {
	c := &Cache{
		arena:  arena,
		reg:    registry.Default(),
		layout: DefaultLayout(),
		log:    slog.Default(),
		dirty:  make(map[entity.ID]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New returns a graph holding the reserved entities only: a Start node with
// its output, the Default Actor and the None condition.
func New(name string, opts ...Option) *Cache {
	c := newCache(entity.NewArena(), opts)
	root := &Root{
		id:         c.arena.Allocate(),
		Name:       name,
		Nodes:      newIDSet(),
		Actors:     newIDSet(entityset.WithReserved(1)),
		Conditions: newIDSet(entityset.WithReserved(1)),
	}
	c.arena.Put(root)
	c.root = root.id
	c.touch(root.id)
	c.ensureDefaults()
	return c
}

// Assemble wraps entities that were decoded or cloned into arena and
// repairs them (see heal). root must name a Root entity.
func Assemble(arena *entity.Arena, root entity.ID, opts ...Option) (*Cache, error) {
	if _, ok := entity.Lookup[*Root](arena, root); !ok {
		return nil, fmt.Errorf("%w: root %s is missing", entity.ErrReferenceIntegrity, root)
	}
	c := newCache(arena, opts)
	c.root = root
	c.heal()
	return c, nil
}

// Derive assembles another graph with the same registry, layout and logger.
func (c *Cache) Derive(arena *entity.Arena, root entity.ID) (*Cache, error) {
	return Assemble(arena, root, WithRegistry(c.reg), WithLayout(c.layout), WithLogger(c.log))
}

func (c *Cache) Root() entity.ID {
	return c.root
}

func (c *Cache) Lookup(id entity.ID) (entity.Entity, bool) {
	return c.arena.Get(id)
}

func (c *Cache) Arena() *entity.Arena {
	return c.arena
}

func (c *Cache) Registry() *registry.Registry {
	return c.reg
}

func (c *Cache) Layout() Layout {
	return c.layout
}

func (c *Cache) Logger() *slog.Logger {
	return c.log
}

func (c *Cache) Name() string {
	return c.rootEntity().Name
}

func (c *Cache) rootEntity() *Root {
	r, _ := entity.Lookup[*Root](c.arena, c.root)
	return r
}

func (c *Cache) node(id entity.ID) (*Node, bool) {
	return entity.Lookup[*Node](c.arena, id)
}

func (c *Cache) connector(id entity.ID) (*Connector, bool) {
	return entity.Lookup[*Connector](c.arena, id)
}

func (c *Cache) actor(id entity.ID) (*Actor, bool) {
	return entity.Lookup[*Actor](c.arena, id)
}

func (c *Cache) condition(id entity.ID) (*Condition, bool) {
	return entity.Lookup[*Condition](c.arena, id)
}

// Node returns the node stored under id. Callers must not modify it.
func (c *Cache) Node(id entity.ID) (*Node, bool) {
	return c.node(id)
}

func (c *Cache) Connector(id entity.ID) (*Connector, bool) {
	return c.connector(id)
}

func (c *Cache) Actor(id entity.ID) (*Actor, bool) {
	return c.actor(id)
}

func (c *Cache) Condition(id entity.ID) (*Condition, bool) {
	return c.condition(id)
}

// DefaultActor returns the id held in the reserved actor slot.
func (c *Cache) DefaultActor() entity.ID {
	id, _ := c.rootEntity().Actors.Get(0)
	return id
}

// NoneCondition returns the id held in the reserved condition slot.
func (c *Cache) NoneCondition() entity.ID {
	id, _ := c.rootEntity().Conditions.Get(0)
	return id
}

// StartNode returns the id of the single Start node.
func (c *Cache) StartNode() entity.ID {
	id, _ := c.rootEntity().Nodes.Find(func(id entity.ID) bool {
		n, ok := c.node(id)
		return ok && n.Kind == registry.NodeStart
	})
	return id
}

func (c *Cache) put(e entity.Entity) {
	c.arena.Put(e)
	c.touch(e.ID())
}

func (c *Cache) touch(ids ...entity.ID) {
	for _, id := range ids {
		if id != entity.Nil {
			c.dirty[id] = struct{}{}
		}
	}
}

// Dirty reports whether id changed since it was last marked clean.
func (c *Cache) Dirty(id entity.ID) bool {
	_, ok := c.dirty[id]
	return ok
}

func (c *Cache) MarkClean(id entity.ID) {
	delete(c.dirty, id)
}

// DirtyCount is the number of entities changed since last marked clean.
func (c *Cache) DirtyCount() int {
	return len(c.dirty)
}
