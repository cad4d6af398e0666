package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"dialoguecraft/internal/config"
	"dialoguecraft/internal/geom"
	"dialoguecraft/internal/graph"
	"dialoguecraft/internal/logging"
	"dialoguecraft/internal/persist"
	"dialoguecraft/internal/store"
	"dialoguecraft/internal/store/badger"
	"dialoguecraft/internal/store/memory"
	"dialoguecraft/internal/store/postgres"
	"dialoguecraft/internal/store/sqlite"
)

// project is the loaded config with its logger and open store.
type project struct {
	cfg   *config.ProjectConfig
	log   *slog.Logger
	store store.Store
}

func openProject(ctx context.Context) (*project, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, log: logger, store: st}, nil
}

func (p *project) Close(ctx context.Context) {
	if err := p.store.Close(ctx); err != nil {
		p.log.Warn("closing store", slog.String("error", err.Error()))
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverBadger:
		bc := badger.DefaultConfig(cfg.DSN)
		bc.Logger = logger
		st, err = badger.Open(bc)
	case config.DriverSQLite:
		st, err = sqlite.New(ctx, cfg.DSN)
	case config.DriverPostgres:
		st, err = postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}
	return st, nil
}

func (p *project) graphOptions() []graph.Option {
	layout := graph.DefaultLayout()
	if w := p.cfg.Layout.CanvasWidth; w > 0 {
		layout.Canvas.X = w
	}
	if h := p.cfg.Layout.CanvasHeight; h > 0 {
		layout.Canvas.Y = h
	}
	if s := p.cfg.Layout.ConnectorSpacing; s > 0 {
		layout.ConnectorSpacing = s
	}
	if s := p.cfg.Layout.OptionSpacing; s > 0 {
		layout.OptionSpacing = s
	}
	return []graph.Option{graph.WithLayout(layout), graph.WithLogger(p.log)}
}

// newSession starts a session on an empty graph.
func (p *project) newSession(name string) *persist.Session {
	g := graph.New(name, p.graphOptions()...)
	return persist.NewSession(g, p.store, persist.WithLogger(p.log))
}

// loadSession starts a session on the graph saved at path.
func (p *project) loadSession(ctx context.Context, path string) (*persist.Session, error) {
	s := p.newSession(p.cfg.Project)
	if err := s.Load(ctx, path); err != nil {
		return nil, err
	}
	return s, nil
}

func formatPos(v geom.Vec2) string {
	return fmt.Sprintf("(%g, %g)", v.X, v.Y)
}
