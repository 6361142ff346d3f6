// Package app wires Shiori together: the SQLite store, the channel state
// cache, the module registry, the host and the Matrix adapter, plus the
// optional health server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/Shiori/common/redact"
	"github.com/bdobrica/Shiori/common/version"
	"github.com/bdobrica/Shiori/internal/shiori/channelstate"
	"github.com/bdobrica/Shiori/internal/shiori/commands"
	"github.com/bdobrica/Shiori/internal/shiori/host"
	"github.com/bdobrica/Shiori/internal/shiori/matrix"
	"github.com/bdobrica/Shiori/internal/shiori/module"
	"github.com/bdobrica/Shiori/internal/shiori/store"
)

// App is the running bot.
type App struct {
	cfg       *Config
	store     *store.Store
	matrix    *matrix.Client
	host      *host.Host
	validator *commands.Validator
	health    *HealthServer
}

// New opens the database and builds every component. Nothing talks to the
// homeserver until Run.
func New(cfg *Config) (*App, error) {
	logger := slog.Default()

	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	schemaVersion, _ := db.SchemaVersion()
	logger.Info("database ready", "path", cfg.DatabasePath, "schema_version", schemaVersion)

	redactor := redact.New(cfg.Matrix.AccessToken)

	mcfg := cfg.Matrix
	mcfg.Sync = db
	mcfg.Redactor = redactor
	mcfg.Logger = logger.With("component", "matrix")
	mx, err := matrix.New(mcfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	registry, err := module.NewRegistry(buildModules(cfg.Modules)...)
	if err != nil {
		db.Close()
		return nil, err
	}

	hcfg := cfg.Host
	hcfg.Redactor = redactor
	states := channelstate.New(db, logger.With("component", "channelstate"))
	h, err := host.New(hcfg, states, registry, mx, db, logger.With("component", "host"))
	if err != nil {
		db.Close()
		return nil, err
	}

	validator, err := commands.NewValidator(h.Info().TopCommand, h.Commands())
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		store:     db,
		matrix:    mx,
		host:      h,
		validator: validator,
	}
	if cfg.HTTPAddr != "" {
		a.health = NewHealthServer(cfg.HTTPAddr, a)
	}
	return a, nil
}

// Run joins the configured rooms and serves events until ctx is cancelled
// or a component fails.
func (a *App) Run(ctx context.Context) error {
	slog.Info("starting", "version", version.Info(), "modules", a.ModuleIDs(),
		"prefix", a.host.Info().Prefix, "command", a.host.Info().TopCommand)

	if err := a.matrix.Start(ctx, a.host, a.validator); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.matrix.Run(gctx) })
	if a.health != nil {
		g.Go(func() error { return a.health.Serve(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("stopped")
	return err
}

// Stop ends syncing and closes the database.
func (a *App) Stop() {
	a.matrix.Stop()
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close database", "err", err)
	}
}

// ChannelCount implements statusProvider.
func (a *App) ChannelCount() int { return a.host.ChannelCount() }

// PersistedChannels implements statusProvider.
func (a *App) PersistedChannels(ctx context.Context) (int, error) {
	return a.store.ChannelCount(ctx)
}

// AuditLog implements statusProvider.
func (a *App) AuditLog(ctx context.Context, limit int) ([]*store.AuditEntry, error) {
	return a.store.GetAuditLog(ctx, limit)
}

// AuditByTrace implements statusProvider.
func (a *App) AuditByTrace(ctx context.Context, traceID string) ([]*store.AuditEntry, error) {
	return a.store.GetAuditByTrace(ctx, traceID)
}

// ModuleIDs implements statusProvider.
func (a *App) ModuleIDs() []string {
	mods := a.host.Modules()
	ids := make([]string, 0, len(mods))
	for _, m := range mods {
		ids = append(ids, m.ID())
	}
	return ids
}
