package core

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/config"
	"github.com/juanfuturochile/appstore.koplugin/internal/db"
	"github.com/juanfuturochile/appstore.koplugin/internal/jobs"
	"github.com/juanfuturochile/appstore.koplugin/internal/metrics"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/reconcile"
	"github.com/juanfuturochile/appstore.koplugin/internal/registry"
	"github.com/juanfuturochile/appstore.koplugin/internal/remote"
	"github.com/juanfuturochile/appstore.koplugin/internal/remote/github"
	"github.com/juanfuturochile/appstore.koplugin/internal/store"
	"github.com/juanfuturochile/appstore.koplugin/internal/websocket"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	Version string

	config    *config.Config
	db        *sql.DB
	store     *store.Store
	registry  *registry.Registry
	state     *catalog.StateStore
	remote    remote.Remote
	refresher *catalog.Refresher
	engine    *reconcile.Engine
	metrics   *metrics.Metrics
	wsHub     *websocket.Hub
	jobs      *jobs.JobManager
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running migrations.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	client := github.NewClient(github.Options{
		APIURL:     cfg.GitHub.APIURL,
		RawURL:     cfg.GitHub.RawURL,
		Token:      cfg.GitHub.Token,
		Timeout:    cfg.Timeout(),
		RetryCount: cfg.GitHub.RetryCount,
	})

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app := NewWithDeps(cfg, database, client)
	log.Info().Msg("Core application setup complete.")
	return app, nil
}

// NewWithDeps wires an App around an already migrated database and a
// remote. Tests use it with an in-memory database and a mock remote.
func NewWithDeps(cfg *config.Config, database *sql.DB, rm remote.Remote) *App {
	st := store.New(database)
	reg := registry.New(cfg.Registry.Path)
	m := metrics.New()

	queries := map[models.Kind]string{
		models.KindPlugin: cfg.Catalog.PluginQuery,
		models.KindPatch:  cfg.Catalog.PatchQuery,
	}
	for kind, q := range queries {
		if q == "" {
			queries[kind] = catalog.DefaultQueries[kind]
		}
	}

	app := &App{
		config:   cfg,
		db:       database,
		store:    st,
		registry: reg,
		state:    catalog.NewStateStore(cfg.BrowserState.Path),
		remote:   rm,
		refresher: catalog.NewRefresher(st, rm, catalog.RefreshOptions{
			Queries:         queries,
			PerPage:         cfg.Catalog.PerPage,
			MaxPages:        cfg.Catalog.MaxPages,
			IndexPatchFiles: cfg.Catalog.IndexPatchFiles,
			Metrics:         m,
		}),
		engine: reconcile.NewEngine(st, reg, rm, reconcile.Options{
			PluginsDir: cfg.Plugins.Path,
			PatchesDir: cfg.Patches.Path,
			Metrics:    m,
		}),
		metrics: m,
		wsHub:   websocket.NewHub(),
	}
	app.jobs = jobs.NewManager(app)
	jobs.RegisterAll(app.jobs)
	return app
}

func (a *App) Config() *config.Config            { return a.config }
func (a *App) DB() *sql.DB                       { return a.db }
func (a *App) Store() *store.Store               { return a.store }
func (a *App) Registry() *registry.Registry      { return a.registry }
func (a *App) BrowserState() *catalog.StateStore { return a.state }
func (a *App) Refresher() *catalog.Refresher     { return a.refresher }
func (a *App) Engine() *reconcile.Engine         { return a.engine }
func (a *App) Metrics() *metrics.Metrics         { return a.metrics }
func (a *App) WsHub() *websocket.Hub             { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager      { return a.jobs }

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.jobs != nil {
		a.jobs.CancelJob()
		a.jobs.Wait()
	}
	if a.db != nil {
		a.db.Close()
	}
}
