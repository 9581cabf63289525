// Package server wires configuration, storage, the content model and the
// HTTP endpoint into a runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/duncanmcclean/guest-entries/internal/cryptox"
	"github.com/duncanmcclean/guest-entries/internal/logging"
	"github.com/duncanmcclean/guest-entries/internal/server/blueprints"
	"github.com/duncanmcclean/guest-entries/internal/server/config"
	"github.com/duncanmcclean/guest-entries/internal/server/content"
	"github.com/duncanmcclean/guest-entries/internal/server/events"
	"github.com/duncanmcclean/guest-entries/internal/server/guestentries"
	"github.com/duncanmcclean/guest-entries/internal/server/httpserver"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/repomanager"
	"github.com/duncanmcclean/guest-entries/internal/server/sites"
	"github.com/duncanmcclean/guest-entries/internal/server/storage"
)

// entryStore is what both content stores provide.
type entryStore interface {
	guestentries.EntryStore
	guestentries.AssetRegistry
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	store   entryStore
	service *guestentries.Service
	http    *httpserver.HTTPServer
}

// sqlOpen and newRepositoryManager are seams for tests.
var (
	sqlOpen              = sql.Open
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	model, err := blueprints.Load(c.ContentModelPath)
	if err != nil {
		return nil, fmt.Errorf("content model init error: %w", err)
	}

	sealer, err := cryptox.NewSealer([]byte(c.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("seal init error: %w", err)
	}

	disks, err := newDisks(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	validators := guestentries.NewValidatorRegistry()
	for name, rules := range model.Validators() {
		if err := validators.RegisterRules(name, rules); err != nil {
			return nil, fmt.Errorf("validator %s: %w", name, err)
		}
	}

	// The store is opened last so no earlier failure leaves a connection behind.
	st, db, err := newStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	dispatcher := events.NewDispatcher(logger)
	dispatcher.Subscribe(events.LogListener(logger))

	svc := guestentries.NewService(guestentries.Options{
		Collections:       c.Collections,
		Honeypot:          c.Honeypot,
		Insecure:          c.DisableFormParameterValidation,
		RevisionsEnabled:  c.RevisionsEnabled,
		AllowedExtensions: c.AllowedExtensions,
	}, guestentries.Dependencies{
		Store:      st,
		Assets:     st,
		Schema:     model,
		Disks:      disks,
		Sites:      sites.NewRegistry(model.Sites(), model.DefaultSite()),
		Notifier:   dispatcher,
		Opener:     sealer,
		Validators: validators,
		Logger:     logger,
	})

	hs := httpserver.NewHTTPServer(c.EndpointAddrHTTP, logger, svc, httpserver.Options{
		RoutePrefix:       c.RoutePrefix,
		MaxUploadBytes:    c.MaxUploadBytes,
		ReadHeaderTimeout: c.ReadHeaderTimeout,
	})

	logger.Info(ctx, "app initialised",
		"collections", len(c.Collections),
		"disks", disks.Names(),
		"database", db != nil,
	)

	return &App{config: c, logger: logger, db: db, store: st, service: svc, http: hs}, nil
}

// newDisks registers the "local" disk and, when a bucket is configured,
// the "s3" disk.
func newDisks(ctx context.Context, c *config.Config) (*storage.Manager, error) {
	m := storage.NewManager()

	local, err := storage.NewLocalDisk(c.LocalStorageRoot)
	if err != nil {
		return nil, err
	}
	m.Register("local", local)

	if c.S3Bucket != "" {
		s3, err := storage.NewS3Disk(ctx, storage.S3Options{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, err
		}
		m.Register("s3", s3)
	}
	return m, nil
}

// newStore opens PostgreSQL and migrates it, or falls back to the in-memory
// store when no DSN is configured.
func newStore(ctx context.Context, c *config.Config) (entryStore, *sql.DB, error) {
	if c.DatabaseDSN == "" {
		return content.NewMemoryStore(), nil, nil
	}

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return content.NewPostgresStore(db, rm), db, nil
}

// Handler exposes the HTTP routes without starting a listener.
func (app *App) Handler() http.Handler {
	return app.http.Handler()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
