// Package app runs one migration: it opens the configured store, migrates
// every target collection in turn, records each report in the store's
// ledger and releases the store on every exit path.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/dmitrijs2005/credmigrator/internal/config"
	"github.com/dmitrijs2005/credmigrator/internal/hashing"
	"github.com/dmitrijs2005/credmigrator/internal/logging"
	"github.com/dmitrijs2005/credmigrator/internal/migrator"
	"github.com/dmitrijs2005/credmigrator/internal/store"
	"github.com/dmitrijs2005/credmigrator/internal/store/mongostore"
	"github.com/dmitrijs2005/credmigrator/internal/store/sqlstore"
	"github.com/google/uuid"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitFatal: bad configuration or the store could not be reached.
	// No record was touched.
	ExitFatal = 1
	// ExitIncomplete: the run finished but some records were not migrated.
	ExitIncomplete = 2
)

// Opener acquires the store for a run.
type Opener func(ctx context.Context, cfg *config.Config) (store.Store, error)

type App struct {
	config *config.Config
	logger logging.Logger
	open   Opener
	hasher hashing.Hasher
	runID  func() string
}

func NewApp(cfg *config.Config, logger logging.Logger) *App {
	return &App{
		config: cfg,
		logger: logger,
		open:   OpenStore,
		hasher: hashing.NewBcryptHasher(cfg.BcryptCost),
		runID:  uuid.NewString,
	}
}

// OpenStore connects to the backend selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.Database, mongostore.Fields{
			Identifier: cfg.IdentifierField,
			Credential: cfg.CredentialField,
		}, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendPostgres:
		st, err := sqlstore.Open(ctx, cfg.DatabaseURI, sqlstore.Columns{
			Key:        cfg.KeyField,
			Identifier: cfg.IdentifierField,
			Credential: cfg.CredentialField,
		}, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownBackend, cfg.Backend)
	}
}

// WithSignals returns a context cancelled on SIGINT, SIGTERM or SIGQUIT.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run performs the migration and returns the process exit code.
func (app *App) Run(ctx context.Context) int {
	runID := app.runID()
	log := app.logger.With("run_id", runID)

	if err := app.config.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", "error", err)
		return ExitFatal
	}

	st, err := app.open(ctx, app.config)
	if err != nil {
		log.Error(ctx, "store connection failed", "backend", app.config.Backend, "error", err)
		return ExitFatal
	}
	log.Info(ctx, "connected to store", "backend", app.config.Backend)

	defer func() {
		if err := st.Close(context.WithoutCancel(ctx)); err != nil {
			log.Error(ctx, "store disconnect failed", "error", err)
			return
		}
		log.Info(ctx, "disconnected from store")
	}()

	m := migrator.New(app.hasher, log, migrator.Options{
		BatchSize:     app.config.BatchSize,
		RecordTimeout: app.config.RecordTimeout,
		FailFast:      app.config.FailFast,
	})

	exit := ExitOK
	for _, t := range Targets(app.config) {
		if ctx.Err() != nil {
			log.Warn(ctx, "run cancelled, remaining targets not migrated", "target", t.Name)
			exit = ExitIncomplete
			break
		}

		coll, err := st.Collection(t.Collection)
		if err != nil {
			log.Error(ctx, "collection unavailable", "target", t.Name, "collection", t.Collection, "error", err)
			exit = ExitIncomplete
			continue
		}

		report, err := m.Migrate(ctx, coll, t.DefaultPlaintext)
		if err != nil || !report.Complete() {
			exit = ExitIncomplete
		}

		if err := st.Ledger().Record(context.WithoutCancel(ctx), report.Run(runID, t.Name)); err != nil {
			log.Warn(ctx, "run not recorded in ledger", "target", t.Name, "error", err)
		}
	}

	return exit
}
