package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/esdesk/internal/adapter/driven/aesgcm"
	"github.com/ericfisherdev/esdesk/internal/adapter/driven/elasticsearch"
	"github.com/ericfisherdev/esdesk/internal/adapter/driven/keyfile"
	"github.com/ericfisherdev/esdesk/internal/adapter/driven/keyring"
	sqliteadapter "github.com/ericfisherdev/esdesk/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/esdesk/internal/application"
	"github.com/ericfisherdev/esdesk/internal/config"
)

// app holds the wired services for one process.
type app struct {
	cfg       *config.Config
	layout    keyfile.Layout
	db        *sqliteadapter.DB
	migration application.MigrationReport
	endpoints *application.EndpointService
	console   *application.ConsoleService
	logger    *slog.Logger
}

// bootstrap brings storage up in dependency order: legacy layout, key,
// database, schema, legacy passwords. Only then are services built.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	// 1. Resolve and relocate the on-disk layout.
	layout, err := keyfile.ResolveLayout(cfg.DataDir, cfg.LegacyDir)
	if err != nil {
		return nil, err
	}
	if err := layout.RelocateLegacy(keyfile.DefaultMove(logger), logger); err != nil {
		return nil, err
	}
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	// 2. Load or create the encryption key. A bad key file is fatal.
	key, err := keyfile.NewManager(layout.KeyPath(), logger).LoadOrCreate()
	if err != nil {
		return nil, err
	}

	// 3. Open database and run migrations on the writer connection.
	db, err := sqliteadapter.NewDB(ctx, layout.DBPath())
	if err != nil {
		return nil, err
	}
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("database ready", "path", db.Path(), "schema_version", schemaVersion)

	// 4. Move legacy passwords into encrypted payloads.
	vault := application.NewCredentialVault(aesgcm.New(), key, logger)
	migrator := application.NewLegacyMigrator(
		sqliteadapter.NewLegacyRepo(db),
		keyring.NewStore(keyring.ServiceName),
		vault,
		logger,
	)
	report, err := migrator.Run(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("legacy password migration: %w", err)
	}

	// 5. Wire services.
	store := sqliteadapter.NewEndpointRepo(db)
	factory := elasticsearch.NewFactory(cfg.RequestTimeout, logger)
	clients := application.NewClientProvider(store, vault, factory, logger)

	return &app{
		cfg:       cfg,
		layout:    layout,
		db:        db,
		migration: report,
		endpoints: application.NewEndpointService(store, vault, factory, clients, cfg.ProbeConcurrency, logger),
		console:   application.NewConsoleService(clients),
		logger:    logger,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}
