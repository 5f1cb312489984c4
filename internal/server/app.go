// Package server wires the sync backend: PostgreSQL with goose migrations,
// S3 object storage, the REST API and the gRPC health service.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/server/config"
	gs "github.com/dmitrijs2005/inspectsync/internal/server/grpc"
	"github.com/dmitrijs2005/inspectsync/internal/server/httpapi"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/inspectsync/internal/server/services"
	"github.com/dmitrijs2005/inspectsync/internal/server/storage"
	"golang.org/x/sync/errgroup"
)

const dbCheckInterval = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

// NewApp opens the database, applies migrations and builds both servers.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	us := services.NewUserService(db, rm, c)
	ss := services.NewSyncService(db, rm, store, logger)
	cs := services.NewCatalogService(db, rm)
	es := services.NewExportService(db, rm, store)

	router := httpapi.NewRouter(logger.With("module", "http"), us, ss, cs, es)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: httpapi.NewServer(c.HTTPAddr, router, logger),
		grpcServer: gs.NewGRPCServer(c.GRPCAddr, logger),
	}, nil
}

// Run blocks until ctx is cancelled or one of the servers fails.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.httpServer.Run(ctx) })
	g.Go(func() error { return app.grpcServer.Run(ctx) })
	g.Go(func() error {
		app.watchDB(ctx)
		return nil
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(context.Background(), "server stopped", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// watchDB reports NOT_SERVING on the health endpoint while the database is
// unreachable, so clients stay offline instead of failing every push.
func (app *App) watchDB(ctx context.Context) {
	t := time.NewTicker(dbCheckInterval)
	defer t.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := app.db.PingContext(pctx)
			cancel()

			if ok := err == nil; ok != healthy {
				healthy = ok
				app.grpcServer.SetServing(ok)
				app.logger.Warn(ctx, "database health changed", "healthy", ok, "error", err)
			}
		}
	}
}
