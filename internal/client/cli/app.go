package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/config"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/sites"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/syncqueue"
	"github.com/dmitrijs2005/inspectsync/internal/client/services"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/client/syncer"
	"github.com/dmitrijs2005/inspectsync/internal/filex"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Syncer is the part of the orchestrator the REPL drives.
type Syncer interface {
	Restore(ctx context.Context) error
	Status() syncer.Status
	Ping(ctx context.Context) error
	SyncSubmissions(ctx context.Context) (syncer.SyncResult, error)
	FetchRemote(ctx context.Context) (syncer.FetchResult, error)
	SyncCatalog(ctx context.Context) (syncer.CatalogResult, error)
	SyncAll(ctx context.Context) (syncer.Summary, error)
	Watch(ctx context.Context, interval time.Duration) error
}

type App struct {
	config *config.Config
	log    logging.Logger

	authService       services.AuthService
	submissionService services.SubmissionService
	fileService       services.FileService
	catalogService    services.CatalogService
	exportService     services.ExportService
	syncer            Syncer

	user   *models.User
	reader *bufio.Reader
	out    io.Writer

	mu      sync.Mutex
	closers []io.Closer
}

// NewApp opens the local store and wires every service on top of it.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if _, err := filex.EnsureDir(c.DataDir); err != nil {
		return nil, fmt.Errorf("data dir error: %w", err)
	}

	log, logCloser := logging.NewFileLogger(logging.FileOptions{
		Path:       c.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      slog.LevelInfo,
	})

	db, err := store.Open(ctx, c.DBPath, store.Options{Logger: log})
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := api.NewHTTPClient(c.ServerURL, c.RequestTimeout, log)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, err
	}

	prober, err := api.NewHealthProber(c.HealthAddr, 0)
	if err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, err
	}

	a := newApp(c, db, apiClient, prober, log)
	a.closers = []io.Closer{prober, db, logCloser}
	return a, nil
}

func newApp(c *config.Config, db *sql.DB, apiClient api.Client, prober api.Prober, log logging.Logger) *App {
	meta := metadata.NewSQLiteRepository(db)
	formsRepo := forms.NewSQLiteRepository(db)

	subSyncer := syncer.NewSubmissionSyncer(
		submissions.NewSQLiteRepository(db),
		files.NewSQLiteRepository(db),
		syncqueue.NewSQLiteRepository(db),
		formsRepo,
		apiClient,
		log,
	)
	catSyncer := syncer.NewCatalogSyncer(formsRepo, sites.NewSQLiteRepository(db), meta, apiClient, log)

	return &App{
		config:            c,
		log:               log,
		authService:       services.NewAuthService(apiClient, prober, db),
		submissionService: services.NewSubmissionService(db, log),
		fileService:       services.NewFileService(db, c.FilesDir, log),
		catalogService:    services.NewCatalogService(catSyncer, db),
		exportService:     services.NewExportService(apiClient, db, c.ExportsDir, log),
		syncer:            syncer.NewOrchestrator(subSyncer, catSyncer, meta, prober, log),
		reader:            bufio.NewReader(os.Stdin),
		out:               os.Stdout,
	}
}

// Close releases the store, the health connection and the log file.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run restores the previous session, starts the connectivity watcher and
// blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.syncer.Restore(ctx); err != nil {
		a.log.Warn(ctx, "restore sync state failed", "error", err)
	}
	if u, err := a.authService.RestoreSession(ctx); err == nil {
		a.user = u
	}

	go func() {
		_ = a.syncer.Watch(ctx, a.config.OnlineCheckInterval)
	}()

	printlnFn("Welcome to inspectsync (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) mode() Mode {
	if a.syncer.Status().Online {
		return ModeOnline
	}
	return ModeOffline
}

func (a *App) getStatus() string {
	s := string(a.mode())
	if a.user != nil {
		s = a.user.Email + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}
