package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

var (
	ErrInvalidSequence = errors.New("migrations must be numbered 1..N without gaps")
	ErrForeignKeyCheck = errors.New("foreign key check failed")
)

// Migration is one forward schema change.
type Migration struct {
	Version int
	Name    string
	// DisableForeignKeys runs the migration with enforcement switched off on
	// its connection. Needed for table rebuilds, where dropping the old table
	// would otherwise cascade into child rows.
	DisableForeignKeys bool
	Up                 func(ctx context.Context, tx dbx.DBTX) error
}

// AppliedMigration is a row of the migrations table.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

type Migrator struct {
	db         *sql.DB
	migrations []Migration
	log        logging.Logger
	now        func() time.Time
}

func NewMigrator(db *sql.DB, migrations []Migration, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{
		db:         db,
		migrations: migrations,
		log:        log.With("module", "migrator"),
		now:        time.Now,
	}
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`

func (m *Migrator) ensureTable(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// CurrentVersion returns the highest recorded version, 0 for a fresh store.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var v int
	if err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Applied lists recorded migrations in version order.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, `SELECT version, name, applied_at FROM migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		var at string
		if err := rows.Scan(&a.Version, &a.Name, &at); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		if a.AppliedAt, err = common.ParseTime(at); err != nil {
			return nil, fmt.Errorf("parse applied_at of %d: %w", a.Version, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return out, nil
}

func (m *Migrator) validate() error {
	for i, mg := range m.migrations {
		if mg.Version != i+1 {
			return fmt.Errorf("%w: position %d has version %d", ErrInvalidSequence, i+1, mg.Version)
		}
		if mg.Up == nil {
			return fmt.Errorf("migration %d (%s) has no body", mg.Version, mg.Name)
		}
	}
	return nil
}

// Apply runs every migration above the recorded version in ascending order
// and returns what it applied. The first failure stops the run; migrations
// applied before it stay applied.
func (m *Migrator) Apply(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	var applied []AppliedMigration
	for _, mg := range m.migrations {
		if mg.Version <= current {
			continue
		}
		m.log.Info(ctx, "applying migration", "version", mg.Version, "name", mg.Name)
		a, err := m.applyOne(ctx, mg)
		if err != nil {
			m.log.Error(ctx, "migration failed", "version", mg.Version, "name", mg.Name, "error", err)
			return applied, fmt.Errorf("migration %d (%s): %w", mg.Version, mg.Name, err)
		}
		applied = append(applied, a)
	}
	return applied, nil
}

func (m *Migrator) applyOne(ctx context.Context, mg Migration) (AppliedMigration, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return AppliedMigration{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if mg.DisableForeignKeys {
		// Must happen outside the transaction, SQLite ignores it inside one.
		if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys=OFF`); err != nil {
			return AppliedMigration{}, fmt.Errorf("disable foreign keys: %w", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), `PRAGMA foreign_keys=ON`)
		}()
	}

	a := AppliedMigration{Version: mg.Version, Name: mg.Name, AppliedAt: m.now().UTC()}

	err = dbx.WithTx(ctx, conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := mg.Up(ctx, tx); err != nil {
			return err
		}
		if mg.DisableForeignKeys {
			if err := foreignKeyCheck(ctx, tx); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			a.Version, a.Name, common.FormatTime(a.AppliedAt))
		if err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
		return nil
	})
	if err != nil {
		return AppliedMigration{}, err
	}
	return a, nil
}

func foreignKeyCheck(ctx context.Context, tx dbx.DBTX) error {
	rows, err := tx.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var table, parent string
		var rowid sql.NullInt64
		var fkid int
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("scan foreign key violation: %w", err)
		}
		return fmt.Errorf("%w: %s row %d references missing %s", ErrForeignKeyCheck, table, rowid.Int64, parent)
	}
	return rows.Err()
}
