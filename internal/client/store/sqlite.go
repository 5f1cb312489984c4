package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/logging"

	_ "modernc.org/sqlite"
)

type Options struct {
	Logger logging.Logger
	// Migrations overrides the shipped list. Tests only.
	Migrations []Migration
}

// DSN adds the pragmas every connection needs.
func DSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open opens the database at path and brings its schema up to date. When the
// migrations fail the store is wiped with DropAllTables and migrated once more
// from scratch; a second failure is returned.
//
// The pool is limited to a single connection, so callers must finish reading
// rows before issuing the next statement.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.With("module", "store")

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrations := opts.Migrations
	if migrations == nil {
		migrations = Migrations()
	}
	m := NewMigrator(db, migrations, log)

	if _, err := m.Apply(ctx); err != nil {
		log.Warn(ctx, "schema migration failed, resetting local store", "error", err)

		if derr := DropAllTables(ctx, db); derr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("reset after failed migration (%v): %w", err, derr)
		}
		if _, err := m.Apply(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate after reset: %w", err)
		}
	}

	v, err := m.CurrentVersion(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info(ctx, "database ready", "path", path, "version", v)
	return db, nil
}

// DropAllTables removes every user table (with its indexes), the migrations
// table included. All data is lost.
func DropAllTables(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys=OFF`); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `PRAGMA foreign_keys=ON`)
	}()

	tables, err := userTables(ctx, conn)
	if err != nil {
		return err
	}

	for _, t := range tables {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, t)); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}

func userTables(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
