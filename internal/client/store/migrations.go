package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

// UnknownUserID fills submissions.user_id when the legacy row cannot be
// attributed to anyone.
const UnknownUserID = "unknown"

// Migrations is the shipped schema history. Append only.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_core_tables", Up: execAll(coreTables...)},
		{Version: 2, Name: "create_files_table", Up: execAll(filesTable...)},
		{Version: 3, Name: "rebuild_submissions_sync_state", DisableForeignKeys: true, Up: rebuildSubmissions},
		{Version: 4, Name: "create_sync_queue", Up: execAll(syncQueueTable...)},
		{Version: 5, Name: "create_sites_and_inventory", Up: execAll(sitesTables...)},
		{Version: 6, Name: "add_question_metadata", Up: addColumnIfMissing("questions", "metadata", "TEXT")},
	}
}

func execAll(stmts ...string) func(ctx context.Context, tx dbx.DBTX) error {
	return func(ctx context.Context, tx dbx.DBTX) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

var coreTables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value BLOB
	)`,
	`CREATE TABLE IF NOT EXISTS forms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS form_steps (
		id TEXT PRIMARY KEY,
		form_id TEXT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
		step_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		UNIQUE (form_id, step_number)
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		step_id TEXT NOT NULL REFERENCES form_steps(id) ON DELETE CASCADE,
		question_text TEXT NOT NULL,
		type TEXT NOT NULL,
		options TEXT,
		is_required INTEGER NOT NULL DEFAULT 0,
		order_number INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS form_assignments (
		form_id TEXT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		PRIMARY KEY (form_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		form_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		metadata TEXT NOT NULL DEFAULT '{}',
		started_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT 'null',
		file_ids TEXT NOT NULL DEFAULT '[]',
		UNIQUE (submission_id, question_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_form_steps_form ON form_steps(form_id)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_step ON questions(step_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_form ON submissions(form_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_submission ON answers(submission_id)`,
}

var filesTable = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		step_id TEXT NOT NULL,
		question_id TEXT,
		local_path TEXT NOT NULL,
		remote_path TEXT,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_submission ON files(submission_id)`,
	`CREATE INDEX IF NOT EXISTS idx_files_question ON files(question_id)`,
	`CREATE INDEX IF NOT EXISTS idx_files_sync_status ON files(sync_status)`,
}

const rebuiltSubmissionsTable = `
	CREATE TABLE submissions_new (
		id TEXT PRIMARY KEY,
		form_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		started_at TEXT NOT NULL,
		completed_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		synced_at TEXT,
		sync_error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`

// Legacy status to the completed_at/sync_status pair:
// synced keeps synced and gets synced_at, completed and synced get
// completed_at = updated_at, everything else becomes a pending draft.
// user_id comes from the form's assignments, UnknownUserID if there is none.
const copySubmissions = `
	INSERT INTO submissions_new
		(id, form_id, user_id, metadata, started_at, completed_at, sync_status, synced_at, sync_error, created_at, updated_at)
	SELECT
		s.id,
		s.form_id,
		COALESCE(
			(SELECT fa.user_id FROM form_assignments fa WHERE fa.form_id = s.form_id ORDER BY fa.user_id LIMIT 1),
			'` + UnknownUserID + `'
		),
		s.metadata,
		s.started_at,
		CASE WHEN s.status IN ('completed', 'synced') THEN s.updated_at END,
		CASE WHEN s.status = 'synced' THEN 'synced' ELSE 'pending' END,
		CASE WHEN s.status = 'synced' THEN s.updated_at END,
		'',
		s.created_at,
		s.updated_at
	FROM submissions s`

var submissionIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_submissions_form ON submissions(form_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_sync ON submissions(sync_status, completed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at)`,
}

func rebuildSubmissions(ctx context.Context, tx dbx.DBTX) error {
	done, err := hasColumn(ctx, tx, "submissions", "sync_status")
	if err != nil {
		return err
	}
	if done {
		return execAll(submissionIndexes...)(ctx, tx)
	}

	steps := []struct {
		what string
		sql  string
	}{
		{"drop leftover shadow table", `DROP TABLE IF EXISTS submissions_new`},
		{"create shadow table", rebuiltSubmissionsTable},
		{"copy rows", copySubmissions},
		{"drop old table", `DROP TABLE submissions`},
		{"rename shadow table", `ALTER TABLE submissions_new RENAME TO submissions`},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("%s: %w", s.what, err)
		}
	}
	if err := execAll(submissionIndexes...)(ctx, tx); err != nil {
		return fmt.Errorf("recreate indexes: %w", err)
	}
	return nil
}

var syncQueueTable = []string{
	`CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		processed_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_entity ON sync_queue(entity_type, entity_id)`,
}

var sitesTables = []string{
	`CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`,
	inventoryTable("inventory_ee"),
	inventoryTable("inventory_ep"),
	`CREATE INDEX IF NOT EXISTS idx_inventory_ee_site ON inventory_ee(site_id)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_ep_site ON inventory_ep(site_id)`,
}

func inventoryTable(name string) string {
	return `CREATE TABLE IF NOT EXISTS ` + name + ` (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		serial_number TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 1
	)`
}

// addColumnIfMissing guards ALTER TABLE, which has no IF NOT EXISTS form.
func addColumnIfMissing(table, column, decl string) func(ctx context.Context, tx dbx.DBTX) error {
	return func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := hasColumn(ctx, tx, table, column)
		if err != nil || ok {
			return err
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
		return err
	}
}

func hasColumn(ctx context.Context, db dbx.DBTX, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}
