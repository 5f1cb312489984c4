// Package store owns the local SQLite database of the client: opening it,
// applying the versioned schema migrations and the destructive reset used
// when the schema cannot be repaired.
//
// Migrations are forward-only. Each one runs in its own transaction and is
// recorded in the migrations table (version, name, applied_at) inside that
// same transaction, so a failed run resumes from the last recorded version.
//
// Typical usage
//
//	db, err := store.Open(ctx, "inspect.db", store.Options{Logger: log})
//	if err != nil { ... }
//	defer db.Close()
package store
