// Package logging is the structured logger shared by the field client and the
// sync backend. The client writes to a rotating file (see NewFileLogger) so the
// REPL stays readable; the server writes JSON to stdout.
package logging

import "context"

// Logger takes a message plus alternating key/value pairs:
//
//	log.Info(ctx, "sync finished", "synced", n, "failed", m)
//
// Pairs attached to ctx with ContextWith are logged as well.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for per-item failures the caller recovers from, such as a
	// submission rejected by the backend.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child that prefixes every record with args, typically
	// "module", "<component>".
	With(args ...any) Logger
}
