// Package cli provides the interactive field client for tower inspections.
//
// It wires configuration, the local SQLite store, the server gateway, the
// sync orchestrator and the services into a REPL that keeps working while
// the backend is unreachable. Typical flow: log in once while online (forms
// and sites are cached), fill submissions offline, complete them, and let
// the background watcher push the queue when connectivity returns.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL and Syncer for details.
package cli
