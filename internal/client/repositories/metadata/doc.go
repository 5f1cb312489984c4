// Package metadata persists loose client state as key/value pairs in the
// metadata table. Keys used by the services are declared as constants in
// this package.
package metadata
