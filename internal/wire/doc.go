// Package wire holds the JSON shapes exchanged between the field client and
// the sync backend. Field names are camelCase and timestamps are RFC 3339
// strings. Every response body is wrapped in an Envelope.
package wire
