// Package api is the client's gateway to the sync backend.
//
// HTTPClient speaks the JSON REST contract from package wire and maps
// transport failures onto a small set of sentinels so callers can tell
// "offline" from "rejected". HealthProber answers the cheaper question of
// whether the backend is reachable at all, using the standard gRPC health
// protocol.
package api
