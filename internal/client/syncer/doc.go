// Package syncer moves data between the local store and the backend.
//
// SubmissionSyncer pushes completed submissions in one batch and pulls
// submissions created elsewhere. CatalogSyncer replaces the cached forms and
// sites. Each direction is protected by its own Guard so a second trigger
// while a run is in flight is refused instead of queued. Orchestrator ties
// them together and keeps the last outcome for display.
package syncer
