// Package models defines the client-side entities of the inspection app:
// users, form snapshots, submissions with their answers, file attachments,
// sync queue items and the site inventory cache.
//
// Submission, FileAttachment and SyncQueueItem are value types. Their
// transition methods never mutate the receiver; they return an updated copy,
// so a caller holding an old value keeps seeing the old state.
package models
