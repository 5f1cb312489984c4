// Package files provides the client-side persistence layer for file
// attachment records.
//
// # Overview
//
// A FileAttachment row points at bytes stored in the local byte store
// (LocalPath) and, once synced, at the object key on the server (RemotePath).
// The SQLite implementation works over a dbx.DBTX, so it composes inside
// transactions opened by the services.
//
// Typical Usage
//
//	repo := files.NewSQLiteRepository(db)
//	_ = repo.Create(ctx, &att)
//	list, _ := repo.FindBySubmission(ctx, submissionID)
//	_ = repo.Update(ctx, &synced)
//
// Deleting a row does not remove bytes from disk; see services.FileService.
package files
