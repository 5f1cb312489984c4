// Package submissions is the persistence layer for submissions and their
// answers.
//
// Update replaces the answer set wholesale (delete then reinsert inside one
// transaction), so callers must pass the complete list. Incremental editing
// goes through UpdateAnswer, which upserts on (submission_id, question_id).
//
// All timestamps are stored as fixed-width UTC strings, so ordering by
// created_at in SQL matches chronological order.
package submissions
