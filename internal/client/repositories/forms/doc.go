// Package forms persists immutable form snapshots (form, steps, questions
// and user assignments) in the local SQLite store.
//
// Forms are never edited locally. Sync replaces them wholesale through
// Replace or ReplaceAll; submissions are not tied to forms by a foreign key,
// so replacing a form never touches submitted data.
package forms
