package services

import "errors"

var (
	ErrNotLoggedIn          = errors.New("no user logged in")
	ErrSubmissionCompleted  = errors.New("submission is already completed")
	ErrSubmissionIncomplete = errors.New("required questions are unanswered")
	ErrNotSynced            = errors.New("submission is not synced yet")
	ErrFormNotCached        = errors.New("form is not available offline")
)
