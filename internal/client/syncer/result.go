package syncer

import "time"

// ItemError ties a failure message to the submission it concerns.
type ItemError struct {
	SubmissionID string `json:"submissionId"`
	Error        string `json:"error"`
}

type SyncResult struct {
	SyncedCount int         `json:"syncedCount"`
	FailedCount int         `json:"failedCount"`
	Errors      []ItemError `json:"errors,omitempty"`
	FinishedAt  time.Time   `json:"finishedAt"`
}

type FetchResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors,omitempty"`
}

type CatalogResult struct {
	Forms     int `json:"forms"`
	Sites     int `json:"sites"`
	Inventory int `json:"inventory"`
}
