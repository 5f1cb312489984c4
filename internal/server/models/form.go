package models

import (
	"encoding/json"
	"time"
)

// Form is a form definition as published to clients. Steps holds the JSON
// encoded step list exactly as it travels on the wire.
type Form struct {
	ID              string
	Name            string
	Description     string
	Version         int
	Steps           json.RawMessage
	AssignedUserIDs []string
	UpdatedAt       time.Time
}
