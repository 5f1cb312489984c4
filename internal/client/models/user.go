package models

import "time"

// User is the locally cached identity of someone who logged in on this device.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}
