// Package models defines server-side data models persisted in the database.
package models

import "time"

const (
	RoleInspector = "inspector"
	RoleAdmin     = "admin"
)

// User is an account allowed to log in. PasswordHash is argon2id over the
// password with Salt.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	Salt         []byte
	PasswordHash []byte
	CreatedAt    time.Time
}
