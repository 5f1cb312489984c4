// Package common defines shared constants and sentinel errors used across
// the client and server layers of inspectsync. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Validation / state errors surfaced to callers without retry.
	ErrValidation   = errors.New("validation error")
	ErrInvalidState = errors.New("invalid state transition")

	// Auth errors.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid email/password")
	ErrInternal           = errors.New("internal error")
)
