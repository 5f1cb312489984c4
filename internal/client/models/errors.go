package models

import "errors"

var (
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrUnknownQuestion = errors.New("question does not belong to form")
	ErrInvalidForm     = errors.New("invalid form")
	ErrIncorrectPair   = errors.New("metadata item must be name=value")
)
