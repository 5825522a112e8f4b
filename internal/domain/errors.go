package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrCannotDelete  = errors.New("cannot delete")
	ErrForbidden     = errors.New("forbidden")
	ErrTransient     = errors.New("temporarily unavailable")
	ErrUnimplemented = errors.New("not implemented")

	ErrProjectNotFound    = fmt.Errorf("project %w", ErrNotFound)
	ErrCredentialNotFound = fmt.Errorf("credential %w", ErrNotFound)
	ErrBackupNotFound     = fmt.Errorf("backup %w", ErrNotFound)
)
