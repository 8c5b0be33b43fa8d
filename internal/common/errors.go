// Package common defines sentinel errors shared by the migrator, the store
// backends and the application runner. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Configuration errors.
	ErrMissingConnectionString = errors.New("connection string is not set")
	ErrUnknownBackend          = errors.New("unknown store backend")
	ErrInvalidIdentifier       = errors.New("invalid collection or field name")

	// Store errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyClosed   = errors.New("store already closed")

	// Migration errors.
	ErrRunAborted = errors.New("migration aborted")
)
