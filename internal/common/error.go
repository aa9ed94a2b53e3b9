// Package common defines shared sentinel errors used across the storage
// coordination layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Lookup errors.
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already exists")
	ErrNotEmpty    = errors.New("basket not empty")
	ErrInvalidName = errors.New("invalid name")

	// Coordinator outcomes: the operation aborted and the system is still
	// consistent (nothing happened, or compensation succeeded).
	ErrUploadFailed = errors.New("upload failed")
	ErrDeleteFailed = errors.New("delete failed")

	// Coordinator outcomes: a detected inconsistency persists and has been
	// flagged for audit. Never downgraded to a generic failure.
	ErrUploadDiverged = errors.New("upload diverged")
	ErrIntegrity      = errors.New("integrity error")

	// Backend errors.
	ErrTransient       = errors.New("transient backend error")
	ErrVersionConflict = errors.New("version conflict")
)

// CascadeError reports a cascading basket delete that was aborted because
// some contained files could not be removed. The basket record is untouched.
type CascadeError struct {
	Basket  string
	FileIDs []string
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade delete of basket %q aborted, %d file(s) not removed: %s",
		e.Basket, len(e.FileIDs), strings.Join(e.FileIDs, ", "))
}

func (e *CascadeError) Unwrap() error {
	return ErrDeleteFailed
}
