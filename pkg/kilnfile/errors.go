// SPDX-License-Identifier: MPL-2.0

package kilnfile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Find when no kilnfile exists above a directory.
	ErrNotFound = errors.New("no " + FileName + " found")
	// ErrUnknownKey is returned when a fragment names an undeclared key.
	ErrUnknownKey = errors.New("unknown configuration key")
	// ErrUnsupportedOperation is returned when an operation does not apply to a key's type.
	ErrUnsupportedOperation = errors.New("operation not supported for key")
	// ErrInvalidValue is returned when a fragment value has the wrong shape.
	ErrInvalidValue = errors.New("invalid fragment value")
	// ErrUnknownArchetype is returned when a project or archetype names an undefined archetype.
	ErrUnknownArchetype = errors.New("unknown archetype")
)

// DeclarationError locates a failing declaration inside the kilnfile, e.g.
// "projects.DeadSouls.fragments[2]".
type DeclarationError struct {
	Where string
	Err   error
}

// Error implements the error interface.
func (e *DeclarationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Where, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeclarationError) Unwrap() error { return e.Err }
