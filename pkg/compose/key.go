// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidKeyName is the sentinel error wrapped by InvalidKeyNameError.
var ErrInvalidKeyName = errors.New("invalid key name")

var keyNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type (
	// Key is a typed configuration key. Two keys with the same name address the
	// same slot in a Config; the type parameter only governs how fragments read
	// and write that slot.
	Key[T any] struct {
		name        string
		description string
		def         T
		hasDefault  bool
	}

	// InvalidKeyNameError is returned when a key name is not snake_case.
	// It wraps ErrInvalidKeyName for errors.Is() compatibility.
	InvalidKeyNameError struct {
		Name string
	}
)

// NewKey creates a key without a default value. Reading an unset key yields the
// zero value of T.
func NewKey[T any](name, description string) Key[T] {
	return Key[T]{name: name, description: description}
}

// NewKeyWithDefault creates a key whose unset value reads as def. The default is
// also what a Modify fragment receives when nothing was written before it.
func NewKeyWithDefault[T any](name, description string, def T) Key[T] {
	return Key[T]{name: name, description: description, def: def, hasDefault: true}
}

// Name returns the key's name.
func (k Key[T]) Name() string { return k.name }

// Description returns the human readable description of the key.
func (k Key[T]) Description() string { return k.description }

// Default returns the default value and whether one was declared.
func (k Key[T]) Default() (T, bool) { return k.def, k.hasDefault }

// Validate checks that the key name is a non-empty snake_case identifier.
func (k Key[T]) Validate() error {
	return ValidateKeyName(k.name)
}

// ValidateKeyName checks that name is a non-empty snake_case identifier.
func ValidateKeyName(name string) error {
	if !keyNamePattern.MatchString(name) {
		return &InvalidKeyNameError{Name: name}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidKeyNameError) Error() string {
	return fmt.Sprintf("invalid key name %q (must match %s)", e.Name, keyNamePattern)
}

// Unwrap returns ErrInvalidKeyName for errors.Is() compatibility.
func (e *InvalidKeyNameError) Unwrap() error { return ErrInvalidKeyName }
