// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyType is the sentinel error wrapped by KeyTypeError.
	ErrKeyType = errors.New("configuration key type mismatch")

	// ErrArchetypeCycle is returned when an archetype is its own ancestor.
	ErrArchetypeCycle = errors.New("archetype inherits from itself")
)

type (
	// KeyTypeError is returned when a fragment reads a key whose stored value has
	// a different type than the fragment's key declares.
	KeyTypeError struct {
		Key  string
		Want string
		Got  string
	}

	// FragmentError reports which fragment failed during evaluation.
	FragmentError struct {
		Fragment string
		Origin   string
		Err      error
	}
)

// Error implements the error interface.
func (e *KeyTypeError) Error() string {
	return fmt.Sprintf("key %q holds %s, fragment expects %s", e.Key, e.Got, e.Want)
}

// Unwrap returns ErrKeyType for errors.Is() compatibility.
func (e *KeyTypeError) Unwrap() error { return ErrKeyType }

// Error implements the error interface.
func (e *FragmentError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("%s (from %s): %v", e.Fragment, e.Origin, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Fragment, e.Err)
}

// Unwrap returns the underlying error.
func (e *FragmentError) Unwrap() error { return e.Err }
