// SPDX-License-Identifier: MPL-2.0

package build

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCompileFailure is the sentinel error wrapped by CompileFailure.
	ErrCompileFailure = errors.New("compilation failed")
	// ErrTestFailure is the sentinel error wrapped by TestFailure.
	ErrTestFailure = errors.New("tests failed")
	// ErrBlocked is the sentinel error wrapped by BlockedError.
	ErrBlocked = errors.New("blocked by failed dependency")
)

type (
	// CompileFailure is returned when the compile command exits non-zero.
	// Stderr is kept verbatim.
	CompileFailure struct {
		Project  string
		ExitCode int
		Stderr   string
	}

	// TestFailure is returned when the test command exits non-zero.
	TestFailure struct {
		Project  string
		ExitCode int
		Stderr   string
	}

	// BlockedError marks a project that was not built because a project it
	// depends on failed or was itself blocked.
	BlockedError struct {
		Project string
		By      []string
	}
)

// Error implements the error interface.
func (e *CompileFailure) Error() string {
	return fmt.Sprintf("%s: compile command exited with status %d", e.Project, e.ExitCode)
}

// Unwrap returns ErrCompileFailure for errors.Is() compatibility.
func (e *CompileFailure) Unwrap() error { return ErrCompileFailure }

// Error implements the error interface.
func (e *TestFailure) Error() string {
	return fmt.Sprintf("%s: test command exited with status %d", e.Project, e.ExitCode)
}

// Unwrap returns ErrTestFailure for errors.Is() compatibility.
func (e *TestFailure) Unwrap() error { return ErrTestFailure }

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: not built because %s failed", e.Project, strings.Join(e.By, ", "))
}

// Unwrap returns ErrBlocked for errors.Is() compatibility.
func (e *BlockedError) Unwrap() error { return ErrBlocked }
