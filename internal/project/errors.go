// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateProject is the sentinel error wrapped by DuplicateProjectError.
	ErrDuplicateProject = errors.New("duplicate project")
	// ErrDuplicateDefinition is the sentinel error wrapped by DuplicateDefinitionError.
	ErrDuplicateDefinition = errors.New("duplicate definition")
	// ErrUnknownProject is the sentinel error wrapped by UnknownProjectError.
	ErrUnknownProject = errors.New("unknown project")
	// ErrCyclicProjectDependency is the sentinel error wrapped by CyclicProjectDependencyError.
	ErrCyclicProjectDependency = errors.New("cyclic project dependency")
	// ErrInvalidProjectName is returned for an empty or malformed project name.
	ErrInvalidProjectName = errors.New("invalid project name")
)

type (
	// DuplicateProjectError is returned when two projects share a name.
	DuplicateProjectError struct {
		Name string
	}

	// DuplicateDefinitionError is returned when an archetype or configuration
	// name is registered twice.
	DuplicateDefinitionError struct {
		Kind string
		Name string
	}

	// UnknownProjectError is returned when a project dependency names a
	// project the session does not define.
	UnknownProjectError struct {
		Name       string
		RequiredBy string
	}

	// CyclicProjectDependencyError reports a project dependency loop as a
	// closed path, e.g. [A B A].
	CyclicProjectDependencyError struct {
		Cycle []string
	}
)

// Error implements the error interface.
func (e *DuplicateProjectError) Error() string {
	return fmt.Sprintf("project %q is defined more than once", e.Name)
}

// Unwrap returns ErrDuplicateProject for errors.Is() compatibility.
func (e *DuplicateProjectError) Unwrap() error { return ErrDuplicateProject }

// Error implements the error interface.
func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("%s %q is defined more than once", e.Kind, e.Name)
}

// Unwrap returns ErrDuplicateDefinition for errors.Is() compatibility.
func (e *DuplicateDefinitionError) Unwrap() error { return ErrDuplicateDefinition }

// Error implements the error interface.
func (e *UnknownProjectError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("project %q (required by %q) is not defined", e.Name, e.RequiredBy)
	}
	return fmt.Sprintf("project %q is not defined", e.Name)
}

// Unwrap returns ErrUnknownProject for errors.Is() compatibility.
func (e *UnknownProjectError) Unwrap() error { return ErrUnknownProject }

// Error implements the error interface.
func (e *CyclicProjectDependencyError) Error() string {
	return "project dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

// Unwrap returns ErrCyclicProjectDependency for errors.Is() compatibility.
func (e *CyclicProjectDependencyError) Unwrap() error { return ErrCyclicProjectDependency }
