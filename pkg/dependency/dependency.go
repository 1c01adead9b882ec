// SPDX-License-Identifier: MPL-2.0

// Package dependency models scoped library dependencies, ordered repositories,
// and the per-phase visibility rules that decide which dependencies a build
// phase sees.
package dependency

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	// ScopeCompile dependencies are needed to compile and are bundled.
	ScopeCompile Scope = "compile"
	// ScopeProvided dependencies are needed to compile but are supplied by the
	// host environment at deploy time, so they are never bundled.
	ScopeProvided Scope = "provided"
	// ScopeTest dependencies are only visible to the test phase.
	ScopeTest Scope = "test"
	// ScopeRuntime dependencies are bundled but not on the compile path.
	ScopeRuntime Scope = "runtime"

	// PhaseCompile is the compilation phase.
	PhaseCompile Phase = "compile"
	// PhaseTest is the test phase.
	PhaseTest Phase = "test"
	// PhaseRuntime is the assembly/runtime phase.
	PhaseRuntime Phase = "runtime"
)

var (
	// ErrInvalidScope is the sentinel error wrapped by InvalidScopeError.
	ErrInvalidScope = errors.New("invalid dependency scope")
	// ErrInvalidPhase is returned when a Phase value is not recognized.
	ErrInvalidPhase = errors.New("invalid build phase")
	// ErrInvalidCoordinate is returned when a coordinate is missing a part.
	ErrInvalidCoordinate = errors.New("invalid dependency coordinate")

	phaseScopes = map[Phase][]Scope{
		PhaseCompile: {ScopeCompile, ScopeProvided},
		PhaseTest:    {ScopeCompile, ScopeProvided, ScopeTest},
		PhaseRuntime: {ScopeCompile, ScopeRuntime},
	}
)

type (
	// Scope is a dependency visibility class.
	Scope string

	// InvalidScopeError is returned when a Scope value is not recognized.
	// It wraps ErrInvalidScope for errors.Is() compatibility.
	InvalidScopeError struct {
		Value Scope
	}

	// Phase is a build phase that consumes a subset of dependency scopes.
	Phase string

	// Coordinate identifies an artifact as group:artifact:version.
	Coordinate struct {
		Group    string `json:"group" yaml:"group"`
		Artifact string `json:"artifact" yaml:"artifact"`
		Version  string `json:"version" yaml:"version"`
	}

	// Dependency is a scoped coordinate.
	Dependency struct {
		Coordinate `yaml:",inline"`
		Scope      Scope `json:"scope" yaml:"scope"`
	}
)

// New creates a dependency. An empty scope means ScopeCompile.
func New(group, artifact, version string, scope Scope) Dependency {
	if scope == "" {
		scope = ScopeCompile
	}
	return Dependency{
		Coordinate: Coordinate{Group: group, Artifact: artifact, Version: version},
		Scope:      scope,
	}
}

// Parse reads "group:artifact:version[:scope]".
func Parse(s string) (Dependency, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Dependency{}, fmt.Errorf("%w: %q (want group:artifact:version[:scope])", ErrInvalidCoordinate, s)
	}
	d := New(parts[0], parts[1], parts[2], "")
	if len(parts) == 4 {
		d.Scope = Scope(parts[3])
	}
	return d, d.Validate()
}

// Validate checks the scope and that all coordinate parts are present.
func (d Dependency) Validate() error {
	if err := d.Coordinate.Validate(); err != nil {
		return err
	}
	return d.Scope.Validate()
}

// String returns "group:artifact:version (scope)".
func (d Dependency) String() string {
	return fmt.Sprintf("%s (%s)", d.Coordinate, d.Scope)
}

// Validate checks that group, artifact and version are non-empty.
func (c Coordinate) Validate() error {
	if strings.TrimSpace(c.Group) == "" || strings.TrimSpace(c.Artifact) == "" || strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCoordinate, c.String())
	}
	return nil
}

// Key returns "group:artifact", the identity used for de-duplication.
func (c Coordinate) Key() string {
	return c.Group + ":" + c.Artifact
}

// String returns "group:artifact:version".
func (c Coordinate) String() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// FileName returns "artifact-version.ext".
func (c Coordinate) FileName(ext string) string {
	return c.Artifact + "-" + c.Version + "." + ext
}

// Validate returns nil if the scope is one of the four known scopes.
func (s Scope) Validate() error {
	switch s {
	case ScopeCompile, ScopeProvided, ScopeTest, ScopeRuntime:
		return nil
	default:
		return &InvalidScopeError{Value: s}
	}
}

// String returns the scope name.
func (s Scope) String() string { return string(s) }

// Error implements the error interface.
func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid dependency scope %q (valid: compile, provided, test, runtime)", e.Value)
}

// Unwrap returns ErrInvalidScope for errors.Is() compatibility.
func (e *InvalidScopeError) Unwrap() error { return ErrInvalidScope }

// ParsePhase converts a string to a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if _, ok := phaseScopes[p]; !ok {
		return "", fmt.Errorf("%w: %q (valid: compile, test, runtime)", ErrInvalidPhase, s)
	}
	return p, nil
}

// Scopes returns the scopes visible to the phase.
func (p Phase) Scopes() []Scope {
	return slices.Clone(phaseScopes[p])
}

// Includes reports whether dependencies of scope s are visible in the phase.
func (p Phase) Includes(s Scope) bool {
	return slices.Contains(phaseScopes[p], s)
}

// ForPhase returns the dependencies visible to phase, in declaration order.
// When the same group:artifact is declared more than once the first visible
// declaration wins. The input is not modified.
func ForPhase(deps []Dependency, phase Phase) []Dependency {
	seen := make(map[string]bool, len(deps))
	var out []Dependency
	for _, d := range deps {
		if !phase.Includes(d.Scope) || seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true
		out = append(out, d)
	}
	return out
}

// WithoutScope returns deps minus every dependency of the given scope.
func WithoutScope(deps []Dependency, scope Scope) []Dependency {
	return slices.DeleteFunc(slices.Clone(deps), func(d Dependency) bool { return d.Scope == scope })
}
