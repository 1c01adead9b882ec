// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "load kilnfile"},
			want: "failed to load kilnfile",
		},
		{
			name: "operation with resource",
			err:  &ActionableError{Operation: "load kilnfile", Resource: "./kilnfile.cue"},
			want: "failed to load kilnfile: ./kilnfile.cue",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "build project",
				Resource:  "DeadSouls",
				Cause:     errors.New("compilation failed"),
			},
			want: "failed to build project: DeadSouls: compilation failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("no repository supplied org.spigotmc:spigot-api")
	err := WrapWithContext(fmt.Errorf("resolve: %w", cause), "build project", "DeadSouls")
	if !errors.Is(err, cause) {
		t.Error("errors.Is does not reach the wrapped cause")
	}
	if WrapWithContext(nil, "x", "y") != nil {
		t.Error("WrapWithContext(nil) != nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	inner := errors.New("cycle A -> B -> A")
	err := NewErrorContext().
		WithOperation("validate projects").
		WithResource("kilnfile.cue").
		WithSuggestion("Remove one project dependency of the cycle").
		Wrap(fmt.Errorf("graph: %w", inner)).
		Build()

	tests := []struct {
		name     string
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name:     "concise",
			contains: []string{"failed to validate projects: kilnfile.cue", "• Remove one project dependency"},
			excludes: []string{"Error chain:"},
		},
		{
			name:     "verbose",
			verbose:  true,
			contains: []string{"Error chain:", "1. graph: cycle A -> B -> A", "2. cycle A -> B -> A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := err.Format(tt.verbose)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Format() lacks %q:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(out, unwanted) {
					t.Errorf("Format() contains %q:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestErrorContext_BuildRequiresOperation(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation != nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation != nil")
	}
}
