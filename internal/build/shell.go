// SPDX-License-Identifier: MPL-2.0

package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// Request describes one compile or test step.
	Request struct {
		Project   string
		Command   string
		Dir       string
		Sources   []string
		Classpath []string
		Output    string
		// Env holds extra NAME=value entries, such as the test launcher.
		Env []string
	}

	// Compiler turns sources into class files under Request.Output.
	Compiler interface {
		Compile(ctx context.Context, req Request) error
	}

	// TestRunner runs a project's tests.
	TestRunner interface {
		Test(ctx context.Context, req Request) error
	}

	// ShellCompiler runs compile and test commands through the embedded POSIX
	// shell, so commands behave the same on every platform. It implements both
	// Compiler and TestRunner.
	ShellCompiler struct {
		// Stdout and Stderr receive the command's output. Nil discards it.
		// Stderr is always captured for failure reports as well.
		Stdout io.Writer
		Stderr io.Writer
	}
)

// Compile implements Compiler. An empty command is a successful no-op.
func (s *ShellCompiler) Compile(ctx context.Context, req Request) error {
	code, stderr, err := s.run(ctx, req)
	if err != nil {
		return err
	}
	if code != 0 {
		return &CompileFailure{Project: req.Project, ExitCode: code, Stderr: stderr}
	}
	return nil
}

// Test implements TestRunner. An empty command is a successful no-op.
func (s *ShellCompiler) Test(ctx context.Context, req Request) error {
	code, stderr, err := s.run(ctx, req)
	if err != nil {
		return err
	}
	if code != 0 {
		return &TestFailure{Project: req.Project, ExitCode: code, Stderr: stderr}
	}
	return nil
}

func (s *ShellCompiler) run(ctx context.Context, req Request) (exitCode int, stderr string, err error) {
	if strings.TrimSpace(req.Command) == "" {
		return 0, "", nil
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(req.Command), req.Project)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse command for %s: %w", req.Project, err)
	}

	var captured bytes.Buffer
	errOut := io.Writer(&captured)
	if s.Stderr != nil {
		errOut = io.MultiWriter(&captured, s.Stderr)
	}
	out := s.Stdout
	if out == nil {
		out = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(req.Dir),
		interp.Env(expand.ListEnviron(Environ(req)...)),
		interp.StdIO(nil, out, errOut),
	)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return int(exitStatus), captured.String(), nil
		}
		return 0, "", fmt.Errorf("command for %s failed: %w", req.Project, err)
	}
	return 0, captured.String(), nil
}

// EnvTestLauncher names the archive of the test_launcher dependency.
const EnvTestLauncher = "KILN_TEST_LAUNCHER"

// Environ returns the process environment extended with the KILN_* variables
// describing the request, then req.Env.
func Environ(req Request) []string {
	env := append(os.Environ(),
		"KILN_PROJECT="+req.Project,
		"KILN_SOURCES="+strings.Join(req.Sources, " "),
		"KILN_CLASSPATH="+strings.Join(req.Classpath, string(filepath.ListSeparator)),
		"KILN_OUTPUT="+req.Output,
	)
	return append(env, req.Env...)
}
