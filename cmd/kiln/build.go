// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/invowk/kiln/internal/build"
	"github.com/invowk/kiln/internal/issue"
	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/pkg/assembly"
	"github.com/invowk/kiln/pkg/dependency"
)

type buildFlags struct {
	contexts  []string
	skipTests bool
	parallel  int
	watch     bool
}

func newBuildCommand(app *App) *cobra.Command {
	var flags buildFlags
	cmd := &cobra.Command{
		Use:   "build [project...]",
		Short: "Build projects and their project dependencies",
		Long: `Build the named projects, or every project when none is named.

Project dependencies are built first. Projects whose dependencies are
ready build in parallel. A failed project blocks only the projects that
depend on it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), app, flags, args)
		},
	}
	cmd.Flags().StringSliceVarP(&flags.contexts, "context", "c", nil, "activate an extra context before each phase (repeatable)")
	cmd.Flags().BoolVar(&flags.skipTests, "skip-tests", false, "do not run tests")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "j", 0, "projects built concurrently (default from config max_parallel)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild affected projects when their sources change")
	return cmd
}

func runBuild(ctx context.Context, app *App, flags buildFlags, names []string) error {
	s, err := app.loadSession()
	if err != nil {
		return err
	}
	err = app.buildOnce(ctx, s, flags, names)
	if !flags.watch {
		return err
	}
	if err != nil && !isExitError(err) {
		return err
	}
	return runWatch(ctx, app, flags, names, s)
}

// buildOnce builds names and prints one line per project. Failed projects
// turn into an ExitError after their guides are rendered.
func (a *App) buildOnce(ctx context.Context, s *project.Session, flags buildFlags, names []string) error {
	resolver, err := a.resolver()
	if err != nil {
		return err
	}

	opts := build.Options{
		Contexts:    flags.contexts,
		SkipTests:   flags.skipTests,
		MaxParallel: flags.parallel,
		DeployDir:   a.cfg.DeployDir,
	}
	if opts.MaxParallel == 0 {
		opts.MaxParallel = a.cfg.MaxParallel
	}
	shell := &build.ShellCompiler{Stdout: a.stdout, Stderr: a.stderr}

	start := time.Now()
	results, err := build.NewBuilder(s, resolver, shell, shell, opts).Build(ctx, names...)
	if err != nil {
		if errors.Is(err, project.ErrUnknownProject) {
			return newServiceError(err, issue.ProjectNotFoundId)
		}
		return err
	}

	failed := printResults(a.stdout, results, a.verbose)
	fmt.Fprintf(a.stdout, "\n%s\n", SubtitleStyle.Render(fmt.Sprintf("%d project(s) in %s", len(results), time.Since(start).Round(time.Millisecond))))
	if failed > 0 {
		for _, r := range results {
			if r.Status == build.StatusFailed {
				renderError(a.stderr, buildFailure(r), a.verbose, a.glamourStyle())
			}
		}
		return &ExitError{Code: 1}
	}
	return nil
}

// resolver resolves against the configured repository cache.
func (a *App) resolver() (*dependency.Resolver, error) {
	cache, err := a.cfg.RepositoryCacheDir()
	if err != nil {
		return nil, err
	}
	return dependency.NewResolver(dependency.NewLocalFetcher(cache)), nil
}

// printResults writes one line per project and returns how many did not succeed.
func printResults(w io.Writer, results []build.Result, verbose bool) int {
	failed := 0
	for _, r := range results {
		switch r.Status {
		case build.StatusSucceeded:
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✔"), CmdStyle.Render(r.Project), SubtitleStyle.Render(r.Archive))
			if verbose && r.Report != nil {
				fmt.Fprintf(w, "    %d entries, blake3 %s\n", r.Report.Entries, r.Report.Digest)
			}
			printDeploy(w, r.Deploy)
		case build.StatusBlocked:
			failed++
			fmt.Fprintf(w, "%s %s %s\n", WarningStyle.Render("⊘"), CmdStyle.Render(r.Project), WarningStyle.Render(r.Err.Error()))
		default:
			failed++
			fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render("✘"), CmdStyle.Render(r.Project), ErrorStyle.Render(r.Step+" failed"))
		}
	}
	return failed
}

func printDeploy(w io.Writer, d assembly.DeployOutcome) {
	switch d.Status {
	case assembly.DeployCopied:
		fmt.Fprintf(w, "    deployed to %s\n", d.Target)
	case assembly.DeployUnchanged:
		fmt.Fprintf(w, "    %s\n", SubtitleStyle.Render("deploy unchanged: "+d.Target))
	case assembly.DeployFailed:
		fmt.Fprintf(w, "    %s\n", WarningStyle.Render("deploy failed: "+d.Reason))
	}
}

// buildFailure attaches the guide matching the failed step. Compiler output
// was already streamed, so compile failures only add the guide.
func buildFailure(r build.Result) error {
	err := fmt.Errorf("%s: %w", r.Project, r.Err)
	switch {
	case errors.Is(r.Err, dependency.ErrUnresolvedDependency):
		return newServiceError(err, issue.UnresolvedDependencyId)
	case errors.Is(r.Err, assembly.ErrMergeConflict):
		return newServiceError(err, issue.MergeConflictId)
	case errors.Is(r.Err, build.ErrCompileFailure):
		return newServiceError(err, issue.CompileFailedId)
	default:
		return err
	}
}
