// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/kiln/internal/issue"
	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/pkg/dependency"
)

type depsFlags struct {
	phase    string
	contexts []string
	resolve  bool
}

func newDepsCommand(app *App) *cobra.Command {
	var flags depsFlags
	cmd := &cobra.Command{
		Use:   "deps <project>",
		Short: "List the dependencies a build phase sees",
		Long: `List the project and library dependencies visible to one build phase.

With --resolve every library is looked up in the project's repositories
and printed with the repository that supplied it, transitive
dependencies included.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd.Context(), app, flags, args[0])
		},
	}
	cmd.Flags().StringVarP(&flags.phase, "phase", "p", string(dependency.PhaseCompile), "build phase: compile, test or runtime")
	cmd.Flags().StringSliceVarP(&flags.contexts, "context", "c", nil, "activate an extra context (repeatable)")
	cmd.Flags().BoolVar(&flags.resolve, "resolve", false, "resolve libraries against the repositories")
	return cmd
}

func runDeps(ctx context.Context, app *App, flags depsFlags, name string) error {
	phase, err := dependency.ParsePhase(flags.phase)
	if err != nil {
		return err
	}
	s, err := app.loadSession()
	if err != nil {
		return err
	}
	p, err := app.project(s, name)
	if err != nil {
		return err
	}
	cfg, err := p.Effective(project.ContextsFor(phase, flags.contexts...)...)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render(p.Name()), SubtitleStyle.Render(string(phase)+" phase"))
	for _, d := range project.PhaseProjectDependencies(cfg, phase) {
		fmt.Fprintf(app.stdout, "  %s %s\n", CmdStyle.Render(d.Project), SubtitleStyle.Render("("+string(d.Scope)+", project)"))
	}

	deps := project.PhaseDependencies(cfg, phase)
	if !flags.resolve {
		for _, d := range deps {
			fmt.Fprintf(app.stdout, "  %s\n", d)
		}
		return nil
	}

	resolver, err := app.resolver()
	if err != nil {
		return err
	}
	resolved, err := project.ResolvePhase(ctx, resolver, cfg, phase)
	if err != nil {
		if errors.Is(err, dependency.ErrUnresolvedDependency) {
			return newServiceError(err, issue.UnresolvedDependencyId)
		}
		return err
	}
	for _, r := range resolved {
		fmt.Fprintf(app.stdout, "  %s %s\n", r.Dependency, SubtitleStyle.Render("<- "+r.Artifact.Repository.Name))
	}
	return nil
}
