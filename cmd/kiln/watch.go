// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/invowk/kiln/internal/dag"
	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/internal/watch"
	"github.com/invowk/kiln/pkg/dependency"
)

// runWatch rebuilds the projects owning changed sources, and their
// dependents, until ctx is cancelled. A change to the kilnfile reloads the
// session and rebuilds everything requested.
func runWatch(ctx context.Context, app *App, flags buildFlags, names []string, s *project.Session) error {
	for {
		reload, err := watchSession(ctx, app, flags, names, s)
		if err != nil || !reload || ctx.Err() != nil {
			return err
		}

		fmt.Fprintln(app.stdout, SubtitleStyle.Render("kilnfile changed, reloading"))
		next, err := app.loadSession()
		if err != nil {
			renderError(app.stderr, err, app.verbose, app.glamourStyle())
			continue
		}
		s = next
		if err := app.buildOnce(ctx, s, flags, names); err != nil && !isExitError(err) {
			return err
		}
	}
}

// watchSession watches the sources of one session. It returns reload=true
// when the kilnfile changed.
func watchSession(ctx context.Context, app *App, flags buildFlags, names []string, s *project.Session) (bool, error) {
	definition, err := filepath.Abs(app.definition)
	if err != nil {
		return false, err
	}
	base := filepath.Dir(definition)
	targets, ignores, err := watchTargets(s, base, flags.contexts)
	if err != nil {
		return false, err
	}
	g, err := s.Graph(flags.contexts...)
	if err != nil {
		return false, err
	}
	scope := buildScope(g, names)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var reload atomic.Bool

	w, err := watch.New(watch.Config{
		BaseDir:  base,
		Patterns: watch.Patterns(targets, filepath.Base(definition)),
		Ignore:   ignores,
		OnChange: func(ctx context.Context, changed []string) error {
			slog.Debug("sources changed", "paths", changed)
			affected, unowned := watch.Affected(targets, changed)
			if unowned {
				reload.Store(true)
				cancel()
				return nil
			}
			rebuild := withDependents(g, affected, scope)
			if len(rebuild) == 0 {
				return nil
			}
			fmt.Fprintf(app.stdout, "\n%s %s\n", SubtitleStyle.Render("rebuilding"), strings.Join(rebuild, ", "))
			if err := app.buildOnce(ctx, s, flags, rebuild); err != nil && !isExitError(err) {
				return err
			}
			return nil
		},
	})
	if err != nil {
		return false, err
	}

	fmt.Fprintf(app.stdout, "%s\n", SubtitleStyle.Render(fmt.Sprintf("watching %d project(s), Ctrl+C stops", len(targets))))
	if err := w.Run(wctx); err != nil {
		return false, err
	}
	return reload.Load(), nil
}

// watchTargets lists the source, test and resource roots of every project
// relative to base, and ignore patterns for their build directories. Roots
// outside base are not watched.
func watchTargets(s *project.Session, base string, contexts []string) ([]watch.Target, []string, error) {
	var (
		targets []watch.Target
		ignores []string
	)
	rel := func(p string) (string, bool) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", false
		}
		r, err := filepath.Rel(base, abs)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			return "", false
		}
		return filepath.ToSlash(r), true
	}

	for _, p := range s.Projects() {
		cfg, err := p.Effective(project.ContextsFor(dependency.PhaseTest, contexts...)...)
		if err != nil {
			return nil, nil, err
		}
		t := watch.Target{Project: p.Name()}
		for _, root := range slices.Concat(p.SourceRoots(cfg, true), p.ResourceRoots(cfg)) {
			if r, ok := rel(root); ok {
				t.Dirs = append(t.Dirs, r)
			}
		}
		targets = append(targets, t)
		if r, ok := rel(p.BuildDir(cfg)); ok {
			ignores = append(ignores, r+"/**")
		}
	}
	return targets, ignores, nil
}

// buildScope is the set of projects a build of names touches. Empty names
// mean every project.
func buildScope(g *dag.Graph, names []string) map[string]bool {
	scope := make(map[string]bool)
	if len(names) == 0 {
		for _, n := range g.Nodes() {
			scope[n] = true
		}
		return scope
	}
	for _, n := range names {
		scope[n] = true
		for _, up := range g.Upstream(n) {
			scope[up] = true
		}
	}
	return scope
}

// withDependents adds the dependents of affected and keeps those in scope,
// in graph order.
func withDependents(g *dag.Graph, affected []string, scope map[string]bool) []string {
	want := make(map[string]bool)
	for _, n := range affected {
		want[n] = true
		for _, down := range g.Downstream(n) {
			want[down] = true
		}
	}
	var out []string
	for _, n := range g.Nodes() {
		if want[n] && scope[n] {
			out = append(out, n)
		}
	}
	return out
}

func isExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
