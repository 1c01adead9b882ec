// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newProjectsCommand(app *App) *cobra.Command {
	var contexts []string
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects in build order",
		Long: `List the projects of the build definition grouped by build level.

Projects on the same level do not depend on each other and build in
parallel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProjects(app, contexts)
		},
	}
	cmd.Flags().StringSliceVarP(&contexts, "context", "c", nil, "activate an extra context (repeatable)")
	return cmd
}

func runProjects(app *App, contexts []string) error {
	s, err := app.loadSession()
	if err != nil {
		return err
	}
	g, err := s.Graph(contexts...)
	if err != nil {
		return err
	}
	levels, err := g.Levels()
	if err != nil {
		return err
	}

	cwd, _ := filepath.Abs(".")
	for i, level := range levels {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render(fmt.Sprintf("level %d", i)))
		for _, name := range level {
			p, err := s.Project(name)
			if err != nil {
				return err
			}
			root := p.Root()
			if rel, relErr := filepath.Rel(cwd, root); relErr == nil && !strings.HasPrefix(rel, "..") {
				root = rel
			}
			line := fmt.Sprintf("  %s %s %s", CmdStyle.Render(name), p.Identity(), SubtitleStyle.Render(root))
			if up := g.Predecessors(name); len(up) > 0 {
				line += SubtitleStyle.Render(" <- " + strings.Join(up, ", "))
			}
			fmt.Fprintln(app.stdout, line)
		}
	}
	return nil
}
