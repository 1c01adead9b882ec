// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "kiln",
		Short: "Declarative build composition for JVM projects",
		Long: TitleStyle.Render("kiln") + SubtitleStyle.Render(" - declarative build composition for JVM projects") + `

kiln reads a kilnfile.cue describing projects as layers of reusable
archetypes, per-project fragments and context overrides, then resolves
their dependencies, compiles, tests and assembles each project into one
deployable archive.

` + SubtitleStyle.Render("Examples:") + `
  kiln projects                         List projects in build order
  kiln build                            Build every project
  kiln build DeadSouls -c live_testing  Build one project with an extra context
  kiln inspect DeadSouls --format yaml  Show the effective configuration
  kiln deps DeadSouls --phase test      Show the test classpath`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			app.init(cmd.Context())
		},
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/kiln/config.cue)")
	root.PersistentFlags().StringVarP(&app.kilnfilePath, "file", "f", "", "build definition (default is the nearest kilnfile.cue)")

	root.AddCommand(
		newBuildCommand(app),
		newInspectCommand(app),
		newDepsCommand(app),
		newProjectsCommand(app),
		newConfigCommand(app),
	)
	return root
}

// Execute runs the CLI. It is called by main.main.
func Execute() {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			var exitErr *ExitError
			if errors.As(err, &exitErr) && exitErr.Err == nil {
				return
			}
			renderError(w, err, app.verbose, app.glamourStyle())
		}),
	)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
