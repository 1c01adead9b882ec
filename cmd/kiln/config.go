// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/kiln/internal/config"
	"github.com/invowk/kiln/internal/issue"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kiln configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if app.configErr != nil {
					return newServiceError(app.configErr, issue.ConfigLoadFailedId)
				}
				fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file in use",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if path := app.Config.Path(); path != "" {
					fmt.Fprintln(app.stdout, path)
					return nil
				}
				dir, err := config.ConfigDir()
				if err != nil {
					return err
				}
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("no config file, defaults in use; create one in "+dir))
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				dir, err := config.ConfigDir()
				if err != nil {
					return err
				}
				path, err := config.CreateDefaultConfig(dir)
				if err != nil {
					return issue.WrapWithContext(err, "create config", dir)
				}
				fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("config:"), path)
				return nil
			},
		},
	)
	return cmd
}
