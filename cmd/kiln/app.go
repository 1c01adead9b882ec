// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/invowk/kiln/internal/config"
	"github.com/invowk/kiln/internal/issue"
	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/kilnfile"
)

type (
	// App wires the CLI services. Every command handler receives it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		// Flag values shared by all commands.
		verbose      bool
		cfgFile      string
		kilnfilePath string

		cfg       *config.Config
		configErr error
		// definition is the kilnfile the last loadSession read.
		definition string
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App.
func NewApp(deps Dependencies) *App {
	app := &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// init loads the configuration and installs the logger. A broken
// configuration is reported and replaced by the defaults so that commands
// like 'config init' keep working.
func (a *App) init(ctx context.Context) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		a.configErr = err
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, a.verbose))
		cfg = config.DefaultConfig()
	}
	a.cfg = cfg
	if cfg.UI.Verbose {
		a.verbose = true
	}

	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(a.stderr, log.Options{
		Prefix: "kiln",
		Level:  level,
	})
	slog.SetDefault(slog.New(logger))
}

// loadSession finds, parses and validates the build definition.
func (a *App) loadSession() (*project.Session, error) {
	path := a.kilnfilePath
	if path == "" {
		found, err := kilnfile.Find(".")
		if err != nil {
			return nil, newServiceError(err, issue.KilnfileNotFoundId)
		}
		path = found
	}
	slog.Debug("loading build definition", "path", path)
	a.definition = path

	kf, err := kilnfile.Load(path)
	if err != nil {
		return nil, newServiceError(issue.WrapWithContext(err, "load kilnfile", path), issue.KilnfileParseErrorId)
	}

	var base []compose.Fragment
	if a.cfg != nil && a.cfg.BuildDir != "" {
		base = append(base, compose.Set(project.KeyBuildDir, a.cfg.BuildDir))
	}
	s, err := kf.Session(base...)
	if err != nil {
		return nil, newServiceError(issue.WrapWithContext(err, "load kilnfile", path), issue.KilnfileParseErrorId)
	}
	if err := s.Validate(); err != nil {
		return nil, classifySessionError(err, path)
	}
	return s, nil
}

// classifySessionError maps validation failures to their guides.
func classifySessionError(err error, path string) error {
	wrapped := issue.WrapWithContext(err, "validate projects", path)
	switch {
	case errors.Is(err, project.ErrCyclicProjectDependency):
		return newServiceError(wrapped, issue.DependencyCycleId)
	case errors.Is(err, project.ErrUnknownProject):
		return newServiceError(wrapped, issue.ProjectNotFoundId)
	default:
		return newServiceError(wrapped, issue.KilnfileParseErrorId)
	}
}

// project looks up a project of the session and attaches the guide when it
// does not exist.
func (a *App) project(s *project.Session, name string) (*project.Project, error) {
	p, err := s.Project(name)
	if err != nil {
		return nil, newServiceError(err, issue.ProjectNotFoundId)
	}
	return p, nil
}

// glamourStyle maps the configured color scheme to a glamour style name.
func (a *App) glamourStyle() string {
	if a.cfg != nil && a.cfg.UI.ColorScheme == config.ColorSchemeLight {
		return "light"
	}
	return "dark"
}

// formatErrorForDisplay uses ActionableError formatting when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
