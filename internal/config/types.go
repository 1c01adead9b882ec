// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces the dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces the light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// Config is kiln's application configuration.
	Config struct {
		// BuildDir is the default build directory of projects that leave
		// build_dir unset.
		BuildDir string `json:"build_dir" mapstructure:"build_dir"`
		// RepositoryCache is the local mirror of remote repositories.
		RepositoryCache string `json:"repository_cache" mapstructure:"repository_cache"`
		// MaxParallel bounds concurrent project builds within a level.
		MaxParallel int `json:"max_parallel" mapstructure:"max_parallel"`
		// DeployDir overrides every project's deploy_dir when non-empty.
		DeployDir string `json:"deploy_dir" mapstructure:"deploy_dir"`
		// UI holds terminal preferences.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}

	// InvalidConfigError collects field-level validation errors.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BuildDir:    "build",
		MaxParallel: max(1, runtime.NumCPU()),
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Validate checks the constraints environment overrides can break after the
// file itself passed the schema.
func (c Config) Validate() error {
	var errs []error
	if c.MaxParallel < 1 {
		errs = append(errs, fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel))
	}
	if c.BuildDir == "" {
		errs = append(errs, errors.New("build_dir must not be empty"))
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// RepositoryCacheDir returns the configured repository cache, or the default
// under the user cache directory.
func (c Config) RepositoryCacheDir() (string, error) {
	if c.RepositoryCache != "" {
		return c.RepositoryCache, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(cache, AppName, "repository"), nil
}

// Validate returns an error unless the scheme is auto, dark or light.
func (cs ColorScheme) Validate() error {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: auto, dark, light)", ErrInvalidColorScheme, cs)
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is().
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
