// SPDX-License-Identifier: MPL-2.0

// Package config handles kiln's application configuration using Viper with CUE
// as the file format.
//
// The file is config.cue in the kiln configuration directory
// ($XDG_CONFIG_HOME/kiln on Linux, ~/Library/Application Support/kiln on
// macOS, %APPDATA%\kiln on Windows), falling back to ./config.cue. It is
// validated against the embedded config_schema.cue before Viper sees it, and
// every field can be overridden through KILN_* environment variables.
package config
