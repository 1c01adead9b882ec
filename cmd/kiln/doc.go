// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the kiln command line: build, inspect, deps, projects
// and config. Handlers receive an App that owns configuration, the loaded
// build definition and the output streams.
package cmd
