// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"path"
	"slices"
	"strings"
)

// Target is a project and the directories whose changes rebuild it, relative
// to the watched base directory and slash-separated.
type Target struct {
	Project string
	Dirs    []string
}

// Patterns returns the watch patterns covering every target directory,
// followed by extra.
func Patterns(targets []Target, extra ...string) []string {
	var out []string
	for _, t := range targets {
		for _, d := range t.Dirs {
			p := path.Join(d, "**")
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return append(out, extra...)
}

// Affected maps changed paths to the projects owning them, in target order.
// unowned reports whether some path belongs to no target.
func Affected(targets []Target, changed []string) (projects []string, unowned bool) {
	hit := make(map[string]bool)
	for _, c := range changed {
		owned := false
		for _, t := range targets {
			if slices.ContainsFunc(t.Dirs, func(d string) bool { return within(c, d) }) {
				hit[t.Project] = true
				owned = true
			}
		}
		if !owned {
			unowned = true
		}
	}
	for _, t := range targets {
		if hit[t.Project] && !slices.Contains(projects, t.Project) {
			projects = append(projects, t.Project)
		}
	}
	return projects, unowned
}

func within(p, dir string) bool {
	return dir == "." || p == dir || strings.HasPrefix(p, dir+"/")
}
