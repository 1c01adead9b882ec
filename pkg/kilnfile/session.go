// SPDX-License-Identifier: MPL-2.0

package kilnfile

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/pkg/compose"
)

// Session converts the definition into a project session: workspace_dir,
// base, the declared key defaults and the defaults block seed every project in
// that order, archetypes are defined parents first, configurations and
// projects in name order. The session is returned unvalidated.
func (kf *Kilnfile) Session(base ...compose.Fragment) (*project.Session, error) {
	workspace, err := filepath.Abs(kf.Dir())
	if err != nil {
		return nil, fmt.Errorf("resolve workspace directory: %w", err)
	}
	keys := builtinKeys()
	defaults, err := keys.declare(kf.Keys)
	if err != nil {
		return nil, err
	}
	shared, err := keys.fragments("defaults", kf.Defaults)
	if err != nil {
		return nil, err
	}
	seed := []compose.Fragment{compose.Set(project.KeyWorkspaceDir, workspace)}
	s := project.NewSession(slices.Concat(seed, base, defaults, shared)...)

	if err := kf.defineArchetypes(s, keys); err != nil {
		return nil, err
	}

	for _, name := range sortedKeys(kf.Configurations) {
		decl := kf.Configurations[name]
		frags, err := keys.fragments("configurations."+name+".fragments", decl.Fragments)
		if err != nil {
			return nil, err
		}
		if err := s.DefineConfiguration(compose.NewConfiguration(name, decl.Description, frags...)); err != nil {
			return nil, &DeclarationError{Where: "configurations." + name, Err: err}
		}
	}

	for _, name := range sortedKeys(kf.Projects) {
		decl := kf.Projects[name]
		where := "projects." + name
		layering, err := kf.layering(s, keys, where, decl)
		if err != nil {
			return nil, err
		}
		root := filepath.Join(kf.Dir(), cmp.Or(decl.Path, name))
		if _, err := s.AddProject(name, root, layering); err != nil {
			return nil, &DeclarationError{Where: where, Err: err}
		}
		slog.Debug("project declared", "project", name, "root", root, "archetypes", decl.Archetypes)
	}
	return s, nil
}

func (kf *Kilnfile) layering(s *project.Session, keys keyTable, where string, decl ProjectDecl) (compose.Layering, error) {
	var l compose.Layering
	for i, name := range decl.Archetypes {
		a, ok := s.Archetype(name)
		if !ok {
			return compose.Layering{}, &DeclarationError{
				Where: fmt.Sprintf("%s.archetypes[%d]", where, i),
				Err:   fmt.Errorf("%w: %q", ErrUnknownArchetype, name),
			}
		}
		l.Archetypes = append(l.Archetypes, a)
	}

	frags, err := keys.fragments(where+".fragments", decl.Fragments)
	if err != nil {
		return compose.Layering{}, err
	}
	l.Fragments = frags

	if len(decl.Extend) > 0 {
		l.Overrides = make(map[string][]compose.Fragment, len(decl.Extend))
		for _, name := range sortedKeys(decl.Extend) {
			ext, err := keys.fragments(where+".extend."+name, decl.Extend[name])
			if err != nil {
				return compose.Layering{}, err
			}
			l.Overrides[name] = ext
		}
	}
	return l, nil
}

// defineArchetypes registers archetypes so that every parent exists before
// its children. A parent may also be a built-in archetype.
func (kf *Kilnfile) defineArchetypes(s *project.Session, keys keyTable) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(kf.Archetypes))

	var define func(name string, path []string) error
	define = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			cycle := slices.Concat(path[slices.Index(path, name):], []string{name})
			return &DeclarationError{
				Where: "archetypes." + name,
				Err:   fmt.Errorf("%w: %s", compose.ErrArchetypeCycle, strings.Join(cycle, " -> ")),
			}
		}
		state[name] = visiting
		decl := kf.Archetypes[name]
		where := "archetypes." + name

		var parent *compose.Archetype
		if decl.Parent != "" {
			if _, declared := kf.Archetypes[decl.Parent]; declared {
				if err := define(decl.Parent, slices.Concat(path, []string{name})); err != nil {
					return err
				}
			}
			p, ok := s.Archetype(decl.Parent)
			if !ok {
				return &DeclarationError{Where: where + ".parent", Err: fmt.Errorf("%w: %q", ErrUnknownArchetype, decl.Parent)}
			}
			parent = p
		}

		frags, err := keys.fragments(where+".fragments", decl.Fragments)
		if err != nil {
			return err
		}
		if err := s.DefineArchetype(compose.NewArchetype(name, decl.Description, parent, frags...)); err != nil {
			return &DeclarationError{Where: where, Err: err}
		}
		state[name] = done
		return nil
	}

	for _, name := range sortedKeys(kf.Archetypes) {
		if err := define(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
