// SPDX-License-Identifier: MPL-2.0

package kilnfile

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/pkg/assembly"
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

type (
	// binder turns one declaration into a typed fragment for a single key.
	binder func(op string, value any) (compose.Fragment, error)

	// keyTable maps key names to their binders.
	keyTable map[string]binder

	ruleDecl struct {
		Pattern string `json:"pattern"`
		Action  string `json:"action"`
	}

	strategyDecl struct {
		Fallback string     `json:"fallback"`
		Rules    []ruleDecl `json:"rules"`
	}
)

func builtinKeys() keyTable {
	t := keyTable{}
	for _, k := range []compose.Key[string]{
		project.KeyProjectName, project.KeyProjectGroup, project.KeyProjectVersion,
		project.KeyCompileCommand, project.KeyTestCommand, project.KeyTestLauncher,
		project.KeyBuildDir, project.KeyArchiveExtension, project.KeyAssemblyOutput, project.KeyDeployDir,
		project.KeyWorkspaceDir,
	} {
		t[k.Name()] = stringBinder(k)
	}
	for _, k := range []compose.Key[[]string]{project.KeySources, project.KeyResources, project.KeyTestSources} {
		t[k.Name()] = listBinder(k)
	}
	t[project.KeyLibraryDependencies.Name()] = libraryBinder
	t[project.KeyProjectDependencies.Name()] = projectDepBinder
	t[project.KeyRepositories.Name()] = repositoryBinder
	t[project.KeyMergeStrategy.Name()] = strategyBinder
	return t
}

// declare adds custom keys and returns the fragments writing their defaults.
func (t keyTable) declare(decls map[string]KeyDecl) ([]compose.Fragment, error) {
	var defaults []compose.Fragment
	for _, name := range sortedKeys(decls) {
		decl := decls[name]
		where := "keys." + name
		if _, ok := t[name]; ok {
			return nil, &DeclarationError{Where: where, Err: &project.DuplicateDefinitionError{Kind: "key", Name: name}}
		}
		switch decl.Type {
		case "string":
			k := compose.NewKey[string](name, decl.Description)
			t[name] = stringBinder(k)
			if decl.Default != nil {
				v, err := asString(decl.Default)
				if err != nil {
					return nil, &DeclarationError{Where: where + ".default", Err: err}
				}
				defaults = append(defaults, compose.Set(k, v))
			}
		case "list":
			k := compose.NewKey[[]string](name, decl.Description)
			t[name] = listBinder(k)
			if decl.Default != nil {
				v, err := asStrings(decl.Default)
				if err != nil {
					return nil, &DeclarationError{Where: where + ".default", Err: err}
				}
				defaults = append(defaults, compose.Set(k, v))
			}
		default:
			return nil, &DeclarationError{Where: where + ".type", Err: fmt.Errorf("%w: type %q", ErrInvalidValue, decl.Type)}
		}
	}
	return defaults, nil
}

// fragments binds a list of declarations; where prefixes error locations.
func (t keyTable) fragments(where string, decls []FragmentDecl) ([]compose.Fragment, error) {
	out := make([]compose.Fragment, 0, len(decls))
	for i, d := range decls {
		bind, ok := t[d.Key]
		if !ok {
			return nil, &DeclarationError{Where: fmt.Sprintf("%s[%d]", where, i), Err: fmt.Errorf("%w: %q", ErrUnknownKey, d.Key)}
		}
		op := d.Op
		if op == "" {
			op = "set"
		}
		f, err := bind(op, d.Value)
		if err != nil {
			return nil, &DeclarationError{Where: fmt.Sprintf("%s[%d]", where, i), Err: err}
		}
		out = append(out, f)
	}
	return out, nil
}

func unsupported(op string, k string) error {
	return fmt.Errorf("%w: %s %s", ErrUnsupportedOperation, op, k)
}

func stringBinder(k compose.Key[string]) binder {
	return func(op string, value any) (compose.Fragment, error) {
		v, err := asString(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		switch op {
		case "set":
			return compose.Set(k, v), nil
		case "append":
			return compose.Modify(k, func(s string) string { return s + v }), nil
		default:
			return compose.Fragment{}, unsupported(op, k.Name())
		}
	}
}

func listBinder(k compose.Key[[]string]) binder {
	return func(op string, value any) (compose.Fragment, error) {
		vs, err := asStrings(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		switch op {
		case "set":
			return compose.Set(k, vs), nil
		case "add":
			return compose.Add(k, vs...), nil
		case "remove":
			return compose.Filter(k, func(s string) bool { return !slices.Contains(vs, s) }), nil
		default:
			return compose.Fragment{}, unsupported(op, k.Name())
		}
	}
}

func libraryBinder(op string, value any) (compose.Fragment, error) {
	k := project.KeyLibraryDependencies
	switch op {
	case "set", "add":
		deps, err := asLibraries(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		if op == "set" {
			return compose.Set(k, deps), nil
		}
		return compose.Add(k, deps...), nil
	case "remove":
		// "group:artifact" drops every version; "group:artifact:version" only that one.
		coords, err := asStrings(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		return compose.Filter(k, func(d dependency.Dependency) bool {
			for _, c := range coords {
				if c == d.Key() || c == d.Coordinate.String() {
					return false
				}
			}
			return true
		}), nil
	case "remove_scope":
		scopes, err := asScopes(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		return compose.Filter(k, func(d dependency.Dependency) bool { return !slices.Contains(scopes, d.Scope) }), nil
	default:
		return compose.Fragment{}, unsupported(op, k.Name())
	}
}

func projectDepBinder(op string, value any) (compose.Fragment, error) {
	k := project.KeyProjectDependencies
	switch op {
	case "set", "add":
		deps, err := asProjectDependencies(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		if op == "set" {
			return compose.Set(k, deps), nil
		}
		return compose.Add(k, deps...), nil
	case "remove":
		names, err := asStrings(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		return compose.Filter(k, func(d project.Dependency) bool { return !slices.Contains(names, d.Project) }), nil
	case "remove_scope":
		scopes, err := asScopes(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		return compose.Filter(k, func(d project.Dependency) bool {
			scope := d.Scope
			if scope == "" {
				scope = dependency.ScopeCompile
			}
			return !slices.Contains(scopes, scope)
		}), nil
	default:
		return compose.Fragment{}, unsupported(op, k.Name())
	}
}

func repositoryBinder(op string, value any) (compose.Fragment, error) {
	k := project.KeyRepositories
	switch op {
	case "set", "add":
		repos, err := asRepositories(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		if op == "set" {
			return compose.Set(k, repos), nil
		}
		return compose.Add(k, repos...), nil
	case "remove":
		names, err := asStrings(value)
		if err != nil {
			return compose.Fragment{}, err
		}
		return compose.Filter(k, func(r dependency.Repository) bool { return !slices.Contains(names, r.Name) }), nil
	default:
		return compose.Fragment{}, unsupported(op, k.Name())
	}
}

func strategyBinder(op string, value any) (compose.Fragment, error) {
	k := project.KeyMergeStrategy
	switch op {
	case "set":
		var decl strategyDecl
		if err := decode(value, &decl); err != nil {
			return compose.Fragment{}, err
		}
		fallback := assembly.KeepFirst
		if decl.Fallback != "" {
			a, err := assembly.ParseAction(decl.Fallback)
			if err != nil {
				return compose.Fragment{}, err
			}
			fallback = a
		}
		rules, err := toRules(decl.Rules)
		if err != nil {
			return compose.Fragment{}, err
		}
		return compose.Set(k, assembly.NewStrategy(fallback, rules...)), nil
	case "add":
		var decls []ruleDecl
		if err := decode(asList(value), &decls); err != nil {
			return compose.Fragment{}, err
		}
		rules, err := toRules(decls)
		if err != nil {
			return compose.Fragment{}, err
		}
		return compose.Modify(k, func(s assembly.Strategy) assembly.Strategy { return s.Wrap(rules...) }), nil
	default:
		return compose.Fragment{}, unsupported(op, k.Name())
	}
}

func toRules(decls []ruleDecl) ([]assembly.Rule, error) {
	rules := make([]assembly.Rule, 0, len(decls))
	for _, d := range decls {
		if d.Pattern == "" {
			return nil, fmt.Errorf("%w: merge rule without pattern", ErrInvalidValue)
		}
		a, err := assembly.ParseAction(d.Action)
		if err != nil {
			return nil, err
		}
		rules = append(rules, assembly.Rule{Pattern: d.Pattern, Action: a})
	}
	return rules, nil
}

// asList wraps a single value so "add" accepts either one item or a list.
func asList(value any) []any {
	if list, ok := value.([]any); ok {
		return list
	}
	return []any{value}
}

func asString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: want a string, got %T", ErrInvalidValue, value)
	}
	return s, nil
}

func asStrings(value any) ([]string, error) {
	items := asList(value)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := asString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func asScopes(value any) ([]dependency.Scope, error) {
	names, err := asStrings(value)
	if err != nil {
		return nil, err
	}
	scopes := make([]dependency.Scope, len(names))
	for i, n := range names {
		scopes[i] = dependency.Scope(n)
		if err := scopes[i].Validate(); err != nil {
			return nil, err
		}
	}
	return scopes, nil
}

// asLibraries accepts "group:artifact:version[:scope]" strings and
// {group, artifact, version, scope} objects.
func asLibraries(value any) ([]dependency.Dependency, error) {
	items := asList(value)
	out := make([]dependency.Dependency, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			d, err := dependency.Parse(s)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
			continue
		}
		var d dependency.Dependency
		if err := decode(item, &d); err != nil {
			return nil, err
		}
		d = dependency.New(d.Group, d.Artifact, d.Version, d.Scope)
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// asProjectDependencies accepts "Name", "Name:scope" and {project, scope}.
func asProjectDependencies(value any) ([]project.Dependency, error) {
	items := asList(value)
	out := make([]project.Dependency, 0, len(items))
	for _, item := range items {
		var d project.Dependency
		if s, ok := item.(string); ok {
			name, scope, _ := strings.Cut(s, ":")
			d = project.Dependency{Project: name, Scope: dependency.Scope(scope)}
		} else if err := decode(item, &d); err != nil {
			return nil, err
		}
		if d.Project == "" {
			return nil, fmt.Errorf("%w: project dependency without a project name", ErrInvalidValue)
		}
		if d.Scope != "" {
			if err := d.Scope.Validate(); err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// asRepositories accepts well-known names ("central", "jitpack",
// "sonatype:snapshots") and {name, url} objects.
func asRepositories(value any) ([]dependency.Repository, error) {
	items := asList(value)
	out := make([]dependency.Repository, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			r, known := dependency.WellKnown(s)
			if !known {
				return nil, fmt.Errorf("%w: unknown repository %q (use {name, url})", ErrInvalidValue, s)
			}
			out = append(out, r)
			continue
		}
		var r dependency.Repository
		if err := decode(item, &r); err != nil {
			return nil, err
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// decode converts a generic CUE value into a typed Go value through its JSON form.
func decode(value, out any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}
