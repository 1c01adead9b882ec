// SPDX-License-Identifier: MPL-2.0

package project

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

const (
	identityOrigin = "identity"
	seedOrigin     = "project"
)

type (
	// Dependency is a dependency on another project of the same session.
	// Provided project dependencies are compiled against but never bundled.
	Dependency struct {
		Project string           `json:"project" yaml:"project"`
		Scope   dependency.Scope `json:"scope" yaml:"scope"`
	}

	// Identity is a project's pinned coordinates.
	Identity struct {
		Name    string `json:"name" yaml:"name"`
		Group   string `json:"group" yaml:"group"`
		Version string `json:"version" yaml:"version"`
	}

	// Project is a buildable unit: a root directory and the layering that
	// produces its configuration. Its identity is computed once, from the
	// context-free evaluation, and cannot be changed by any context.
	Project struct {
		name     string
		root     string
		layering compose.Layering
		session  *Session
		identity Identity
	}
)

// Name returns the name the project is registered under.
func (p *Project) Name() string { return p.name }

// Root returns the project's root directory.
func (p *Project) Root() string { return p.root }

// Identity returns the project's pinned coordinates.
func (p *Project) Identity() Identity { return p.identity }

// Layering returns a copy of the project's layering.
func (p *Project) Layering() compose.Layering { return p.layering.Clone() }

// String returns "group:name:version".
func (id Identity) String() string {
	return fmt.Sprintf("%s:%s:%s", id.Group, id.Name, id.Version)
}

func (p *Project) seed() (compose.Config, error) {
	var cfg compose.Config
	cfg, err := cfg.Apply(p.session.defaults...)
	if err != nil {
		return compose.Config{}, err
	}
	return cfg.Apply(compose.Set(KeyProjectName, p.name).WithOrigin(seedOrigin))
}

func (p *Project) pinIdentity() error {
	seed, err := p.seed()
	if err != nil {
		return err
	}
	base, err := p.layering.Base(seed)
	if err != nil {
		return fmt.Errorf("project %s: %w", p.name, err)
	}
	p.identity = Identity{
		Name:    compose.Get(base, KeyProjectName),
		Group:   compose.Get(base, KeyProjectGroup),
		Version: compose.Get(base, KeyProjectVersion),
	}
	return nil
}

// Effective evaluates the project's configuration for a context stack. Each
// call starts from scratch, so contexts never leak between evaluations.
func (p *Project) Effective(contexts ...string) (compose.Config, error) {
	seed, err := p.seed()
	if err != nil {
		return compose.Config{}, err
	}
	cfg, err := p.layering.Evaluate(seed, p.session, contexts...)
	if err != nil {
		return compose.Config{}, fmt.Errorf("project %s: %w", p.name, err)
	}

	var pins []compose.Fragment
	if compose.Get(cfg, KeyProjectName) != p.identity.Name {
		pins = append(pins, compose.Set(KeyProjectName, p.identity.Name))
	}
	if compose.Get(cfg, KeyProjectGroup) != p.identity.Group {
		pins = append(pins, compose.Set(KeyProjectGroup, p.identity.Group))
	}
	if compose.Get(cfg, KeyProjectVersion) != p.identity.Version {
		pins = append(pins, compose.Set(KeyProjectVersion, p.identity.Version))
	}
	for i := range pins {
		pins[i] = pins[i].WithOrigin(identityOrigin)
	}
	return cfg.Apply(pins...)
}

// Dependencies returns the external dependencies visible to a phase, with
// ${key} references in versions expanded against the phase's configuration.
func (p *Project) Dependencies(phase dependency.Phase, extra ...string) ([]dependency.Dependency, error) {
	cfg, err := p.Effective(ContextsFor(phase, extra...)...)
	if err != nil {
		return nil, err
	}
	return PhaseDependencies(cfg, phase), nil
}

// PhaseDependencies reads library_dependencies from an evaluated
// configuration and filters them for phase.
func PhaseDependencies(cfg compose.Config, phase dependency.Phase) []dependency.Dependency {
	return dependency.ForPhase(declaredDependencies(cfg), phase)
}

// ResolvePhase resolves the library dependencies a phase sees. Declarations
// the phase filters out are excluded from the transitive walk, and transitive
// entries whose scope the phase does not see are dropped.
func ResolvePhase(ctx context.Context, r *dependency.Resolver, cfg compose.Config, phase dependency.Phase) ([]dependency.Resolved, error) {
	declared := declaredDependencies(cfg)
	visible := dependency.ForPhase(declared, phase)

	in := make(map[string]bool, len(visible))
	for _, d := range visible {
		in[d.Key()] = true
	}
	var excluded []dependency.Coordinate
	for _, d := range declared {
		if !in[d.Key()] {
			excluded = append(excluded, d.Coordinate)
		}
	}

	resolved, err := r.Resolve(ctx, compose.Get(cfg, KeyRepositories), visible, dependency.Excluding(excluded...))
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(resolved, func(res dependency.Resolved) bool {
		return !phase.Includes(res.Dependency.Scope)
	}), nil
}

func declaredDependencies(cfg compose.Config) []dependency.Dependency {
	deps := compose.Get(cfg, KeyLibraryDependencies)
	for i := range deps {
		deps[i].Group = cfg.Expand(deps[i].Group)
		deps[i].Artifact = cfg.Expand(deps[i].Artifact)
		deps[i].Version = cfg.Expand(deps[i].Version)
	}
	return deps
}

// ProjectDependencies returns the project dependencies visible to a phase,
// first declaration of each project winning.
func (p *Project) ProjectDependencies(phase dependency.Phase, extra ...string) ([]Dependency, error) {
	cfg, err := p.Effective(ContextsFor(phase, extra...)...)
	if err != nil {
		return nil, err
	}
	return PhaseProjectDependencies(cfg, phase), nil
}

// PhaseProjectDependencies reads project_dependencies from an evaluated
// configuration and filters them for phase.
func PhaseProjectDependencies(cfg compose.Config, phase dependency.Phase) []Dependency {
	var out []Dependency
	for _, d := range compose.Get(cfg, KeyProjectDependencies) {
		if d.Scope == "" {
			d.Scope = dependency.ScopeCompile
		}
		if !phase.Includes(d.Scope) {
			continue
		}
		if slices.ContainsFunc(out, func(o Dependency) bool { return o.Project == d.Project }) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Resolve makes a path from the configuration absolute against the project root.
func (p *Project) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

// BuildDir returns the absolute build directory for an evaluated configuration.
func (p *Project) BuildDir(cfg compose.Config) string {
	return p.Resolve(cfg.Expand(compose.Get(cfg, KeyBuildDir)))
}

// OutputPath returns where the assembled archive is written:
// assembly_output_file when set, otherwise {build_dir}/{name}-{version}.{ext}.
func (p *Project) OutputPath(cfg compose.Config) string {
	if out, ok := compose.Lookup(cfg, KeyAssemblyOutput); ok && out != "" {
		return p.Resolve(cfg.Expand(out))
	}
	ext := compose.Get(cfg, KeyArchiveExtension)
	return filepath.Join(p.BuildDir(cfg), fmt.Sprintf("%s-%s.%s", p.identity.Name, p.identity.Version, ext))
}

// SourceRoots returns the absolute source roots for an evaluated
// configuration. test adds the test source roots.
func (p *Project) SourceRoots(cfg compose.Config, test bool) []string {
	roots := compose.Get(cfg, KeySources)
	if test {
		roots = append(roots, compose.Get(cfg, KeyTestSources)...)
	}
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = p.Resolve(cfg.Expand(r))
	}
	return out
}

// ResourceRoots returns the absolute resource roots.
func (p *Project) ResourceRoots(cfg compose.Config) []string {
	roots := compose.Get(cfg, KeyResources)
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = p.Resolve(cfg.Expand(r))
	}
	return out
}
