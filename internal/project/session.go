// SPDX-License-Identifier: MPL-2.0

// Package project holds the projects of a build definition, the shared
// archetypes and configurations they compose, and the project dependency
// graph that orders their builds.
package project

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/invowk/kiln/internal/dag"
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

var projectNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// Session is the registry of one build definition. Register everything, then
// call Validate before building. A validated session is read-only and safe
// for concurrent use.
type Session struct {
	archetypes     map[string]*compose.Archetype
	archetypeOrder []string
	configurations map[string]*compose.Configuration
	configOrder    []string
	builtinConfigs map[string]bool
	projects       map[string]*Project
	projectOrder   []string
	defaults       []compose.Fragment
}

// NewSession creates a session with the built-in archetypes and the compile,
// testing and assembly configurations registered.
func NewSession(defaults ...compose.Fragment) *Session {
	s := &Session{
		archetypes:     make(map[string]*compose.Archetype),
		configurations: make(map[string]*compose.Configuration),
		builtinConfigs: make(map[string]bool),
		projects:       make(map[string]*Project),
	}
	for _, f := range defaults {
		s.defaults = append(s.defaults, f.WithOrigin("defaults"))
	}
	for _, a := range []*compose.Archetype{JavaProject, JUnitLayer} {
		s.archetypes[a.Name()] = a
		s.archetypeOrder = append(s.archetypeOrder, a.Name())
	}
	for _, c := range builtinConfigurations() {
		s.configurations[c.Name()] = c
		s.configOrder = append(s.configOrder, c.Name())
		s.builtinConfigs[c.Name()] = true
	}
	return s
}

// DefineArchetype registers an archetype.
func (s *Session) DefineArchetype(a *compose.Archetype) error {
	if _, ok := s.archetypes[a.Name()]; ok {
		return &DuplicateDefinitionError{Kind: "archetype", Name: a.Name()}
	}
	s.archetypes[a.Name()] = a
	s.archetypeOrder = append(s.archetypeOrder, a.Name())
	return nil
}

// DefineConfiguration registers a shared configuration. A built-in
// configuration of the same name is replaced; any other collision is an error.
func (s *Session) DefineConfiguration(c *compose.Configuration) error {
	if _, ok := s.configurations[c.Name()]; ok {
		if !s.builtinConfigs[c.Name()] {
			return &DuplicateDefinitionError{Kind: "configuration", Name: c.Name()}
		}
		delete(s.builtinConfigs, c.Name())
		s.configurations[c.Name()] = c
		return nil
	}
	s.configurations[c.Name()] = c
	s.configOrder = append(s.configOrder, c.Name())
	return nil
}

// AddProject registers a project and pins its identity.
func (s *Session) AddProject(name, root string, layering compose.Layering) (*Project, error) {
	if !projectNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}
	if _, ok := s.projects[name]; ok {
		return nil, &DuplicateProjectError{Name: name}
	}
	p := &Project{name: name, root: root, layering: layering.Clone(), session: s}
	if err := p.pinIdentity(); err != nil {
		return nil, err
	}
	s.projects[name] = p
	s.projectOrder = append(s.projectOrder, name)
	return p, nil
}

// Archetype returns a registered archetype.
func (s *Session) Archetype(name string) (*compose.Archetype, bool) {
	a, ok := s.archetypes[name]
	return a, ok
}

// Archetypes returns every archetype in registration order.
func (s *Session) Archetypes() []*compose.Archetype {
	out := make([]*compose.Archetype, len(s.archetypeOrder))
	for i, n := range s.archetypeOrder {
		out[i] = s.archetypes[n]
	}
	return out
}

// Configuration implements compose.ConfigurationSet.
func (s *Session) Configuration(name string) (*compose.Configuration, bool) {
	c, ok := s.configurations[name]
	return c, ok
}

// Configurations returns every configuration in registration order.
func (s *Session) Configurations() []*compose.Configuration {
	out := make([]*compose.Configuration, len(s.configOrder))
	for i, n := range s.configOrder {
		out[i] = s.configurations[n]
	}
	return out
}

// Project returns a registered project.
func (s *Session) Project(name string) (*Project, error) {
	p, ok := s.projects[name]
	if !ok {
		return nil, &UnknownProjectError{Name: name}
	}
	return p, nil
}

// Projects returns every project in registration order.
func (s *Session) Projects() []*Project {
	out := make([]*Project, len(s.projectOrder))
	for i, n := range s.projectOrder {
		out[i] = s.projects[n]
	}
	return out
}

// Validate checks the project graph: every project dependency must name a
// defined project and the graph must be acyclic. It runs before anything is
// resolved or compiled.
func (s *Session) Validate() error {
	_, err := s.Graph()
	return err
}

// Graph builds the project dependency graph for the given user contexts. An
// edge runs from a dependency to its dependent. Edges from every phase are
// included, so a test-only project dependency still orders the build.
func (s *Session) Graph(extra ...string) (*dag.Graph, error) {
	g := dag.New()
	for _, name := range s.projectOrder {
		g.AddNode(name)
	}
	phases := []dependency.Phase{dependency.PhaseCompile, dependency.PhaseTest, dependency.PhaseRuntime}
	for _, name := range s.projectOrder {
		p := s.projects[name]
		for _, phase := range phases {
			deps, err := p.ProjectDependencies(phase, extra...)
			if err != nil {
				return nil, err
			}
			for _, d := range deps {
				if _, ok := s.projects[d.Project]; !ok {
					return nil, &UnknownProjectError{Name: d.Project, RequiredBy: name}
				}
				g.AddEdge(d.Project, name)
			}
		}
	}

	if _, err := g.Levels(); err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CyclicProjectDependencyError{Cycle: cycleErr.Cycle}
		}
		return nil, err
	}
	return g, nil
}
