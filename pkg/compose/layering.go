// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"maps"
	"slices"
)

// Layering describes how one project's effective configuration is built:
// archetypes first, then the project's own fragments, then the overrides of
// each active context.
//
// Overrides keyed by the name of an archetype in the chain extend that
// archetype in place: they run right after its fragments, in the base layer,
// without touching the archetype itself. All other override keys are context
// names and only apply while that context is active.
type Layering struct {
	Archetypes []*Archetype
	Fragments  []Fragment
	Overrides  map[string][]Fragment
}

// Clone returns a deep copy of the layering's lists.
func (l Layering) Clone() Layering {
	out := Layering{
		Archetypes: slices.Clone(l.Archetypes),
		Fragments:  slices.Clone(l.Fragments),
		Overrides:  make(map[string][]Fragment, len(l.Overrides)),
	}
	for name, frags := range l.Overrides {
		out.Overrides[name] = slices.Clone(frags)
	}
	return out
}

// ArchetypeChain returns every archetype the layering applies, ancestors before
// descendants, each at most once, in declaration order.
func (l Layering) ArchetypeChain() []*Archetype {
	var chain []*Archetype
	seen := make(map[string]bool)
	for _, a := range l.Archetypes {
		for _, link := range a.Lineage() {
			if seen[link.name] {
				continue
			}
			seen[link.name] = true
			chain = append(chain, link)
		}
	}
	return chain
}

// Base evaluates the layering with no active context.
func (l Layering) Base(seed Config) (Config, error) {
	cfg := seed
	for _, a := range l.ArchetypeChain() {
		var err error
		if cfg, err = cfg.Apply(a.fragments...); err != nil {
			return Config{}, err
		}
		if ext, ok := l.Overrides[a.name]; ok {
			if cfg, err = cfg.Apply(labelled(ext, "extend:"+a.name)...); err != nil {
				return Config{}, err
			}
		}
	}
	return cfg.Apply(labelled(l.Fragments, "project")...)
}

// Evaluate returns the effective configuration for the given context stack.
// For each context, in order, the shared configuration of that name (if any)
// is applied and then the layering's override for it (if any). Unknown
// contexts are not an error; they contribute nothing.
func (l Layering) Evaluate(seed Config, configs ConfigurationSet, contexts ...string) (Config, error) {
	cfg, err := l.Base(seed)
	if err != nil {
		return Config{}, err
	}

	archetypeNames := make(map[string]bool)
	for _, a := range l.ArchetypeChain() {
		archetypeNames[a.name] = true
	}

	for _, name := range contexts {
		if configs != nil {
			if shared, ok := configs.Configuration(name); ok {
				if cfg, err = cfg.Apply(shared.fragments...); err != nil {
					return Config{}, err
				}
			}
		}
		if archetypeNames[name] {
			continue
		}
		if ext, ok := l.Overrides[name]; ok {
			if cfg, err = cfg.Apply(labelled(ext, "extend:"+name)...); err != nil {
				return Config{}, err
			}
		}
	}
	return cfg, nil
}

// ContextNames returns the names of all overrides declared on the layering, sorted.
func (l Layering) ContextNames() []string {
	return slices.Sorted(maps.Keys(l.Overrides))
}
