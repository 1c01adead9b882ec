// SPDX-License-Identifier: MPL-2.0

package compose

import "slices"

type (
	// Archetype is a reusable, named template of fragments. An archetype may
	// extend a parent whose fragments are applied first. Archetypes are immutable
	// once created.
	Archetype struct {
		name        string
		description string
		parent      *Archetype
		fragments   []Fragment
	}

	// Configuration is a named context (a build phase or variant such as
	// "testing") with its own fragments, shared by every project that activates it.
	Configuration struct {
		name        string
		description string
		fragments   []Fragment
	}

	// ConfigurationSet looks up shared configurations by context name.
	ConfigurationSet interface {
		Configuration(name string) (*Configuration, bool)
	}
)

// NewArchetype creates an archetype. parent may be nil.
func NewArchetype(name, description string, parent *Archetype, fragments ...Fragment) *Archetype {
	return &Archetype{
		name:        name,
		description: description,
		parent:      parent,
		fragments:   labelled(fragments, "archetype:"+name),
	}
}

// Name returns the archetype's name.
func (a *Archetype) Name() string { return a.name }

// Description returns the archetype's description.
func (a *Archetype) Description() string { return a.description }

// Parent returns the archetype this one extends, or nil.
func (a *Archetype) Parent() *Archetype { return a.parent }

// Fragments returns the archetype's own fragments, excluding the parent's.
func (a *Archetype) Fragments() []Fragment { return slices.Clone(a.fragments) }

// Lineage returns the archetype chain from the root ancestor down to a.
func (a *Archetype) Lineage() []*Archetype {
	var chain []*Archetype
	seen := make(map[*Archetype]bool)
	for cur := a; cur != nil && !seen[cur]; cur = cur.parent {
		seen[cur] = true
		chain = append(chain, cur)
	}
	slices.Reverse(chain)
	return chain
}

// NewConfiguration creates a shared configuration context.
func NewConfiguration(name, description string, fragments ...Fragment) *Configuration {
	return &Configuration{
		name:        name,
		description: description,
		fragments:   labelled(fragments, "configuration:"+name),
	}
}

// Name returns the context name of the configuration.
func (c *Configuration) Name() string { return c.name }

// Description returns the configuration's description.
func (c *Configuration) Description() string { return c.description }

// Fragments returns the configuration's fragments.
func (c *Configuration) Fragments() []Fragment { return slices.Clone(c.fragments) }

func labelled(fragments []Fragment, origin string) []Fragment {
	out := make([]Fragment, len(fragments))
	for i, f := range fragments {
		out[i] = f.WithOrigin(origin)
	}
	return out
}
