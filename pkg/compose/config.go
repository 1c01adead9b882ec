// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

type (
	// Provenance records one write to a key: which layer it came from and what
	// operation it performed.
	Provenance struct {
		Origin string    `json:"origin" yaml:"origin"`
		Op     Operation `json:"op" yaml:"op"`
	}

	// Config is an immutable effective configuration. The zero value is an empty
	// configuration ready for use. Apply never modifies its receiver.
	Config struct {
		values     map[string]any
		provenance map[string][]Provenance
	}
)

// Apply returns a new Config with the fragments applied in order. Each fragment
// sees the output of the previous one. On error the receiver is unaffected.
func (c Config) Apply(fragments ...Fragment) (Config, error) {
	if len(fragments) == 0 {
		return c, nil
	}

	next := Config{
		values:     maps.Clone(c.values),
		provenance: maps.Clone(c.provenance),
	}
	if next.values == nil {
		next.values = make(map[string]any, len(fragments))
		next.provenance = make(map[string][]Provenance, len(fragments))
	}

	for _, f := range fragments {
		prior, present := next.values[f.key]
		value, err := f.apply(prior, present)
		if err != nil {
			return c, &FragmentError{Fragment: f.String(), Origin: f.origin, Err: err}
		}
		next.values[f.key] = value
		// Clip so appends never write into a chain shared with c.
		chain := slices.Clip(next.provenance[f.key])
		next.provenance[f.key] = append(chain, Provenance{Origin: f.origin, Op: f.op})
	}

	return next, nil
}

// Get returns the value stored under k, or k's default when unset.
func Get[T any](c Config, k Key[T]) T {
	v, _ := Lookup(c, k)
	return v
}

// Lookup returns the value stored under k and whether one was written. When
// nothing was written, or the stored value has another type, it returns the
// default and false. Slices and maps are returned as copies.
func Lookup[T any](c Config, k Key[T]) (T, bool) {
	raw, ok := c.values[k.name]
	if !ok {
		return k.def, false
	}
	v, ok := raw.(T)
	if !ok {
		return k.def, false
	}
	copied, _ := shallowCopy(v).(T)
	return copied, true
}

// Has reports whether any fragment wrote the named key.
func (c Config) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Value returns the raw value of the named key.
func (c Config) Value(name string) (any, bool) {
	v, ok := c.values[name]
	return shallowCopy(v), ok
}

// Keys returns the names of all written keys, sorted.
func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// Provenance returns the ordered list of writes to the named key, base first.
func (c Config) Provenance(name string) []Provenance {
	return slices.Clone(c.provenance[name])
}

// Expand replaces ${key} references in s with the value of that key in c.
// References to unwritten keys are left untouched.
func (c Config) Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var sb strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		end += start
		name := s[start+2 : end]
		sb.WriteString(s[:start])
		if v, ok := c.values[name]; ok {
			fmt.Fprint(&sb, v)
		} else {
			sb.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	sb.WriteString(s)
	return sb.String()
}

// Equal reports whether both configurations hold the same keys with equal
// rendered values. Provenance is ignored.
func (c Config) Equal(other Config) bool {
	if len(c.values) != len(other.values) {
		return false
	}
	for name, v := range c.values {
		ov, ok := other.values[name]
		if !ok || fmt.Sprintf("%#v", v) != fmt.Sprintf("%#v", ov) {
			return false
		}
	}
	return true
}
