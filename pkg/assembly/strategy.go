// SPDX-License-Identifier: MPL-2.0

// Package assembly merges a project's compiled output and its bundled
// dependency artifacts into one deployable archive.
//
// Conflicts between sources that ship the same entry path are settled by a
// Strategy: an ordered list of rules evaluated first-match, backed by an
// explicit terminal default.
package assembly

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

const (
	// KeepFirst keeps the entry from the first source in declaration order.
	KeepFirst Action = iota
	// Concatenate joins the contents of every source, in declaration order.
	Concatenate
	// Discard drops the entry entirely, even when only one source ships it.
	Discard
	// Error aborts assembly with a MergeConflictError.
	Error
	// Delegate defers to the rules after this one.
	Delegate
)

// ErrInvalidAction is returned when an action name is not recognized.
var ErrInvalidAction = errors.New("invalid merge action")

var actionNames = map[Action]string{
	KeepFirst:   "keep_first",
	Concatenate: "concatenate",
	Discard:     "discard",
	Error:       "error",
	Delegate:    "delegate",
}

type (
	// Action tells the merger what to do with an entry path.
	Action int

	// Rule maps entry paths matching Pattern to Action. Patterns use path.Match
	// syntax. A pattern without a '/' is matched against the entry's base name,
	// so "module-info.class" also covers META-INF/versions/9/module-info.class.
	Rule struct {
		Pattern string `json:"pattern" yaml:"pattern"`
		Action  Action `json:"action" yaml:"action"`
	}

	// Strategy is an immutable, ordered rule list with a terminal default.
	// The zero value keeps the first occurrence of every entry.
	Strategy struct {
		rules    []Rule
		fallback Action
	}
)

// ParseAction converts a name such as "keep_first" to an Action.
func ParseAction(name string) (Action, error) {
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, name)
}

// String returns the action's name.
func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Matches reports whether the rule applies to the entry path.
func (r Rule) Matches(entry string) bool {
	target := entry
	if !strings.Contains(r.Pattern, "/") {
		target = path.Base(entry)
	}
	ok, err := path.Match(r.Pattern, target)
	return err == nil && ok
}

// String returns "pattern -> action".
func (r Rule) String() string {
	return r.Pattern + " -> " + r.Action.String()
}

// NewStrategy creates a strategy. A Delegate fallback has nothing left to
// delegate to and is treated as KeepFirst.
func NewStrategy(fallback Action, rules ...Rule) Strategy {
	if fallback == Delegate {
		fallback = KeepFirst
	}
	return Strategy{rules: slices.Clone(rules), fallback: fallback}
}

// DefaultStrategy discards module descriptors and jar signature noise,
// concatenates service registrations and keeps the first occurrence of
// everything else.
func DefaultStrategy() Strategy {
	return NewStrategy(KeepFirst,
		Rule{Pattern: "module-info.class", Action: Discard},
		Rule{Pattern: "META-INF/*.SF", Action: Discard},
		Rule{Pattern: "META-INF/*.DSA", Action: Discard},
		Rule{Pattern: "META-INF/*.RSA", Action: Discard},
		Rule{Pattern: "META-INF/INDEX.LIST", Action: Discard},
		Rule{Pattern: "META-INF/services/*", Action: Concatenate},
	)
}

// Wrap returns a strategy that checks rules before the inherited ones. Names
// none of the new rules match resolve exactly as they did before.
func (s Strategy) Wrap(rules ...Rule) Strategy {
	combined := make([]Rule, 0, len(rules)+len(s.rules))
	combined = append(combined, rules...)
	combined = append(combined, s.rules...)
	return Strategy{rules: combined, fallback: s.fallback}
}

// Resolve returns the action for an entry path: the first matching rule that
// does not delegate, otherwise the fallback.
func (s Strategy) Resolve(entry string) Action {
	for _, r := range s.rules {
		if r.Action == Delegate || !r.Matches(entry) {
			continue
		}
		return r.Action
	}
	return s.fallback
}

// Rules returns the strategy's rules in evaluation order.
func (s Strategy) Rules() []Rule { return slices.Clone(s.rules) }

// Fallback returns the terminal default action.
func (s Strategy) Fallback() Action { return s.fallback }

// String renders the rule list for diagnostics.
func (s Strategy) String() string {
	parts := make([]string, 0, len(s.rules)+1)
	for _, r := range s.rules {
		parts = append(parts, r.String())
	}
	parts = append(parts, "* -> "+s.fallback.String())
	return "[" + strings.Join(parts, ", ") + "]"
}
