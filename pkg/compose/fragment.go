// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"fmt"
	"reflect"
	"slices"
)

const (
	// OpSet replaces the value of a key.
	OpSet Operation = "set"
	// OpAdd appends one or more elements to a list key.
	OpAdd Operation = "add"
	// OpModify derives a new value from the prior one.
	OpModify Operation = "modify"
)

type (
	// Operation names the kind of mutation a Fragment performs.
	Operation string

	// applyFunc computes the next value of a key from its prior value.
	// present reports whether a prior value was written by an earlier fragment.
	applyFunc func(prior any, present bool) (any, error)

	// Fragment is one atomic mutation of a configuration key. Fragments are
	// values: copying one and changing its origin never affects the original.
	Fragment struct {
		key    string
		op     Operation
		origin string
		apply  applyFunc
	}
)

// Key returns the name of the key the fragment writes.
func (f Fragment) Key() string { return f.key }

// Op returns the fragment's operation.
func (f Fragment) Op() Operation { return f.op }

// Origin returns the layer label the fragment was declared in, if any.
func (f Fragment) Origin() string { return f.origin }

// WithOrigin returns a copy of f labelled with origin. Fragments that already
// carry an origin keep it, so labels set closest to the declaration win.
func (f Fragment) WithOrigin(origin string) Fragment {
	if f.origin == "" {
		f.origin = origin
	}
	return f
}

// String returns a short description like "set project_version".
func (f Fragment) String() string {
	return string(f.op) + " " + f.key
}

// Set returns a fragment that replaces the value of k with v. A prior value
// of another type is a KeyTypeError, not a silent replacement.
func Set[T any](k Key[T], v T) Fragment {
	return Fragment{
		key: k.name,
		op:  OpSet,
		apply: func(prior any, present bool) (any, error) {
			if _, err := typedPrior(k, prior, present); err != nil {
				return nil, err
			}
			return shallowCopy(v), nil
		},
	}
}

// Add returns a fragment that appends elems to the list stored under k.
// The result is always a freshly allocated slice.
func Add[E any](k Key[[]E], elems ...E) Fragment {
	added := slices.Clone(elems)
	return Fragment{
		key: k.name,
		op:  OpAdd,
		apply: func(prior any, present bool) (any, error) {
			current, err := typedPrior(k, prior, present)
			if err != nil {
				return nil, err
			}
			next := make([]E, 0, len(current)+len(added))
			next = append(next, current...)
			return append(next, added...), nil
		},
	}
}

// Modify returns a fragment that replaces the value of k with fn(prior). When
// nothing was written before, fn receives the key's default. Slices and maps are
// copied before fn sees them, so fn may edit its argument in place.
func Modify[T any](k Key[T], fn func(T) T) Fragment {
	return Fragment{
		key: k.name,
		op:  OpModify,
		apply: func(prior any, present bool) (any, error) {
			current, err := typedPrior(k, prior, present)
			if err != nil {
				return nil, err
			}
			copied, _ := shallowCopy(current).(T)
			return fn(copied), nil
		},
	}
}

// Filter returns a Modify fragment keeping only the list elements for which
// keep returns true.
func Filter[E any](k Key[[]E], keep func(E) bool) Fragment {
	return Modify(k, func(list []E) []E {
		return slices.DeleteFunc(list, func(e E) bool { return !keep(e) })
	})
}

func typedPrior[T any](k Key[T], prior any, present bool) (T, error) {
	if !present {
		return k.def, nil
	}
	v, ok := prior.(T)
	if !ok {
		var want T
		return want, &KeyTypeError{Key: k.name, Want: fmt.Sprintf("%T", want), Got: fmt.Sprintf("%T", prior)}
	}
	return v, nil
}

// shallowCopy clones slices and maps one level deep so that stored values never
// share a backing array or map with caller-owned data.
func shallowCopy(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	default:
		return v
	}
}
