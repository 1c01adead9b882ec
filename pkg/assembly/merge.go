// SPDX-License-Identifier: MPL-2.0

package assembly

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMergeConflict is the sentinel error wrapped by MergeConflictError.
var ErrMergeConflict = errors.New("assembly merge conflict")

type (
	// Entry is one file contributed to the archive by a source artifact.
	Entry struct {
		Path    string
		Source  string
		Content []byte
	}

	// Merged is the outcome for one distinct archive path.
	Merged struct {
		Path    string
		Content []byte
		Sources []string
		Action  Action
	}

	// MergeConflictError is returned when the strategy says Error for a path
	// that more than one source ships.
	MergeConflictError struct {
		Path    string
		Sources []string
	}
)

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("entry %q is shipped by %s and the merge strategy forbids duplicates",
		e.Path, strings.Join(e.Sources, ", "))
}

// Unwrap returns ErrMergeConflict for errors.Is() compatibility.
func (e *MergeConflictError) Unwrap() error { return ErrMergeConflict }

// Merge groups entries by path in first-encounter order and applies the
// strategy. Entries must be given in dependency declaration order. Discard
// applies to every matching path; the other actions only matter when more
// than one source ships the path. Discarded paths are reported with a nil
// Content and Action Discard so callers can account for them.
func Merge(entries []Entry, s Strategy) ([]Merged, error) {
	var order []string
	groups := make(map[string][]Entry)
	for _, e := range entries {
		if _, ok := groups[e.Path]; !ok {
			order = append(order, e.Path)
		}
		groups[e.Path] = append(groups[e.Path], e)
	}

	out := make([]Merged, 0, len(order))
	for _, p := range order {
		group := groups[p]
		sources := make([]string, len(group))
		for i, e := range group {
			sources[i] = e.Source
		}

		action := s.Resolve(p)
		m := Merged{Path: p, Sources: sources, Action: action}
		switch {
		case action == Discard:
		case len(group) == 1:
			m.Action = KeepFirst
			m.Content = group[0].Content
		case action == Error:
			return nil, &MergeConflictError{Path: p, Sources: sources}
		case action == Concatenate:
			m.Content = concatenate(group)
		default:
			m.Action = KeepFirst
			m.Content = group[0].Content
		}
		out = append(out, m)
	}
	return out, nil
}

// concatenate joins contents, inserting a newline where a part does not end
// with one so line-oriented files such as service registrations stay valid.
func concatenate(group []Entry) []byte {
	var buf bytes.Buffer
	for i, e := range group {
		buf.Write(e.Content)
		if i < len(group)-1 && len(e.Content) > 0 && !bytes.HasSuffix(e.Content, []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}
