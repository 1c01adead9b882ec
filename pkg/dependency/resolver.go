// SPDX-License-Identifier: MPL-2.0

package dependency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrNotFound is returned by a Fetcher when a repository cannot supply an
// artifact. Any other error aborts resolution.
var ErrNotFound = errors.New("artifact not found in repository")

// ErrUnresolvedDependency is the sentinel error wrapped by UnresolvedDependencyError.
var ErrUnresolvedDependency = errors.New("unresolved dependency")

type (
	// Artifact is a fetched dependency: where it came from, where its bytes are,
	// and which dependencies it declares itself.
	Artifact struct {
		Coordinate Coordinate
		Repository Repository
		Path       string
		Transitive []Dependency
	}

	// Resolved pairs a dependency (with its effective scope) and its artifact.
	Resolved struct {
		Dependency Dependency
		Artifact   Artifact
	}

	// ResolveOption adjusts a single Resolve call.
	ResolveOption func(*resolveOptions)

	resolveOptions struct {
		excluded []Coordinate
	}

	// Fetcher supplies artifacts from a single repository.
	Fetcher interface {
		Fetch(ctx context.Context, repo Repository, coord Coordinate) (Artifact, error)
	}

	// UnresolvedDependencyError is returned when no repository supplies a
	// declared artifact. Availability is not expected to change within a
	// session, so callers should not retry.
	UnresolvedDependencyError struct {
		Dependency Dependency
		Tried      []string
		// RequiredBy is set for transitive dependencies.
		RequiredBy string
	}

	// Resolver maps declared dependencies to artifacts using first-match
	// repository precedence. It memoizes lookups and is safe for concurrent use.
	Resolver struct {
		fetcher Fetcher

		mu    sync.Mutex
		cache map[string]Artifact
	}
)

// Error implements the error interface.
func (e *UnresolvedDependencyError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no repository supplies %s", e.Dependency.Coordinate)
	if e.RequiredBy != "" {
		fmt.Fprintf(&sb, " (required by %s)", e.RequiredBy)
	}
	if len(e.Tried) > 0 {
		fmt.Fprintf(&sb, "; tried %s", strings.Join(e.Tried, ", "))
	}
	return sb.String()
}

// Unwrap returns ErrUnresolvedDependency for errors.Is() compatibility.
func (e *UnresolvedDependencyError) Unwrap() error { return ErrUnresolvedDependency }

// NewResolver creates a resolver backed by fetcher.
func NewResolver(fetcher Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher, cache: make(map[string]Artifact)}
}

// Excluding marks group:artifact pairs as already seen, so neither they nor
// anything reached only through them are resolved. Callers pass the
// declarations a phase filters out, which keeps a provided dependency out of
// the runtime set even when a bundled library pulls it in.
func Excluding(coords ...Coordinate) ResolveOption {
	return func(o *resolveOptions) {
		o.excluded = append(o.excluded, coords...)
	}
}

// Resolve fetches every dependency and its transitive dependencies. The result
// lists declared dependencies first in declaration order, followed by
// transitive ones breadth-first. A transitive dependency inherits the scope of
// the dependency that pulled it in, narrowed to runtime when a compile
// dependency declares it runtime-only; a group:artifact already seen is skipped.
func (r *Resolver) Resolve(ctx context.Context, repos []Repository, deps []Dependency, opts ...ResolveOption) ([]Resolved, error) {
	type pending struct {
		dep        Dependency
		requiredBy string
	}

	var options resolveOptions
	for _, opt := range opts {
		opt(&options)
	}

	queue := make([]pending, 0, len(deps))
	seen := make(map[string]bool, len(deps)+len(options.excluded))
	for _, c := range options.excluded {
		seen[c.Key()] = true
	}
	for _, d := range deps {
		if seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true
		queue = append(queue, pending{dep: d})
	}

	var out []Resolved
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve canceled: %w", err)
		}

		art, err := r.fetchFirst(ctx, repos, next.dep.Coordinate)
		if err != nil {
			var unresolved *UnresolvedDependencyError
			if errors.As(err, &unresolved) {
				unresolved.Dependency = next.dep
				unresolved.RequiredBy = next.requiredBy
			}
			return nil, err
		}
		out = append(out, Resolved{Dependency: next.dep, Artifact: art})

		for _, t := range art.Transitive {
			if seen[t.Key()] {
				continue
			}
			seen[t.Key()] = true
			t.Scope = transitiveScope(next.dep.Scope, t.Scope)
			queue = append(queue, pending{dep: t, requiredBy: next.dep.Coordinate.String()})
		}
	}
	return out, nil
}

// transitiveScope is the scope a transitive dependency declared with declared
// takes on when reached through a dependency of scope parent.
func transitiveScope(parent, declared Scope) Scope {
	if parent == ScopeCompile && declared == ScopeRuntime {
		return ScopeRuntime
	}
	return parent
}

// fetchFirst asks each repository in order and returns the first hit.
func (r *Resolver) fetchFirst(ctx context.Context, repos []Repository, coord Coordinate) (Artifact, error) {
	cacheKey := coord.String() + "|" + repoListKey(repos)
	r.mu.Lock()
	cached, ok := r.cache[cacheKey]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	tried := make([]string, 0, len(repos))
	for _, repo := range repos {
		art, err := r.fetcher.Fetch(ctx, repo, coord)
		if errors.Is(err, ErrNotFound) {
			tried = append(tried, repo.Name)
			continue
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("fetch %s from %s: %w", coord, repo.Name, err)
		}
		art.Coordinate = coord
		art.Repository = repo
		slog.Debug("resolved artifact", "coordinate", coord.String(), "repository", repo.Name)

		r.mu.Lock()
		r.cache[cacheKey] = art
		r.mu.Unlock()
		return art, nil
	}
	return Artifact{}, &UnresolvedDependencyError{Dependency: Dependency{Coordinate: coord}, Tried: tried}
}

func repoListKey(repos []Repository) string {
	names := make([]string, len(repos))
	for i, repo := range repos {
		names[i] = repo.Name + "=" + repo.URL
	}
	return strings.Join(names, ",")
}
