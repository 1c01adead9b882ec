// SPDX-License-Identifier: MPL-2.0

// Package dag orders projects by their project dependencies. It produces
// topological levels whose members can be built concurrently, and reports
// cycles as an ordered path so the loop can be read directly from the error.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports a cycle as a closed path: the first node is repeated
	// at the end, e.g. [A B A].
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph. An edge from A to B means A must be built
	// before B. Nodes keep insertion order so results are deterministic.
	Graph struct {
		adjacency map[string][]string
		nodes     []string
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from must come before to. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string { return slices.Clone(g.nodes) }

// Successors returns the nodes that must come after name.
func (g *Graph) Successors(name string) []string { return slices.Clone(g.adjacency[name]) }

// Predecessors returns the nodes with an edge into name, in insertion order.
func (g *Graph) Predecessors(name string) []string {
	var out []string
	for _, n := range g.nodes {
		if slices.Contains(g.adjacency[n], name) {
			out = append(out, n)
		}
	}
	return out
}

// Upstream returns every node name is reachable from, in insertion order.
func (g *Graph) Upstream(name string) []string {
	seen := map[string]bool{}
	stack := g.Predecessors(name)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.Predecessors(n)...)
	}
	var out []string
	for _, n := range g.nodes {
		if seen[n] && n != name {
			out = append(out, n)
		}
	}
	return out
}

// Downstream returns every node reachable from name, in insertion order.
func (g *Graph) Downstream(name string) []string {
	seen := map[string]bool{}
	stack := slices.Clone(g.adjacency[name])
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.adjacency[n]...)
	}
	var out []string
	for _, n := range g.nodes {
		if seen[n] && n != name {
			out = append(out, n)
		}
	}
	return out
}

// FindCycle returns the first cycle found by depth-first search in insertion
// order, or nil when the graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = onStack
		path = append(path, n)
		for _, next := range g.adjacency[n] {
			switch state[next] {
			case onStack:
				start := slices.Index(path, next)
				cycle := slices.Clone(path[start:])
				return append(cycle, next)
			case unvisited:
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		return nil
	}

	for _, n := range g.nodes {
		if state[n] == unvisited {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// Levels groups nodes with Kahn's algorithm: every node's predecessors sit in
// earlier levels, and each level lists nodes in insertion order.
func (g *Graph) Levels() ([][]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, targets := range g.adjacency {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	var levels [][]string
	remaining := slices.Clone(g.nodes)
	for len(remaining) > 0 {
		var level, rest []string
		for _, n := range remaining {
			if inDegree[n] == 0 {
				level = append(level, n)
			} else {
				rest = append(rest, n)
			}
		}
		for _, n := range level {
			for _, t := range g.adjacency[n] {
				inDegree[t]--
			}
		}
		levels = append(levels, level)
		remaining = rest
	}
	return levels, nil
}

// TopologicalSort flattens Levels into a single build order.
func (g *Graph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}
