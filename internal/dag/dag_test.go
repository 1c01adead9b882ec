// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	order, err := New().TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][2]string
		nodes []string
		want  [][]string
	}{
		{
			name:  "independent projects share a level",
			nodes: []string{"core", "api", "web"},
			want:  [][]string{{"core", "api", "web"}},
		},
		{
			name:  "linear chain",
			edges: [][2]string{{"core", "api"}, {"api", "web"}},
			want:  [][]string{{"core"}, {"api"}, {"web"}},
		},
		{
			name:  "diamond",
			edges: [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			want:  [][]string{{"a"}, {"b", "c"}, {"d"}},
		},
		{
			name:  "duplicate edge ignored",
			edges: [][2]string{{"a", "b"}, {"a", "b"}},
			want:  [][]string{{"a"}, {"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			got, err := g.Levels()
			if err != nil {
				t.Fatalf("Levels() error = %v", err)
			}
			if !slices.EqualFunc(got, tt.want, slices.Equal[[]string]) {
				t.Errorf("Levels() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][2]string
		want  []string
	}{
		{"two node loop", [][2]string{{"A", "B"}, {"B", "A"}}, []string{"A", "B", "A"}},
		{"self loop", [][2]string{{"A", "A"}}, []string{"A", "A"}},
		{"loop behind a prefix", [][2]string{{"root", "x"}, {"x", "y"}, {"y", "z"}, {"z", "x"}}, []string{"x", "y", "z", "x"}},
		{"acyclic", [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			if got := g.FindCycle(); !slices.Equal(got, tt.want) {
				t.Errorf("FindCycle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if !errors.Is(err, ErrCycle) {
		t.Error("errors.Is(err, ErrCycle) = false")
	}
	if got := cycleErr.Error(); got != "dependency cycle detected: A -> B -> A" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDownstream(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddNode("solo")
	g.AddEdge("core", "api")
	g.AddEdge("api", "web")
	g.AddEdge("core", "cli")

	if got, want := g.Downstream("core"), []string{"api", "web", "cli"}; !slices.Equal(got, want) {
		t.Errorf("Downstream(core) = %v, want %v", got, want)
	}
	if got := g.Downstream("solo"); got != nil {
		t.Errorf("Downstream(solo) = %v, want nil", got)
	}
	if got, want := g.Upstream("web"), []string{"core", "api"}; !slices.Equal(got, want) {
		t.Errorf("Upstream(web) = %v, want %v", got, want)
	}
	if got, want := g.Predecessors("web"), []string{"api"}; !slices.Equal(got, want) {
		t.Errorf("Predecessors(web) = %v, want %v", got, want)
	}
}
