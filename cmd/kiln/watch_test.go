// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/invowk/kiln/internal/testutil"
	"github.com/invowk/kiln/internal/watch"
	"github.com/invowk/kiln/pkg/kilnfile"
)

func TestWatchTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, kilnfile.FileName)
	testutil.MustWriteFile(t, path, testKilnfile)
	kf, err := kilnfile.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	s, err := kf.Session()
	if err != nil {
		t.Fatal(err)
	}

	targets, ignores, err := watchTargets(s, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []watch.Target{
		{Project: "addon", Dirs: []string{"addon/src/main/java", "addon/src/test/java", "addon/src/main/resources"}},
		{Project: "core", Dirs: []string{"core/src/main/java", "core/src/test/java", "core/src/main/resources"}},
	}
	if len(targets) != len(want) {
		t.Fatalf("targets = %+v", targets)
	}
	for i := range want {
		if targets[i].Project != want[i].Project || !slices.Equal(targets[i].Dirs, want[i].Dirs) {
			t.Errorf("targets[%d] = %+v, want %+v", i, targets[i], want[i])
		}
	}
	if wantIgnores := []string{"addon/build/**", "core/build/**"}; !slices.Equal(ignores, wantIgnores) {
		t.Errorf("ignores = %v, want %v", ignores, wantIgnores)
	}

	g, err := s.Graph()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		requested []string
		affected  []string
		want      []string
	}{
		{name: "dependency change rebuilds dependents", affected: []string{"core"}, want: []string{"addon", "core"}},
		{name: "leaf change", affected: []string{"addon"}, want: []string{"addon"}},
		{name: "out of scope", requested: []string{"core"}, affected: []string{"addon"}, want: nil},
		{name: "scope keeps upstream", requested: []string{"addon"}, affected: []string{"core"}, want: []string{"addon", "core"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := withDependents(g, tt.affected, buildScope(g, tt.requested))
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("withDependents() = %v, want %v", got, tt.want)
			}
		})
	}
}
