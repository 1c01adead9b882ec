// SPDX-License-Identifier: MPL-2.0

package kilnfile

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/internal/testutil"
	"github.com/invowk/kiln/pkg/assembly"
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

func loadSession(t *testing.T, path string) *project.Session {
	t.Helper()
	kf, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s, err := kf.Session()
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return s
}

func coordinates(deps []dependency.Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.String()
	}
	return out
}

func TestDeadSoulsDefinition(t *testing.T) {
	t.Parallel()

	path := filepath.Join("testdata", "deadsouls", FileName)
	s := loadSession(t, path)
	ds, err := s.Project("DeadSouls")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		phase    dependency.Phase
		contexts []string
		want     []string
	}{
		{
			phase: dependency.PhaseCompile,
			want: []string{
				"org.jetbrains:annotations:16.0.2 (provided)",
				"org.spigotmc:spigot-api:1.14.4-R0.1-SNAPSHOT (provided)",
				"com.darkyen:TimeLimit:v1.0.2 (compile)",
			},
		},
		{
			phase: dependency.PhaseTest,
			want: []string{
				"org.jetbrains:annotations:16.0.2 (provided)",
				"org.spigotmc:spigot-api:1.14.4-R0.1-SNAPSHOT (provided)",
				"com.darkyen:TimeLimit:v1.0.2 (compile)",
				"org.junit.jupiter:junit-jupiter-api:5.6.2 (test)",
				"org.junit.jupiter:junit-jupiter-engine:5.6.2 (test)",
				"org.junit.platform:junit-platform-launcher:1.6.2 (test)",
			},
		},
		{
			phase:    dependency.PhaseCompile,
			contexts: []string{"live_testing"},
			want: []string{
				"org.jetbrains:annotations:16.0.2 (provided)",
				"org.spigotmc:spigot-api:1.16.1-R0.1-SNAPSHOT (provided)",
				"com.darkyen:TimeLimit:v1.0.2 (compile)",
				"org.junit.jupiter:junit-jupiter-api:5.6.2 (compile)",
			},
		},
		{
			phase: dependency.PhaseRuntime,
			want:  []string{"com.darkyen:TimeLimit:v1.0.2 (compile)"},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase)+"/"+strings.Join(tt.contexts, "+"), func(t *testing.T) {
			t.Parallel()
			deps, err := ds.Dependencies(tt.phase, tt.contexts...)
			if err != nil {
				t.Fatal(err)
			}
			if got := coordinates(deps); !slices.Equal(got, tt.want) {
				t.Errorf("Dependencies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeadSoulsConfiguration(t *testing.T) {
	t.Parallel()

	dir := filepath.Join("testdata", "deadsouls")
	s := loadSession(t, filepath.Join(dir, FileName))
	ds, _ := s.Project("DeadSouls")

	if got := ds.Identity().String(); got != "com.darkyen.minecraft:DeadSouls:1.6" {
		t.Errorf("Identity = %s", got)
	}

	cfg, err := ds.Effective(project.ContextsFor(dependency.PhaseRuntime)...)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "build", "DeadSouls-1.6.jar"); ds.OutputPath(cfg) != want {
		t.Errorf("OutputPath = %s, want %s", ds.OutputPath(cfg), want)
	}

	var repos []string
	for _, r := range compose.Get(cfg, project.KeyRepositories) {
		repos = append(repos, r.Name)
	}
	if want := []string{"central", "spigot-repo", "jitpack", "sonatype-oss-snapshots"}; !slices.Equal(repos, want) {
		t.Errorf("repositories = %v, want %v", repos, want)
	}

	strategy := compose.Get(cfg, project.KeyMergeStrategy)
	if strategy.Resolve("META-INF/versions/9/module-info.class") != assembly.Discard {
		t.Error("module-info.class is not discarded")
	}
	if strategy.Resolve("META-INF/services/x.Y") != assembly.Concatenate {
		t.Error("inherited service rule lost")
	}

	live, err := ds.Effective("live_testing")
	if err != nil {
		t.Fatal(err)
	}
	if got := compose.Get(live, project.KeySources); !slices.Equal(got, []string{"src/main/java", "src/live-test/java"}) {
		t.Errorf("live_testing sources = %v", got)
	}

	api, _ := s.Project("DeadSoulsAPITest")
	if api.Root() != filepath.Join(dir, "api-test") {
		t.Errorf("api root = %s", api.Root())
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatal(err)
	}
	wantDeploy := filepath.Join(abs, "..", "TEST SERVER", "plugins")
	for _, p := range []*project.Project{ds, api} {
		pcfg, err := p.Effective(project.ContextsFor(dependency.PhaseRuntime)...)
		if err != nil {
			t.Fatal(err)
		}
		if got := filepath.Clean(p.Resolve(pcfg.Expand(compose.Get(pcfg, project.KeyDeployDir)))); got != wantDeploy {
			t.Errorf("%s deploy dir = %s, want %s", p.Name(), got, wantDeploy)
		}
	}
	deps, err := api.ProjectDependencies(dependency.PhaseCompile)
	if err != nil {
		t.Fatal(err)
	}
	if want := []project.Dependency{{Project: "DeadSouls", Scope: dependency.ScopeProvided}}; !slices.Equal(deps, want) {
		t.Errorf("api project deps = %v", deps)
	}
	runtime, _ := api.ProjectDependencies(dependency.PhaseRuntime)
	if len(runtime) != 0 {
		t.Errorf("provided project dependency visible at runtime: %v", runtime)
	}
}

func TestFragmentOperations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frags string
		check func(t *testing.T, cfg compose.Config)
	}{
		{
			name:  "append to string",
			frags: `{key: "project_version", value: "2.0"}, {key: "project_version", op: "append", value: "-rc1"}`,
			check: func(t *testing.T, cfg compose.Config) {
				if v := compose.Get(cfg, project.KeyProjectVersion); v != "2.0-rc1" {
					t.Errorf("version = %q", v)
				}
			},
		},
		{
			name:  "remove list values",
			frags: `{key: "sources", op: "add", value: ["gen", "extra"]}, {key: "sources", op: "remove", value: "src/main/java"}`,
			check: func(t *testing.T, cfg compose.Config) {
				if v := compose.Get(cfg, project.KeySources); !slices.Equal(v, []string{"gen", "extra"}) {
					t.Errorf("sources = %v", v)
				}
			},
		},
		{
			name: "remove library by group and artifact",
			frags: `{key: "library_dependencies", op: "add", value: ["a:b:1", "a:c:1:runtime"]},
				{key: "library_dependencies", op: "remove", value: "a:b"}`,
			check: func(t *testing.T, cfg compose.Config) {
				if v := coordinates(compose.Get(cfg, project.KeyLibraryDependencies)); !slices.Equal(v, []string{"a:c:1 (runtime)"}) {
					t.Errorf("deps = %v", v)
				}
			},
		},
		{
			name:  "set merge strategy",
			frags: `{key: "assembly_merge_strategy", value: {fallback: "error", rules: [{pattern: "*.txt", action: "concatenate"}]}}`,
			check: func(t *testing.T, cfg compose.Config) {
				s := compose.Get(cfg, project.KeyMergeStrategy)
				if s.Fallback() != assembly.Error || s.Resolve("a/b.txt") != assembly.Concatenate {
					t.Errorf("strategy = %s", s)
				}
			},
		},
		{
			name:  "repository remove",
			frags: `{key: "repositories", op: "add", value: "jitpack"}, {key: "repositories", op: "remove", value: "central"}`,
			check: func(t *testing.T, cfg compose.Config) {
				if v := compose.Get(cfg, project.KeyRepositories); !slices.Equal(v, []dependency.Repository{dependency.Jitpack}) {
					t.Errorf("repositories = %v", v)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			src := `projects: app: {archetypes: ["java_project"], fragments: [` + tt.frags + `]}`
			testutil.MustWriteFile(t, filepath.Join(dir, FileName), src)
			s := loadSession(t, filepath.Join(dir, FileName))
			app, _ := s.Project("app")
			cfg, err := app.Effective()
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestSessionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		wantIs  error
		wantMsg string
	}{
		{
			name:    "unknown key",
			src:     `projects: app: fragments: [{key: "colour", value: "red"}]`,
			wantIs:  ErrUnknownKey,
			wantMsg: "projects.app.fragments[0]",
		},
		{
			name:   "unsupported operation",
			src:    `projects: app: fragments: [{key: "project_name", op: "add", value: "x"}]`,
			wantIs: ErrUnsupportedOperation,
		},
		{
			name:   "wrong value shape",
			src:    `projects: app: fragments: [{key: "sources", value: {a: 1}}]`,
			wantIs: ErrInvalidValue,
		},
		{
			name:   "bad scope",
			src:    `projects: app: fragments: [{key: "library_dependencies", op: "remove_scope", value: "optional"}]`,
			wantIs: dependency.ErrInvalidScope,
		},
		{
			name:   "unknown archetype",
			src:    `projects: app: archetypes: ["gradle_project"]`,
			wantIs: ErrUnknownArchetype,
		},
		{
			name: "archetype cycle",
			src: `archetypes: {a: parent: "b", b: parent: "a"}
projects: app: {}`,
			wantIs:  compose.ErrArchetypeCycle,
			wantMsg: "a -> b -> a",
		},
		{
			name:   "key shadows a well-known key",
			src:    `keys: sources: type: "list"` + "\n" + `projects: app: {}`,
			wantIs: project.ErrDuplicateDefinition,
		},
		{
			name:   "archetype shadows a built-in",
			src:    `archetypes: junit_layer: {}` + "\n" + `projects: app: {}`,
			wantIs: project.ErrDuplicateDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kf, err := Parse([]byte(tt.src), FileName)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			_, err = kf.Session()
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("Session() error = %v, want %v", err, tt.wantIs)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{name: "missing projects", src: `archetypes: {}`},
		{name: "bad project name", src: `projects: "9lives": {}`},
		{name: "unknown op", src: `projects: app: fragments: [{key: "sources", op: "prepend", value: "x"}]`},
		{name: "unknown field", src: `projects: app: {plugins: []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tt.src), FileName); err == nil {
				t.Error("Parse() succeeded, want schema error")
			} else if !strings.HasPrefix(err.Error(), FileName) {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, FileName), `projects: app: {}`)
	nested := filepath.Join(root, "app", "src")
	testutil.MustMkdirAll(t, nested)

	got, err := Find(nested)
	if err != nil {
		t.Fatal(err)
	}
	if want, _ := filepath.Abs(filepath.Join(root, FileName)); got != want {
		t.Errorf("Find() = %s, want %s", got, want)
	}
}
