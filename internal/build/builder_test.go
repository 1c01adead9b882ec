// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/internal/testutil"
	"github.com/invowk/kiln/pkg/assembly"
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

// fakeCompiler writes one class file per project and records the classpath
// it was given. Projects listed in fail exit non-zero.
type fakeCompiler struct {
	mu         sync.Mutex
	fail       map[string]bool
	classpaths map[string][]string
	tested     []string
	testEnv    map[string][]string
}

func newFakeCompiler(fail ...string) *fakeCompiler {
	f := &fakeCompiler{fail: map[string]bool{}, classpaths: map[string][]string{}, testEnv: map[string][]string{}}
	for _, n := range fail {
		f.fail[n] = true
	}
	return f
}

func (f *fakeCompiler) Compile(_ context.Context, req Request) error {
	f.mu.Lock()
	f.classpaths[req.Project] = req.Classpath
	f.mu.Unlock()
	if f.fail[req.Project] {
		return &CompileFailure{Project: req.Project, ExitCode: 1, Stderr: "error: cannot find symbol\n"}
	}
	pkg := strings.ToLower(req.Project)
	return os.WriteFile(filepath.Join(req.Output, pkg+".class"), []byte(req.Project), 0o644)
}

func (f *fakeCompiler) Test(_ context.Context, req Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tested = append(f.tested, req.Project)
	f.testEnv[req.Project] = req.Env
	return nil
}

func newSession(t *testing.T, repo dependency.Repository) *project.Session {
	t.Helper()
	return project.NewSession(
		compose.Set(project.KeyRepositories, []dependency.Repository{repo}),
	)
}

func addProject(t *testing.T, s *project.Session, root, name string, frags ...compose.Fragment) {
	t.Helper()
	if _, err := s.AddProject(name, filepath.Join(root, name), compose.Layering{Fragments: frags}); err != nil {
		t.Fatal(err)
	}
}

func dependsOn(name string, scope dependency.Scope) compose.Fragment {
	return compose.Add(project.KeyProjectDependencies, project.Dependency{Project: name, Scope: scope})
}

func byProject(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.Project] = r
	}
	return out
}

func TestBuildProvidedScopeIsNotBundled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repoDir := filepath.Join(root, "repo")
	api := testutil.PublishArtifact(t, repoDir, "org.host:host-api:1.0", map[string]string{"org/host/Api.class": "api"})
	lib := testutil.PublishArtifact(t, repoDir, "org.lib:lib:2.0",
		map[string]string{"org/lib/Lib.class": "lib", "module-info.class": "lib-module"},
		"org.lib:lib-core:2.0")
	core := testutil.PublishArtifact(t, repoDir, "org.lib:lib-core:2.0", map[string]string{"org/lib/Core.class": "core"})
	repo := dependency.Repository{Name: "local", URL: testutil.FileURL(repoDir)}

	s := newSession(t, repo)
	addProject(t, s, root, "plugin",
		compose.Set(project.KeyProjectVersion, "1.6"),
		compose.Add(project.KeyLibraryDependencies,
			dependency.New("org.host", "host-api", "1.0", dependency.ScopeProvided),
			dependency.New("org.lib", "lib", "2.0", dependency.ScopeCompile),
		),
	)
	testutil.MustWriteFile(t, filepath.Join(root, "plugin", "src", "main", "resources", "plugin.yml"), "name: plugin\n")

	compiler := newFakeCompiler()
	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), compiler, compiler, Options{})
	results, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	r := results[0]
	if r.Status != StatusSucceeded {
		t.Fatalf("plugin status = %s, err = %v", r.Status, r.Err)
	}

	if got, want := compiler.classpaths["plugin"], []string{api, lib, core}; !slices.Equal(got, want) {
		t.Errorf("compile classpath = %v, want %v", got, want)
	}

	if want := filepath.Join(root, "plugin", "build", "plugin-1.6.jar"); r.Archive != want {
		t.Errorf("Archive = %s, want %s", r.Archive, want)
	}
	entries := testutil.ReadJar(t, r.Archive)
	for _, name := range []string{"plugin.class", "plugin.yml", "org/lib/Lib.class", "org/lib/Core.class"} {
		if _, ok := entries[name]; !ok {
			t.Errorf("archive is missing %s", name)
		}
	}
	for _, name := range []string{"org/host/Api.class", "module-info.class"} {
		if _, ok := entries[name]; ok {
			t.Errorf("archive contains %s", name)
		}
	}
}

func TestBuildKeepsTransitiveProvidedOutOfArchive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repoDir := filepath.Join(root, "repo")
	api := testutil.PublishArtifact(t, repoDir, "org.host:host-api:1.0", map[string]string{"org/host/Api.class": "api"})
	lib := testutil.PublishArtifact(t, repoDir, "org.lib:lib:2.0", map[string]string{"org/lib/Lib.class": "lib"},
		"org.host:host-api:1.0", "org.lib:lib-rt:2.0:runtime")
	testutil.PublishArtifact(t, repoDir, "org.lib:lib-rt:2.0", map[string]string{"org/lib/Rt.class": "rt"})
	repo := dependency.Repository{Name: "local", URL: testutil.FileURL(repoDir)}

	s := newSession(t, repo)
	addProject(t, s, root, "plugin",
		compose.Add(project.KeyLibraryDependencies,
			dependency.New("org.host", "host-api", "1.0", dependency.ScopeProvided),
			dependency.New("org.lib", "lib", "2.0", dependency.ScopeCompile),
		),
	)

	compiler := newFakeCompiler()
	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), compiler, nil, Options{})
	results, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	r := results[0]
	if r.Status != StatusSucceeded {
		t.Fatalf("plugin status = %s, err = %v", r.Status, r.Err)
	}

	if got, want := compiler.classpaths["plugin"], []string{api, lib}; !slices.Equal(got, want) {
		t.Errorf("compile classpath = %v, want %v without the runtime-only library", got, want)
	}

	entries := testutil.ReadJar(t, r.Archive)
	if _, ok := entries["org/host/Api.class"]; ok {
		t.Errorf("provided dependency bundled through a library: %v", slices.Sorted(maps.Keys(entries)))
	}
	for _, name := range []string{"plugin.class", "org/lib/Lib.class", "org/lib/Rt.class"} {
		if _, ok := entries[name]; !ok {
			t.Errorf("archive is missing %s", name)
		}
	}
}

func TestBuildExportsTestLauncher(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repoDir := filepath.Join(root, "repo")
	console := testutil.PublishArtifact(t, repoDir, "org.junit.platform:junit-platform-console-standalone:1.6.2",
		map[string]string{"org/junit/platform/console/ConsoleLauncher.class": "launcher"})

	s := newSession(t, dependency.Repository{Name: "local", URL: testutil.FileURL(repoDir)})
	addProject(t, s, root, "app",
		compose.Set(project.KeyTestCommand, "true"),
		compose.Set(project.KeyTestLauncher, "org.junit.platform:junit-platform-console-standalone:1.6.2"),
	)
	addProject(t, s, root, "broken",
		compose.Set(project.KeyTestCommand, "true"),
		compose.Set(project.KeyTestLauncher, "org.junit.platform:missing:1.0"),
	)

	compiler := newFakeCompiler()
	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), compiler, compiler, Options{})
	results, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := byProject(results)

	if r := got["app"]; r.Status != StatusSucceeded {
		t.Fatalf("app = %+v", r)
	}
	if env, want := compiler.testEnv["app"], EnvTestLauncher+"="+console; !slices.Contains(env, want) {
		t.Errorf("test env = %v, want %s", env, want)
	}
	if r := got["broken"]; r.Status != StatusFailed || r.Step != StepTest || !errors.Is(r.Err, dependency.ErrUnresolvedDependency) {
		t.Errorf("broken = %+v, want unresolved launcher", r)
	}
}

func TestBuildFailureBlocksOnlyDependents(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := newSession(t, dependency.Repository{Name: "empty", URL: testutil.FileURL(t.TempDir())})
	addProject(t, s, root, "core")
	addProject(t, s, root, "api", dependsOn("core", dependency.ScopeCompile))
	addProject(t, s, root, "web", dependsOn("api", dependency.ScopeCompile))
	addProject(t, s, root, "tools")

	compiler := newFakeCompiler("core")
	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), compiler, nil, Options{MaxParallel: 2})
	results, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got := byProject(results)

	if r := got["core"]; r.Status != StatusFailed || r.Step != StepCompile || !errors.Is(r.Err, ErrCompileFailure) {
		t.Errorf("core = %+v", r)
	}
	var blocked *BlockedError
	if r := got["api"]; r.Status != StatusBlocked || !errors.As(r.Err, &blocked) || !slices.Equal(blocked.By, []string{"core"}) {
		t.Errorf("api = %+v", r)
	}
	if r := got["web"]; r.Status != StatusBlocked || !errors.Is(r.Err, ErrBlocked) {
		t.Errorf("web = %+v", r)
	}
	if r := got["tools"]; r.Status != StatusSucceeded {
		t.Errorf("independent project tools = %+v, want succeeded", r)
	}
}

func TestBuildProjectDependencyScopes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := newSession(t, dependency.Repository{Name: "empty", URL: testutil.FileURL(t.TempDir())})
	addProject(t, s, root, "plugin")
	addProject(t, s, root, "apitest", dependsOn("plugin", dependency.ScopeProvided))
	addProject(t, s, root, "bundle", dependsOn("plugin", dependency.ScopeCompile))

	compiler := newFakeCompiler()
	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), compiler, nil, Options{})
	results, err := b.Build(context.Background(), "apitest", "bundle")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if results[0].Project != "plugin" {
		t.Errorf("first result = %s, want plugin built first", results[0].Project)
	}
	got := byProject(results)
	pluginJar := got["plugin"].Archive

	if cp := compiler.classpaths["apitest"]; !slices.Equal(cp, []string{pluginJar}) {
		t.Errorf("apitest classpath = %v, want plugin archive", cp)
	}
	if _, ok := testutil.ReadJar(t, got["apitest"].Archive)["plugin.class"]; ok {
		t.Error("provided project dependency was bundled")
	}
	if _, ok := testutil.ReadJar(t, got["bundle"].Archive)["plugin.class"]; !ok {
		t.Error("compile project dependency was not bundled")
	}
}

func TestBuildSelectsOnlyRequestedProjects(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := newSession(t, dependency.Repository{Name: "empty", URL: testutil.FileURL(t.TempDir())})
	addProject(t, s, root, "a")
	addProject(t, s, root, "b")

	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), newFakeCompiler(), nil, Options{})
	results, err := b.Build(context.Background(), "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Project != "b" {
		t.Errorf("results = %+v, want only b", results)
	}

	if _, err := b.Build(context.Background(), "ghost"); !errors.Is(err, project.ErrUnknownProject) {
		t.Errorf("Build(ghost) error = %v, want ErrUnknownProject", err)
	}
}

func TestBuildUnresolvedDependency(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := newSession(t, dependency.Repository{Name: "empty", URL: testutil.FileURL(t.TempDir())})
	addProject(t, s, root, "app", compose.Add(project.KeyLibraryDependencies, dependency.New("g", "missing", "1", "")))

	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), newFakeCompiler(), nil, Options{})
	results, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if r.Status != StatusFailed || r.Step != StepResolve || !errors.Is(r.Err, dependency.ErrUnresolvedDependency) {
		t.Errorf("app = %+v", r)
	}
}

func TestBuildDeploysAndRunsTests(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	plugins := filepath.Join(root, "server", "plugins")
	testutil.MustMkdirAll(t, plugins)

	s := newSession(t, dependency.Repository{Name: "empty", URL: testutil.FileURL(t.TempDir())})
	addProject(t, s, root, "DeadSouls",
		compose.Set(project.KeyDeployDir, "../server/plugins"),
		compose.Set(project.KeyTestCommand, "true"),
	)

	compiler := newFakeCompiler()
	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), compiler, compiler, Options{})
	results, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if r.Deploy.Status != assembly.DeployCopied || r.Deploy.Target != filepath.Join(plugins, "DeadSouls.jar") {
		t.Errorf("Deploy = %+v", r.Deploy)
	}
	if !slices.Equal(compiler.tested, []string{"DeadSouls"}) {
		t.Errorf("tested = %v", compiler.tested)
	}

	again, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Deploy.Status != assembly.DeployUnchanged {
		t.Errorf("second Deploy = %+v, want unchanged", again[0].Deploy)
	}
}

func TestBuildCycleFailsBeforeCompiling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := newSession(t, dependency.Repository{Name: "empty", URL: testutil.FileURL(t.TempDir())})
	addProject(t, s, root, "A", dependsOn("B", ""))
	addProject(t, s, root, "B", dependsOn("A", ""))

	compiler := newFakeCompiler()
	b := NewBuilder(s, dependency.NewResolver(dependency.NewLocalFetcher(t.TempDir())), compiler, nil, Options{})
	if _, err := b.Build(context.Background()); !errors.Is(err, project.ErrCyclicProjectDependency) {
		t.Fatalf("Build() error = %v, want ErrCyclicProjectDependency", err)
	}
	if len(compiler.classpaths) != 0 {
		t.Errorf("compiler ran for %v", compiler.classpaths)
	}
}
