// SPDX-License-Identifier: MPL-2.0

// Package build drives the per-project pipeline: compose the configuration,
// resolve dependencies, compile, test, assemble and deploy. Projects are
// scheduled in dependency order and independent projects build concurrently.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/pkg/assembly"
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

const (
	// StatusSucceeded means the project was assembled.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means a step of the project's own pipeline failed.
	StatusFailed Status = "failed"
	// StatusBlocked means a project dependency did not succeed.
	StatusBlocked Status = "blocked"

	// StepResolve and the following name the pipeline step that failed.
	StepResolve  = "resolve"
	StepCompile  = "compile"
	StepTest     = "test"
	StepAssemble = "assemble"
)

type (
	// Status is the outcome of one project's build.
	Status string

	// Options tune a build.
	Options struct {
		// Contexts are activated before each phase's own context.
		Contexts []string
		// SkipTests skips the test step.
		SkipTests bool
		// MaxParallel bounds concurrent project builds. Zero means GOMAXPROCS.
		MaxParallel int
		// DeployDir overrides the deploy_dir key when set.
		DeployDir string
	}

	// Result describes one project's build.
	Result struct {
		Project  string                 `json:"project" yaml:"project"`
		Status   Status                 `json:"status" yaml:"status"`
		Step     string                 `json:"step,omitempty" yaml:"step,omitempty"`
		Archive  string                 `json:"archive,omitempty" yaml:"archive,omitempty"`
		Report   *assembly.Report       `json:"report,omitempty" yaml:"report,omitempty"`
		Deploy   assembly.DeployOutcome `json:"deploy" yaml:"deploy"`
		Duration time.Duration          `json:"duration" yaml:"duration"`
		Err      error                  `json:"-" yaml:"-"`
	}

	// Builder builds the projects of a validated session.
	Builder struct {
		session  *project.Session
		resolver *dependency.Resolver
		compiler Compiler
		tester   TestRunner
		opts     Options
	}
)

// NewBuilder creates a builder. tester may be nil when tests are skipped.
func NewBuilder(session *project.Session, resolver *dependency.Resolver, compiler Compiler, tester TestRunner, opts Options) *Builder {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = runtime.GOMAXPROCS(0)
	}
	return &Builder{session: session, resolver: resolver, compiler: compiler, tester: tester, opts: opts}
}

// Build builds the named projects and every project they depend on. With no
// names it builds the whole session. The returned error covers problems with
// the session itself; per-project failures are reported in the results, which
// are ordered by build level.
func (b *Builder) Build(ctx context.Context, names ...string) ([]Result, error) {
	g, err := b.session.Graph(b.opts.Contexts...)
	if err != nil {
		return nil, err
	}

	needed := make(map[string]bool)
	if len(names) == 0 {
		for _, n := range g.Nodes() {
			needed[n] = true
		}
	}
	for _, n := range names {
		if _, err := b.session.Project(n); err != nil {
			return nil, err
		}
		needed[n] = true
		for _, up := range g.Upstream(n) {
			needed[up] = true
		}
	}

	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*Result)
		order   []string
	)
	for _, level := range levels {
		var eg errgroup.Group
		eg.SetLimit(b.opts.MaxParallel)
		for _, name := range level {
			if !needed[name] {
				continue
			}
			order = append(order, name)

			var blockers []string
			mu.Lock()
			deps := make(map[string]Result)
			for _, pred := range g.Predecessors(name) {
				r, ok := results[pred]
				if !ok {
					continue
				}
				deps[pred] = *r
				if r.Status != StatusSucceeded {
					blockers = append(blockers, pred)
				}
			}
			mu.Unlock()

			if len(blockers) > 0 {
				slog.Warn("project blocked", "project", name, "by", blockers)
				mu.Lock()
				results[name] = &Result{Project: name, Status: StatusBlocked, Err: &BlockedError{Project: name, By: blockers}}
				mu.Unlock()
				continue
			}

			eg.Go(func() error {
				r := b.buildProject(ctx, name, deps)
				mu.Lock()
				results[name] = &r
				mu.Unlock()
				return nil
			})
		}
		_ = eg.Wait()
	}

	out := make([]Result, 0, len(order))
	for _, name := range order {
		out = append(out, *results[name])
	}
	return out, nil
}

func (b *Builder) buildProject(ctx context.Context, name string, upstream map[string]Result) Result {
	start := time.Now()
	res := Result{Project: name, Status: StatusFailed}

	fail := func(step string, err error) Result {
		res.Step = step
		res.Err = err
		res.Duration = time.Since(start)
		slog.Error("project failed", "project", name, "step", step, "error", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(StepResolve, err)
	}
	p, err := b.session.Project(name)
	if err != nil {
		return fail(StepResolve, err)
	}
	slog.Info("building project", "project", name, "identity", p.Identity().String())

	// Compile.
	compileCfg, err := p.Effective(project.ContextsFor(dependency.PhaseCompile, b.opts.Contexts...)...)
	if err != nil {
		return fail(StepResolve, err)
	}
	compileLibs, err := project.ResolvePhase(ctx, b.resolver, compileCfg, dependency.PhaseCompile)
	if err != nil {
		return fail(StepResolve, err)
	}
	compileCP, err := classpath(compileLibs, compileCfg, dependency.PhaseCompile, upstream)
	if err != nil {
		return fail(StepResolve, err)
	}
	classes := filepath.Join(p.BuildDir(compileCfg), "classes")
	if err := resetDir(classes); err != nil {
		return fail(StepCompile, err)
	}
	if err := b.compiler.Compile(ctx, Request{
		Project:   name,
		Command:   compose.Get(compileCfg, project.KeyCompileCommand),
		Dir:       p.Root(),
		Sources:   p.SourceRoots(compileCfg, false),
		Classpath: compileCP,
		Output:    classes,
	}); err != nil {
		return fail(StepCompile, err)
	}
	for _, root := range p.ResourceRoots(compileCfg) {
		if err := copyTree(root, classes); err != nil {
			return fail(StepCompile, err)
		}
	}

	// Test.
	if !b.opts.SkipTests && b.tester != nil {
		if err := b.test(ctx, p, classes, upstream); err != nil {
			return fail(StepTest, err)
		}
	}

	// Assemble.
	asmCfg, err := p.Effective(project.ContextsFor(dependency.PhaseRuntime, b.opts.Contexts...)...)
	if err != nil {
		return fail(StepAssemble, err)
	}
	sources := []assembly.Source{assembly.DirSource{Label: name, Dir: classes}}
	bundled, err := project.ResolvePhase(ctx, b.resolver, asmCfg, dependency.PhaseRuntime)
	if err != nil {
		return fail(StepResolve, err)
	}
	for _, r := range bundled {
		sources = append(sources, assembly.ArchiveSource{Label: r.Dependency.Coordinate.String(), Path: r.Artifact.Path})
	}
	for _, d := range project.PhaseProjectDependencies(asmCfg, dependency.PhaseRuntime) {
		sources = append(sources, assembly.ArchiveSource{Label: d.Project, Path: upstream[d.Project].Archive})
	}

	output := p.OutputPath(asmCfg)
	report, err := assembly.Assemble(ctx, output, compose.Get(asmCfg, project.KeyMergeStrategy), sources...)
	if err != nil {
		return fail(StepAssemble, err)
	}
	res.Status = StatusSucceeded
	res.Archive = output
	res.Report = &report

	// Deploy.
	deployDir := b.opts.DeployDir
	if deployDir == "" {
		deployDir = p.Resolve(asmCfg.Expand(compose.Get(asmCfg, project.KeyDeployDir)))
	}
	id := p.Identity()
	res.Deploy = assembly.Deploy(output, deployDir, id.Name+"."+compose.Get(asmCfg, project.KeyArchiveExtension))
	if res.Deploy.Status == assembly.DeployCopied {
		slog.Info("deployed", "project", name, "target", res.Deploy.Target)
	}

	res.Duration = time.Since(start)
	slog.Info("project built", "project", name, "archive", output, "entries", report.Entries)
	return res
}

func (b *Builder) test(ctx context.Context, p *project.Project, classes string, upstream map[string]Result) error {
	cfg, err := p.Effective(project.ContextsFor(dependency.PhaseTest, b.opts.Contexts...)...)
	if err != nil {
		return err
	}
	command := compose.Get(cfg, project.KeyTestCommand)
	if command == "" {
		return nil
	}
	libs, err := project.ResolvePhase(ctx, b.resolver, cfg, dependency.PhaseTest)
	if err != nil {
		return err
	}
	cp, err := classpath(libs, cfg, dependency.PhaseTest, upstream)
	if err != nil {
		return err
	}
	req := Request{
		Project:   p.Name(),
		Command:   command,
		Dir:       p.Root(),
		Sources:   p.SourceRoots(cfg, true),
		Classpath: append([]string{classes}, cp...),
		Output:    filepath.Join(p.BuildDir(cfg), "test-classes"),
	}
	if launcher := compose.Get(cfg, project.KeyTestLauncher); launcher != "" {
		path, err := b.launcherPath(ctx, cfg, launcher)
		if err != nil {
			return err
		}
		req.Env = append(req.Env, EnvTestLauncher+"="+path)
	}
	return b.tester.Test(ctx, req)
}

// launcherPath resolves the test_launcher coordinate on its own, so filters
// on library_dependencies never remove the tool that runs the tests.
func (b *Builder) launcherPath(ctx context.Context, cfg compose.Config, launcher string) (string, error) {
	d, err := dependency.Parse(cfg.Expand(launcher))
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", project.KeyTestLauncher.Name(), err)
	}
	resolved, err := b.resolver.Resolve(ctx, compose.Get(cfg, project.KeyRepositories), []dependency.Dependency{d})
	if err != nil {
		return "", err
	}
	return resolved[0].Artifact.Path, nil
}

// classpath lists the resolved library archives followed by the archives of
// the project dependencies visible to phase.
func classpath(resolved []dependency.Resolved, cfg compose.Config, phase dependency.Phase, upstream map[string]Result) ([]string, error) {
	cp := make([]string, 0, len(resolved))
	for _, r := range resolved {
		cp = append(cp, r.Artifact.Path)
	}
	for _, d := range project.PhaseProjectDependencies(cfg, phase) {
		dep, ok := upstream[d.Project]
		if !ok || dep.Archive == "" {
			return nil, fmt.Errorf("project dependency %s has no archive", d.Project)
		}
		cp = append(cp, dep.Archive)
	}
	return slices.Clip(cp), nil
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0o755)
}

// copyTree copies the files under src into dst, overwriting existing files.
// A missing src is not an error.
func copyTree(src, dst string) error {
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == src && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return fmt.Errorf("failed to copy resources from %s: %w", src, err)
	}
	return nil
}
