// SPDX-License-Identifier: MPL-2.0

package dependency

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultArtifactExtension is the file extension of library artifacts.
const DefaultArtifactExtension = "jar"

type (
	// LocalFetcher serves artifacts from Maven-layout directories. file://
	// repositories are read in place; any other repository is read from its
	// mirror under cacheDir/<repository name>. Populating mirrors is left to
	// external tooling.
	LocalFetcher struct {
		cacheDir  string
		extension string
	}

	pomProject struct {
		Dependencies []pomDependency `xml:"dependencies>dependency"`
	}

	pomDependency struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
		Scope      string `xml:"scope"`
		Optional   bool   `xml:"optional"`
	}
)

// NewLocalFetcher creates a fetcher reading remote-repository mirrors from cacheDir.
func NewLocalFetcher(cacheDir string) *LocalFetcher {
	return &LocalFetcher{cacheDir: cacheDir, extension: DefaultArtifactExtension}
}

// Root returns the directory a repository's artifacts are read from.
func (f *LocalFetcher) Root(repo Repository) string {
	if p, ok := repo.LocalPath(); ok {
		return p
	}
	return filepath.Join(f.cacheDir, repo.Name)
}

// ArtifactDir returns the Maven-layout directory of a coordinate under root.
func ArtifactDir(root string, coord Coordinate) string {
	groupPath := filepath.FromSlash(strings.ReplaceAll(coord.Group, ".", "/"))
	return filepath.Join(root, groupPath, coord.Artifact, coord.Version)
}

// Fetch implements Fetcher.
func (f *LocalFetcher) Fetch(ctx context.Context, repo Repository, coord Coordinate) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	dir := ArtifactDir(f.Root(repo), coord)
	path := filepath.Join(dir, coord.FileName(f.extension))
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Artifact{}, ErrNotFound
	}
	if err != nil {
		return Artifact{}, err
	}
	if info.IsDir() {
		return Artifact{}, ErrNotFound
	}

	transitive, err := readPOM(filepath.Join(dir, coord.FileName("pom")))
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{Coordinate: coord, Repository: repo, Path: path, Transitive: transitive}, nil
}

// readPOM returns the dependencies a POM passes on to its consumers. Test,
// provided, system and optional dependencies are not transitive, and entries
// with unresolvable ${property} versions are skipped.
func readPOM(path string) ([]Dependency, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pom pomProject
	if err := xml.Unmarshal(data, &pom); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var deps []Dependency
	for _, d := range pom.Dependencies {
		switch d.Scope {
		case "", "compile", "runtime":
		default:
			continue
		}
		if d.Optional {
			continue
		}
		if d.Version == "" || strings.Contains(d.Version, "${") {
			slog.Debug("skipping transitive dependency without concrete version",
				"pom", path, "dependency", d.GroupID+":"+d.ArtifactID)
			continue
		}
		scope := ScopeCompile
		if d.Scope == "runtime" {
			scope = ScopeRuntime
		}
		deps = append(deps, New(d.GroupID, d.ArtifactID, d.Version, scope))
	}
	return deps, nil
}
