// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// MustChdir changes the current working directory to dir and restores it
// when the test ends. Tests using it must not run in parallel.
func MustChdir(t testing.TB, dir string) {
	t.Helper()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Errorf("failed to restore directory to %s: %v", originalWd, err)
		}
	})
}

// WriteJar writes a zip archive holding files, in sorted name order.
func WriteJar(t testing.TB, path string, files map[string]string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := io.WriteString(w, files[name]); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

// ReadJar returns the file entries of a zip archive keyed by name.
func ReadJar(t testing.TB, path string) map[string]string {
	t.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer func() { _ = r.Close() }()

	out := make(map[string]string, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s in %s: %v", f.Name, path, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s in %s: %v", f.Name, path, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

// PublishArtifact writes group:artifact:version into a Maven-layout
// repository rooted at repo: a jar holding files and, when deps is not
// empty, a POM listing "group:artifact:version[:scope]" dependencies.
// It returns the jar path.
func PublishArtifact(t testing.TB, repo, coordinate string, files map[string]string, deps ...string) string {
	t.Helper()

	parts := strings.Split(coordinate, ":")
	if len(parts) != 3 {
		t.Fatalf("bad coordinate %q", coordinate)
	}
	group, artifact, version := parts[0], parts[1], parts[2]
	dir := filepath.Join(repo, filepath.FromSlash(strings.ReplaceAll(group, ".", "/")), artifact, version)
	jar := filepath.Join(dir, fmt.Sprintf("%s-%s.jar", artifact, version))
	WriteJar(t, jar, files)

	if len(deps) == 0 {
		return jar
	}
	var sb strings.Builder
	sb.WriteString("<project><dependencies>\n")
	for _, d := range deps {
		p := strings.Split(d, ":")
		if len(p) < 3 {
			t.Fatalf("bad dependency %q", d)
		}
		fmt.Fprintf(&sb, "<dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version>", p[0], p[1], p[2])
		if len(p) > 3 {
			fmt.Fprintf(&sb, "<scope>%s</scope>", p[3])
		}
		sb.WriteString("</dependency>\n")
	}
	sb.WriteString("</dependencies></project>\n")
	MustWriteFile(t, filepath.Join(dir, fmt.Sprintf("%s-%s.pom", artifact, version)), sb.String())
	return jar
}

// FileURL returns a file:// URL for a local directory.
func FileURL(dir string) string {
	return "file://" + filepath.ToSlash(dir)
}
