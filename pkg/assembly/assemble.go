// SPDX-License-Identifier: MPL-2.0

package assembly

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
)

// archiveEpoch is stamped on every entry so identical inputs produce
// byte-identical archives.
var archiveEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type (
	// Source contributes entries to an assembled archive.
	Source interface {
		// Name identifies the source in conflict reports.
		Name() string
		// Entries returns every file the source ships, in a stable order.
		Entries() ([]Entry, error)
	}

	// DirSource reads entries from a directory tree, such as a compiler's
	// output directory.
	DirSource struct {
		Label string
		Dir   string
	}

	// ArchiveSource reads entries from a zip-format artifact, such as a jar.
	ArchiveSource struct {
		Label string
		Path  string
	}

	// Report summarizes one assembly.
	Report struct {
		Output    string   `json:"output" yaml:"output"`
		Entries   int      `json:"entries" yaml:"entries"`
		Discarded []string `json:"discarded,omitempty" yaml:"discarded,omitempty"`
		Merged    []string `json:"merged,omitempty" yaml:"merged,omitempty"`
		Digest    string   `json:"digest" yaml:"digest"`
	}
)

// Name implements Source.
func (s DirSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Dir
}

// Entries implements Source. A missing directory contributes nothing.
func (s DirSource) Entries() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(s.Dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == s.Dir && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		entries = append(entries, Entry{Path: filepath.ToSlash(rel), Source: s.Name(), Content: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect %s: %w", s.Dir, err)
	}
	return entries, nil
}

// Name implements Source.
func (s ArchiveSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return filepath.Base(s.Path)
}

// Entries implements Source. Directory entries are skipped.
func (s ArchiveSource) Entries() (entries []Entry, err error) {
	r, err := zip.OpenReader(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", s.Path, err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		data, readErr := readZipFile(f)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", f.Name, s.Path, readErr)
		}
		entries = append(entries, Entry{Path: f.Name, Source: s.Name(), Content: data})
	}
	return entries, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Assemble merges sources in order and writes the archive to output. The
// first source is normally the project's own compiled output, followed by
// bundled dependencies in declaration order. The archive is written to a
// temporary file and renamed into place, so output is never left half
// written.
func Assemble(ctx context.Context, output string, strategy Strategy, sources ...Source) (Report, error) {
	var all []Entry
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		entries, err := src.Entries()
		if err != nil {
			return Report{}, err
		}
		all = append(all, entries...)
	}

	merged, err := Merge(all, strategy)
	if err != nil {
		return Report{}, err
	}

	report := Report{Output: output}
	kept := make([]Merged, 0, len(merged))
	for _, m := range merged {
		switch {
		case m.Action == Discard:
			report.Discarded = append(report.Discarded, m.Path)
		default:
			if len(m.Sources) > 1 {
				report.Merged = append(report.Merged, m.Path)
			}
			kept = append(kept, m)
		}
	}
	report.Entries = len(kept)

	digest, err := writeArchive(output, kept)
	if err != nil {
		return Report{}, err
	}
	report.Digest = digest

	slog.Debug("assembled archive", "output", output, "entries", report.Entries,
		"discarded", len(report.Discarded), "merged", len(report.Merged))
	return report, nil
}

// writeArchive writes entries to path atomically and returns the BLAKE3
// digest of the archive bytes.
func writeArchive(path string, entries []Merged) (digest string, err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := blake3.New()
	zw := zip.NewWriter(io.MultiWriter(tmp, hasher))

	dirs := make(map[string]bool)
	for _, m := range entries {
		for _, dir := range parentDirs(m.Path) {
			if dirs[dir] {
				continue
			}
			dirs[dir] = true
			if _, err = zw.CreateHeader(&zip.FileHeader{Name: dir, Method: zip.Store, Modified: archiveEpoch}); err != nil {
				return "", fmt.Errorf("failed to create directory entry %s: %w", dir, err)
			}
		}

		w, createErr := zw.CreateHeader(&zip.FileHeader{Name: m.Path, Method: zip.Deflate, Modified: archiveEpoch})
		if createErr != nil {
			err = fmt.Errorf("failed to create entry %s: %w", m.Path, createErr)
			return "", err
		}
		if _, err = w.Write(m.Content); err != nil {
			return "", fmt.Errorf("failed to write entry %s: %w", m.Path, err)
		}
	}

	if err = zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary archive: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// parentDirs returns "a/", "a/b/" for "a/b/c.txt".
func parentDirs(p string) []string {
	parts := strings.Split(p, "/")
	dirs := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		dirs = append(dirs, strings.Join(parts[:i], "/")+"/")
	}
	return dirs
}

// FileDigest returns the hex BLAKE3 digest of a file's contents.
func FileDigest(path string) (digest string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	h := blake3.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EntryNames lists the file entries of a zip-format archive in archive order.
func EntryNames(path string) ([]string, error) {
	entries, err := ArchiveSource{Path: path}.Entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Path
	}
	return slices.Clip(names), nil
}
