// SPDX-License-Identifier: MPL-2.0

// Package kilnfile reads kilnfile.cue build definitions and turns them into a
// project session ready to validate and build.
package kilnfile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invowk/kiln/pkg/cueutil"
)

// FileName is the conventional name of a build definition.
const FileName = "kilnfile.cue"

//go:embed kilnfile_schema.cue
var kilnfileSchema []byte

type (
	// Kilnfile is a decoded build definition.
	Kilnfile struct {
		Keys           map[string]KeyDecl           `json:"keys,omitempty"`
		Defaults       []FragmentDecl               `json:"defaults,omitempty"`
		Archetypes     map[string]ArchetypeDecl     `json:"archetypes,omitempty"`
		Configurations map[string]ConfigurationDecl `json:"configurations,omitempty"`
		Projects       map[string]ProjectDecl       `json:"projects"`

		// FilePath is where the definition was read from. Project paths are
		// relative to its directory.
		FilePath string `json:"-"`
	}

	// KeyDecl declares a custom key. Type is "string" or "list".
	KeyDecl struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
		Default     any    `json:"default,omitempty"`
	}

	// FragmentDecl is one declarative mutation.
	FragmentDecl struct {
		Key   string `json:"key"`
		Op    string `json:"op"`
		Value any    `json:"value"`
	}

	// ArchetypeDecl declares a named archetype.
	ArchetypeDecl struct {
		Description string         `json:"description,omitempty"`
		Parent      string         `json:"parent,omitempty"`
		Fragments   []FragmentDecl `json:"fragments,omitempty"`
	}

	// ConfigurationDecl declares a shared configuration.
	ConfigurationDecl struct {
		Description string         `json:"description,omitempty"`
		Fragments   []FragmentDecl `json:"fragments,omitempty"`
	}

	// ProjectDecl declares a project.
	ProjectDecl struct {
		Path       string                    `json:"path,omitempty"`
		Archetypes []string                  `json:"archetypes,omitempty"`
		Fragments  []FragmentDecl            `json:"fragments,omitempty"`
		Extend     map[string][]FragmentDecl `json:"extend,omitempty"`
	}
)

// Load reads and parses the kilnfile at path.
func Load(path string) (*Kilnfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kilnfile at %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse validates data against the kilnfile schema and decodes it.
func Parse(data []byte, path string) (*Kilnfile, error) {
	result, err := cueutil.ParseAndDecode[Kilnfile](kilnfileSchema, data, "#Kilnfile", cueutil.WithFilename(path))
	if err != nil {
		return nil, err
	}
	kf := result.Value
	kf.FilePath = path
	return kf, nil
}

// Find walks up from dir to the nearest directory holding a kilnfile.cue.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: searched upwards from the working directory", ErrNotFound)
		}
		dir = parent
	}
}

// Dir returns the directory project paths are resolved against.
func (kf *Kilnfile) Dir() string {
	if kf.FilePath == "" {
		return "."
	}
	return filepath.Dir(kf.FilePath)
}
