// SPDX-License-Identifier: MPL-2.0

package dependency

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrInvalidRepository is returned when a repository has no name or URL.
var ErrInvalidRepository = errors.New("invalid repository")

var (
	// MavenCentral is the default public Maven repository.
	MavenCentral = Repository{Name: "central", URL: "https://repo1.maven.org/maven2/"}
	// Jitpack builds artifacts from Git repositories on demand.
	Jitpack = Repository{Name: "jitpack", URL: "https://jitpack.io/"}
)

// Repository is a named artifact source. Precedence is the position in the list
// a project declares: the first repository that can supply an artifact wins.
type Repository struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// SonatypeOSS returns the Sonatype OSS repository of the given kind, e.g.
// "snapshots" or "releases".
func SonatypeOSS(kind string) Repository {
	return Repository{
		Name: "sonatype-oss-" + kind,
		URL:  "https://oss.sonatype.org/content/repositories/" + kind + "/",
	}
}

// WellKnown returns the repository registered under a shorthand name:
// "central", "jitpack", or "sonatype:<kind>".
func WellKnown(name string) (Repository, bool) {
	switch {
	case name == MavenCentral.Name:
		return MavenCentral, true
	case name == Jitpack.Name:
		return Jitpack, true
	case strings.HasPrefix(name, "sonatype:"):
		return SonatypeOSS(strings.TrimPrefix(name, "sonatype:")), true
	default:
		return Repository{}, false
	}
}

// Validate checks that the repository has a name and a parseable URL.
func (r Repository) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: missing name for %q", ErrInvalidRepository, r.URL)
	}
	if _, err := url.Parse(r.URL); err != nil || r.URL == "" {
		return fmt.Errorf("%w: %s has bad url %q", ErrInvalidRepository, r.Name, r.URL)
	}
	return nil
}

// LocalPath returns the filesystem root of a file:// repository.
func (r Repository) LocalPath() (string, bool) {
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// String returns "name (url)".
func (r Repository) String() string {
	return r.Name + " (" + r.URL + ")"
}
