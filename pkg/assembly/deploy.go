// SPDX-License-Identifier: MPL-2.0

package assembly

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// DeploySkipped means no deploy directory was configured or it does not exist.
	DeploySkipped DeployStatus = "skipped"
	// DeployCopied means the archive was copied into the deploy directory.
	DeployCopied DeployStatus = "copied"
	// DeployUnchanged means an identical archive was already deployed.
	DeployUnchanged DeployStatus = "unchanged"
	// DeployFailed means the copy failed. The build itself still succeeded.
	DeployFailed DeployStatus = "failed"
)

type (
	// DeployStatus describes what Deploy did.
	DeployStatus string

	// DeployOutcome is the result of a deploy attempt. Failures are reported
	// here as warnings rather than returned as errors.
	DeployOutcome struct {
		Status DeployStatus `json:"status" yaml:"status"`
		Target string       `json:"target,omitempty" yaml:"target,omitempty"`
		Reason string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	}
)

// Deploy copies archive into dir as name when dir exists. An empty name keeps
// the archive's file name. An existing file with the same digest is left
// alone so repeated builds do not touch the deployment.
func Deploy(archive, dir, name string) DeployOutcome {
	if dir == "" {
		return DeployOutcome{Status: DeploySkipped, Reason: "no deploy directory configured"}
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return DeployOutcome{Status: DeploySkipped, Target: dir, Reason: "deploy directory does not exist"}
	}
	if err != nil {
		return failed(dir, err)
	}
	if !info.IsDir() {
		return DeployOutcome{Status: DeploySkipped, Target: dir, Reason: "deploy path is not a directory"}
	}

	if name == "" {
		name = filepath.Base(archive)
	}
	target := filepath.Join(dir, name)
	want, err := FileDigest(archive)
	if err != nil {
		return failed(target, err)
	}
	if have, err := FileDigest(target); err == nil && have == want {
		return DeployOutcome{Status: DeployUnchanged, Target: target}
	}

	if err := copyAtomic(archive, target); err != nil {
		return failed(target, err)
	}
	slog.Debug("deployed archive", "archive", archive, "target", target)
	return DeployOutcome{Status: DeployCopied, Target: target}
}

func failed(target string, err error) DeployOutcome {
	slog.Warn("deploy failed", "target", target, "error", err)
	return DeployOutcome{Status: DeployFailed, Target: target, Reason: err.Error()}
}

func copyAtomic(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
