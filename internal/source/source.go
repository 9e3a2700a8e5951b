// Package source provides the source-fetch collaborator used when a
// template's rendered output depends on fetched source. Network
// download and archive extraction are outside the engine; what lives
// here is the provider contract and a local-checkout implementation
// that reads version strings from source control metadata.
package source

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sourceplane/pkgforge/internal/model"
)

// Fetched describes one provided source tree.
type Fetched struct {
	Dir     string
	Version string
}

// Provider makes a template's source available under workDir before the
// final template re-evaluation.
type Provider interface {
	Provide(ctx context.Context, src model.Source, workDir string) (Fetched, error)
}

// GitProvider serves git sources from local checkouts and derives
// version metadata with git describe.
type GitProvider struct{}

// Provide resolves a git source entry to its local checkout and reads
// its describe output. Remote URLs are rejected: fetching them is the
// download collaborator's job, not the engine's.
func (GitProvider) Provide(ctx context.Context, src model.Source, workDir string) (Fetched, error) {
	dir := src.GitURL
	if dir == "" {
		dir = src.Path
	}
	if dir == "" {
		return Fetched{}, fmt.Errorf("source entry has neither git_url nor path")
	}
	if strings.Contains(dir, "://") {
		return Fetched{}, fmt.Errorf("remote source %q requires the download collaborator", dir)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workDir, dir)
	}

	described, err := Describe(ctx, dir)
	if err != nil {
		return Fetched{}, err
	}
	return Fetched{Dir: dir, Version: described}, nil
}

// Describe returns `git describe --tags --always` for a checkout, the
// version string templates read from source control metadata.
func Describe(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "describe", "--tags", "--always")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git describe failed in %s: %w", dir, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// CurrentRevision returns the checkout's HEAD commit hash.
func CurrentRevision(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed in %s: %w", dir, err)
	}
	return strings.TrimSpace(string(output)), nil
}
