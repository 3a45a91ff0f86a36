// Package vcs wraps the git commands a build needs: locating the repository
// that holds the templates and initializing a repository in a new project.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sysmanage-labs/projbuilder/internal/branding"
)

// ErrGitMissing is returned when git is not on PATH.
var ErrGitMissing = errors.New("git is required but not found in PATH")

// HomeEnv is the environment variable that overrides repository discovery.
func HomeEnv() string {
	return branding.EnvVar("HOME")
}

// EnsureGit checks that git can be run.
func EnsureGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return ErrGitMissing
	}
	return nil
}

// RepoRoot returns the root of the repository containing dir, or the current
// directory when dir is empty. The HOME override wins over git when set.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	if home := os.Getenv(HomeEnv()); home != "" {
		return filepath.Abs(home)
	}
	if err := EnsureGit(); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("cannot determine repository root: set %s or run from within a git repository: %w", HomeEnv(), err)
	}

	root := strings.TrimSpace(string(output))
	if root == "" {
		return "", fmt.Errorf("cannot determine repository root: git printed no path")
	}
	return filepath.Clean(root), nil
}

// InitArgs is the argv that turns the current directory into a repository.
func InitArgs() []string {
	return []string{"git", "init"}
}
