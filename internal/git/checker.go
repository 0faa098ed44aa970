// Package git validates the Git context lodge commands run in.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Checker runs git queries against the current working directory.
type Checker struct{}

// NewChecker creates a new Git checker.
func NewChecker() *Checker {
	return &Checker{}
}

// IsGitRepository reports whether the working directory sits inside a
// Git repository.
func (c *Checker) IsGitRepository() (bool, error) {
	err := exec.Command("git", "rev-parse", "--git-dir").Run()
	if err != nil {
		if _, ok := err.(*exec.Error); ok {
			return false, fmt.Errorf("git not found in PATH\nLodge requires Git to be installed.\nInstall Git: https://git-scm.com/downloads")
		}
		return false, nil
	}
	return true, nil
}

// GetGitRoot returns the absolute path of the repository root.
func (c *Checker) GetGitRoot() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get Git root: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsGitRoot reports whether the working directory is the repository
// root, and returns that root either way.
func (c *Checker) IsGitRoot() (bool, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return false, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	gitRoot, err := c.GetGitRoot()
	if err != nil {
		return false, "", err
	}

	return filepath.Clean(cwd) == filepath.Clean(gitRoot), gitRoot, nil
}

// ValidateGitContext verifies the command runs from the root of a Git
// repository. The returned errors are worded for direct CLI display.
func (c *Checker) ValidateGitContext() error {
	isRepo, err := c.IsGitRepository()
	if err != nil {
		return err
	}
	if !isRepo {
		return fmt.Errorf("not a Git repository\n\nLodge coordinates knowledge inside a Git repository.\n\nRun 'git init' first, then 'lodge init'")
	}

	isRoot, gitRoot, err := c.IsGitRoot()
	if err != nil {
		return err
	}
	if !isRoot {
		cwd, _ := os.Getwd()
		return fmt.Errorf("must run from Git repository root\n\nGit root: %s\nCurrent directory: %s\n\nPlease cd to the Git root and retry", gitRoot, cwd)
	}

	return nil
}

// IsWorkspaceClean reports whether the working tree has no staged,
// unstaged, or untracked changes.
func (c *Checker) IsWorkspaceClean() (bool, error) {
	out, err := exec.Command("git", "status", "--porcelain").Output()
	if err != nil {
		return false, fmt.Errorf("failed to check Git status: %w", err)
	}
	return len(strings.TrimSpace(string(out))) == 0, nil
}

// GetDirtyFiles returns a printable summary of uncommitted changes,
// or the empty string when the tree is clean.
func (c *Checker) GetDirtyFiles() (string, error) {
	out, err := exec.Command("git", "status", "--porcelain").Output()
	if err != nil {
		return "", fmt.Errorf("failed to check Git status: %w", err)
	}

	porcelain := strings.TrimSpace(string(out))
	if porcelain == "" {
		return "", nil
	}

	var modified, untracked []string
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 3 {
			continue
		}
		file := strings.TrimSpace(line[2:])
		if strings.HasPrefix(line, "??") {
			untracked = append(untracked, file)
		} else {
			modified = append(modified, file)
		}
	}

	var b strings.Builder
	if len(modified) > 0 {
		b.WriteString("Uncommitted changes:\n")
		for _, f := range modified {
			fmt.Fprintf(&b, " M %s\n", f)
		}
	}
	if len(untracked) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Untracked files:\n")
		for _, f := range untracked {
			fmt.Fprintf(&b, "?? %s\n", f)
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
