// Package tree abstracts the state store behind the tracked dotfiles tree.
package tree

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/spf13/viper"
)

// GitStore is the production Store backed by a git repository at the tree root.
type GitStore struct {
	root string
	// branch is the remote branch fetches are narrowed to; empty fetches everything.
	branch string
}

// NewGitStore returns a git-backed store rooted at root, tracking the configured
// remote branch.
func NewGitStore(root string) *GitStore {
	return &GitStore{
		root:   root,
		branch: viper.GetString(key.UpdateBranch),
	}
}

func (s *GitStore) Root() string {
	return s.root
}

// git runs a git subcommand inside the tree and returns its trimmed stdout.
func (s *GitStore) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = s.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("git %s", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

func (s *GitStore) Head() (string, error) {
	head, err := s.git("rev-parse", "HEAD")
	if err != nil {
		return "", errs.NewIO("read local version", s.root, err)
	}
	return head, nil
}

func (s *GitStore) Dirty() (bool, error) {
	status, err := s.git("status", "--porcelain")
	if err != nil {
		return false, errs.NewIO("inspect working tree", s.root, err)
	}
	return status != "", nil
}

func (s *GitStore) Fetch() error {
	args := []string{"fetch", "--quiet"}
	if s.branch != "" {
		args = append(args, "origin", s.branch)
	}

	if _, err := s.git(args...); err != nil {
		return errs.NewIO("fetch remote refs", s.root, err)
	}
	return nil
}

// FastForward advances HEAD to ref with --ff-only, so a divergent history fails with no
// partial changes applied.
func (s *GitStore) FastForward(ref string) error {
	if _, err := s.git("merge", "--ff-only", ref); err != nil {
		return errs.NewConflict("fast-forward", ref, err)
	}
	return nil
}

// Intact verifies the repository metadata answers basic queries.
func (s *GitStore) Intact() error {
	gitDir := filepath.Join(s.root, ".git")
	exists, err := filesystem.API().DirExists(gitDir)
	if err != nil || !exists {
		return errs.NewValidation("verify state store", gitDir, errors.New("metadata directory missing"))
	}

	if _, err := s.git("rev-parse", "--git-dir"); err != nil {
		return errs.NewValidation("verify state store", s.root, err)
	}
	return nil
}

// Files lists tracked files via git, falling back to a tree walk when the index is
// unavailable.
func (s *GitStore) Files() ([]string, error) {
	out, err := s.git("ls-files")
	if err != nil {
		log.Warnf("git ls-files unavailable, walking tree: %s", err)
		return TrackedFiles(s.root)
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		files = append(files, filepath.Join(s.root, line))
	}
	return files, nil
}
