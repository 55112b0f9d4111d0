package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// RepoRoot returns the root of the git worktree containing dir. Falls back to dir
// itself if it is not inside a git repository.
func RepoRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return abs, nil
		}
		return "", fmt.Errorf("failed to open repository at %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree.
		return abs, nil
	}
	return wt.Filesystem.Root(), nil
}

// WorkingRepoRoot is RepoRoot for the current working directory.
func WorkingRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return RepoRoot(wd)
}

// IsGitRepository checks if dir is inside a git repository.
func IsGitRepository(dir string) bool {
	_, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}
