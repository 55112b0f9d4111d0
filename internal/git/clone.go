package git

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Remote is a parsed remote build context such as
// "https://github.com/org/repo.git#main:docker".
type Remote struct {
	URL    string
	Ref    string
	Subdir string
}

// IsGitURL reports whether a build context refers to a remote git repository.
func IsGitURL(s string) bool {
	switch {
	case strings.HasPrefix(s, "git://"), strings.HasPrefix(s, "git@"):
		return true
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "ssh://"):
		repo, _, _ := strings.Cut(s, "#")
		return strings.HasSuffix(repo, ".git")
	}
	return false
}

// ParseRemote splits a build context URL into repository, ref and subdirectory,
// following docker's "url#ref:subdir" notation.
func ParseRemote(s string) (Remote, error) {
	if !IsGitURL(s) {
		return Remote{}, fmt.Errorf("not a git URL: %s", s)
	}
	repo, fragment, _ := strings.Cut(s, "#")
	ref, subdir, _ := strings.Cut(fragment, ":")

	subdir = filepath.Clean("/" + subdir)[1:]
	return Remote{URL: repo, Ref: ref, Subdir: subdir}, nil
}

// Clone makes a shallow clone of the remote into dir and returns the directory the
// build should use.
func Clone(ctx context.Context, remote Remote, dir string, progress io.Writer) (string, error) {
	opts := &gogit.CloneOptions{
		URL:          remote.URL,
		Depth:        1,
		SingleBranch: true,
		Progress:     progress,
	}
	if remote.Ref != "" {
		opts.ReferenceName = refName(remote.Ref)
	}

	if _, err := gogit.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return "", fmt.Errorf("failed to clone %s: %w", remote.URL, err)
	}

	if remote.Subdir == "" {
		return dir, nil
	}
	contextDir := filepath.Join(dir, remote.Subdir)
	info, err := os.Stat(contextDir)
	if err != nil {
		return "", fmt.Errorf("build context %s not found in %s: %w", remote.Subdir, remote.URL, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("build context %s in %s is not a directory", remote.Subdir, remote.URL)
	}
	return contextDir, nil
}

// CloneTemp clones a remote build context into a temporary directory. The returned
// cleanup removes it and is safe to call on error.
func CloneTemp(ctx context.Context, url string) (string, func(), error) {
	noop := func() {}

	remote, err := ParseRemote(url)
	if err != nil {
		return "", noop, err
	}

	tmpDir, err := os.MkdirTemp("", "testbox-build-*")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	dir, err := Clone(ctx, remote, tmpDir, nil)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	return dir, cleanup, nil
}

// refName turns a branch or tag name into a reference. Full references are kept.
func refName(ref string) plumbing.ReferenceName {
	if strings.HasPrefix(ref, "refs/") {
		return plumbing.ReferenceName(ref)
	}
	if strings.HasPrefix(ref, "v") && len(ref) > 1 && ref[1] >= '0' && ref[1] <= '9' {
		return plumbing.NewTagReferenceName(ref)
	}
	return plumbing.NewBranchReferenceName(ref)
}
