// Package git provides the Git operations testbox needs: locating the repository
// root that holds a fixture file and cloning remote build contexts.
//
// Both are implemented with go-git, so no git binary has to be installed.
//
// Example usage:
//
//	// Directory the default testbox.yaml is looked up in
//	root, err := git.RepoRoot(".")
//
//	// Build context from a remote repository
//	if git.IsGitURL(path) {
//	    dir, cleanup, err := git.CloneTemp(ctx, path)
//	    defer cleanup()
//	}
package git
