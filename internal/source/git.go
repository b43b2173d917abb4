package source

import (
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitRevision is a Source backed by a single commit of a git repository.
// Nothing is read from the working tree.
type GitRevision struct {
	revision string
	commit   *object.Commit
	// prefix is the location of the source root within the repository.
	prefix string
}

// NewGitRevision opens the git repository containing root and resolves
// revision (a branch, tag, commit ID or any other revision expression go-git
// understands) to a commit.
func NewGitRevision(root, revision string) (*GitRevision, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening git repository at %s: %w", root, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("error resolving revision %q: %w", revision, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("error getting commit %s: %w", hash, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("error getting worktree: %w", err)
	}
	prefix, err := relativeTo(wt.Filesystem.Root(), root)
	if err != nil {
		return nil, err
	}
	return &GitRevision{
		revision: revision,
		commit:   commit,
		prefix:   prefix,
	}, nil
}

func (g *GitRevision) Open(p string) (io.ReadCloser, error) {
	// Cleaning against a leading slash confines the path to the root.
	cleaned := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p)), "/")
	file, err := g.commit.File(path.Join(g.prefix, cleaned))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s at %s: %w", p, g.revision, ErrNotFound)
		}
		return nil, fmt.Errorf("error reading %s at %s: %w", p, g.revision, err)
	}
	r, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("error reading %s at %s: %w", p, g.revision, err)
	}
	return r, nil
}

func (g *GitRevision) String() string {
	return fmt.Sprintf("%s@%s", g.revision, g.commit.Hash.String()[:7])
}

// relativeTo returns dir relative to the repository root as a slash
// separated path. Symlinks are resolved on both sides first.
func relativeTo(repoRoot, dir string) (string, error) {
	absRoot, err := canonical(repoRoot)
	if err != nil {
		return "", err
	}
	absDir, err := canonical(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not inside git repository %s", dir, repoRoot)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("error resolving path %s: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}
