// Package vcs resolves version-control metadata for tracked modules. A module
// is located by walking upward from one of its files until the enclosing git
// repository is found.
package vcs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"

	"crumbtrail/pkg/record"
)

var (
	// ErrNoRepository indicates no git repository encloses the module path.
	ErrNoRepository = errors.New("vcs: no git repository found")
	// ErrDirtyRepository indicates uncommitted changes were found while the
	// caller demanded a clean tree.
	ErrDirtyRepository = errors.New("vcs: repository has uncommitted changes")
	// ErrNoSourcePath indicates the module has no usable filesystem location.
	ErrNoSourcePath = errors.New("vcs: module has no source path")
)

// DetachedBranch is recorded when HEAD does not point at a named branch.
const DetachedBranch = "detached"

// Module names a tracked module and a path (file or directory) inside its
// checkout.
type Module struct {
	Name string
	Path string
}

// Describe resolves the git state of the repository enclosing the module's
// path. When allowDirty is false, uncommitted changes fail with
// ErrDirtyRepository. A path outside any repository fails with
// ErrNoRepository.
func Describe(m Module, allowDirty bool) (*record.VersionRecord, error) {
	if m.Path == "" {
		return nil, fmt.Errorf("%w: module %q", ErrNoSourcePath, m.Name)
	}

	dir := m.Path
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	} else if err != nil {
		// The compiled-in source path may not exist on this machine; fall
		// back to its directory portion for the upward walk.
		dir = filepath.Dir(dir)
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: module %q at path %q", ErrNoRepository, m.Name, m.Path)
		}
		return nil, fmt.Errorf("vcs: open repository for module %q: %w", m.Name, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("vcs: worktree for module %q: %w", m.Name, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("vcs: status for module %q: %w", m.Name, err)
	}
	dirty := !status.IsClean()
	if dirty && !allowDirty {
		return nil, fmt.Errorf("%w: module %q", ErrDirtyRepository, m.Name)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("vcs: resolve HEAD for module %q: %w", m.Name, err)
	}
	branch := DetachedBranch
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	remotes := map[string]string{}
	if rs, err := repo.Remotes(); err == nil {
		for _, r := range rs {
			cfg := r.Config()
			if len(cfg.URLs) > 0 {
				remotes[cfg.Name] = cfg.URLs[0]
			}
		}
	}

	return &record.VersionRecord{
		ModulePath:      m.Path,
		Name:            m.Name,
		GitActiveBranch: branch,
		GitCommitHash:   head.Hash().String(),
		GitIsDirty:      dirty,
		GitRemotes:      remotes,
		GitWorkingDir:   worktree.Filesystem.Root(),
	}, nil
}
