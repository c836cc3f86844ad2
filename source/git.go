// Package source identifies the revision of the sources a design was elaborated from.
package source

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/log"
)

const shortHashLength = 12

// Revision is the state of the git repository containing the design sources.
type Revision struct {
	Hash string
	// Dirty is set if the worktree has uncommited changes.
	Dirty bool
}

// String returns the abbreviated hash, suffixed by `-dirty` for modified worktrees, or an empty string
// if the revision is unknown.
func (r Revision) String() string {
	if r.Hash == "" {
		return ""
	}
	hash := r.Hash
	if len(hash) > shortHashLength {
		hash = hash[:shortHashLength]
	}
	if r.Dirty {
		return hash + "-dirty"
	}
	return hash
}

// Describe returns the revision of the repository containing `dir`. Directories outside of any
// repository and repositories without commits have an empty revision.
func Describe(dir string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err == git.ErrRepositoryNotExists {
		log.Debug("'%s' is not part of a git repository.\n", dir)
		return Revision{}, nil
	}
	if err != nil {
		return Revision{}, errors.Wrapf(err, "failed to open the repository containing '%s'", dir)
	}

	head, err := repo.Head()
	if err == plumbing.ErrReferenceNotFound {
		log.Debug("The repository containing '%s' has no commits.\n", dir)
		return Revision{}, nil
	}
	if err != nil {
		return Revision{}, errors.Wrap(err, "failed to get repo HEAD")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, errors.Wrap(err, "failed to get repo worktree")
	}
	status, err := worktree.Status()
	if err != nil {
		return Revision{}, errors.Wrap(err, "failed to get repo status")
	}

	rev := Revision{Hash: head.Hash().String(), Dirty: !status.IsClean()}
	log.Debug("Design sources are at revision '%s'.\n", rev)
	return rev, nil
}
