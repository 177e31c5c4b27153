// SPDX-License-Identifier: MPL-2.0

package scm

import (
	"context"
	"regexp"
)

// RemoteName is the name of the tracked remote of every working copy.
const RemoteName = "origin"

type (
	// Repository is a single source-control working copy (or a bare
	// repository when IsBare reports true). Methods that talk to the
	// remote take a context; everything else is local disk I/O.
	//
	// Implementations are not safe for concurrent use. Callers serialize
	// access per repository.
	Repository interface {
		// Name is the repository name without the .git suffix.
		Name() string
		// WorkingCopyPath is the root of the working tree, or the git
		// directory for bare repositories.
		WorkingCopyPath() string
		RemoteURL() (string, error)
		SetRemoteURL(url string) error
		IsBare() bool
		// IsSubmodule reports whether the working copy is embedded in a
		// parent repository (its .git entry is a link file).
		IsSubmodule() bool

		// Branches lists local and remote-tracking branches by short name
		// (remote ones keep their "origin/" prefix).
		Branches() ([]string, error)
		LocalBranches() ([]string, error)
		// CurrentBranch returns the checked out branch, or "" when HEAD is
		// detached or the repository has no commits.
		CurrentBranch() (string, error)
		// CurrentCommit returns the HEAD commit hash, or "" when the
		// repository has no commits.
		CurrentCommit() (string, error)
		// NearestTag returns the closest tag reachable from commit.
		NearestTag(commit string) (string, error)
		ContainsBranch(name string) (bool, error)
		CreateBranch(name string) error
		Checkout(ref string) error

		StageAll() error
		StageFile(path string) error
		Commit(message string) error
		Status() ([]File, error)
		IsDirty() (bool, error)

		FindTags(pattern *regexp.Regexp) ([]string, error)
		AddTag(name string) error

		FetchAll(ctx context.Context) error
		// Push publishes the current branch to the remote.
		Push(ctx context.Context) error
		// PushRef publishes a single tag or branch by short name.
		PushRef(ctx context.Context, ref string) error
		Pull(ctx context.Context) error

		// FileContentAt returns the content of path at ref. A missing file
		// is reported with an error wrapping fs.ErrNotExist.
		FileContentAt(path, ref string) ([]byte, error)
		// WriteFile writes data to path relative to the working tree root.
		WriteFile(path string, data []byte) error

		// AddSubmodule clones url into path (relative to the working copy)
		// and registers it in .gitmodules.
		AddSubmodule(ctx context.Context, url, path string) (Repository, error)
		MoveSubmodule(oldPath, newPath string) error
		RemoveSubmodule(path string, force bool) error
		// SubmodulePath returns path relative to the working copy root.
		SubmodulePath(path string) (string, error)

		// MoveTo relocates the working copy, rewriting nested git links.
		MoveTo(newPath string) error
		// CloneTo clones this repository into path and returns the clone.
		CloneTo(ctx context.Context, path string) (Repository, error)

		// Close releases the handle. Later calls fail with
		// ErrRepositoryNotInitialized.
		Close() error
	}

	// Opener opens an existing working copy.
	Opener func(path string) (Repository, error)
)
