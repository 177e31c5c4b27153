// SPDX-License-Identifier: MPL-2.0

package scm

// File status values, mirroring the short codes of git status.
const (
	StatusUnmodified FileStatus = iota
	StatusUntracked
	StatusModified
	StatusAdded
	StatusDeleted
	StatusRenamed
	StatusCopied
	StatusUpdatedButUnmerged
)

type (
	// FileStatus is the change state of a file in either the index or the
	// working tree.
	FileStatus int

	// File is one entry of a working copy status listing.
	File struct {
		Path     string
		Staging  FileStatus
		Worktree FileStatus
	}
)

// String returns the one-letter git status code.
func (s FileStatus) String() string {
	switch s {
	case StatusUntracked:
		return "?"
	case StatusModified:
		return "M"
	case StatusAdded:
		return "A"
	case StatusDeleted:
		return "D"
	case StatusRenamed:
		return "R"
	case StatusCopied:
		return "C"
	case StatusUpdatedButUnmerged:
		return "U"
	default:
		return " "
	}
}

// IsStaged reports whether the file has changes in the index.
func (f File) IsStaged() bool {
	return f.Staging != StatusUnmodified && f.Staging != StatusUntracked
}

// String renders the entry as git status --short does.
func (f File) String() string {
	return f.Staging.String() + f.Worktree.String() + " " + f.Path
}
