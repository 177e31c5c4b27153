// SPDX-License-Identifier: MPL-2.0

package scm

import (
	"errors"
	"fmt"
)

var (
	// ErrRepositoryNotInitialized is returned when no repository is bound or
	// the handle was closed.
	ErrRepositoryNotInitialized = errors.New("repository not initialized")
	// ErrUnknownReference is returned when a ref does not exist.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrNoSuchRemoteRef is returned when a remote-tracking ref is absent.
	ErrNoSuchRemoteRef = errors.New("no such remote ref")
	// ErrCheckoutConflict is returned when local changes block a checkout
	// or a forced removal is required.
	ErrCheckoutConflict = errors.New("checkout conflict")
	// ErrEmptyCommit is returned when a commit has nothing staged.
	ErrEmptyCommit = errors.New("nothing to commit")
	// ErrInvalidPath is returned for paths outside the working copy or
	// destinations that are already occupied.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNoRemote is returned when the repository has no tracked remote.
	ErrNoRemote = errors.New("no remote configured")
)

type (
	// RefError carries the ref and repository a failure refers to.
	RefError struct {
		Op         string
		Repository string
		Ref        string
		Err        error
	}

	// PathError carries the offending path.
	PathError struct {
		Op   string
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *RefError) Error() string {
	switch {
	case e.Repository != "" && e.Ref != "":
		return fmt.Sprintf("%s %s@%s: %v", e.Op, e.Repository, e.Ref, e.Err)
	case e.Ref != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Repository, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *RefError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PathError) Unwrap() error { return e.Err }
