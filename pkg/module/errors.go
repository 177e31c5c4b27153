// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"fmt"

	"github.com/moduni/moduni/pkg/version"
)

var (
	// ErrUnknownVersion is returned when a version is not in the module's
	// known versions.
	ErrUnknownVersion = errors.New("unknown version")
	// ErrVersionExists is returned when publishing a version twice.
	ErrVersionExists = errors.New("version already published")
	// ErrInvalidMetadata is returned for a snapshot whose fields cannot be
	// written to a metadata file.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// VersionError attaches the module name and version an operation was
// working on to the underlying failure.
type VersionError struct {
	Op      string
	Module  string
	Version version.BranchVersion
	Err     error
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	if e.Version.IsZero() {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Module, e.Err)
	}
	return fmt.Sprintf("%s %s [%s]: %v", e.Op, e.Module, e.Version, e.Err)
}

// Unwrap returns the underlying cause.
func (e *VersionError) Unwrap() error { return e.Err }
