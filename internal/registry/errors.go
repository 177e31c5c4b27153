// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModifyOutsideMaster is returned by Modify when the module is not
	// checked out on master.
	ErrModifyOutsideMaster = errors.New("modules can only be modified on master")
	// ErrUncommittedChanges is returned when the aggregating project commit
	// of a workflow fails. The per-module work is done; the project keeps
	// the staged changes.
	ErrUncommittedChanges = errors.New("project changes left uncommitted")
	// ErrModuleNotFound is returned when a module is not part of the registry.
	ErrModuleNotFound = errors.New("module not found")
	// ErrInvalidVersion is returned when a workflow needs an exact version.
	ErrInvalidVersion = errors.New("an exact version is required")
)

// BatchError collects the per-module failures of a workflow that kept
// going after the first one.
type BatchError struct {
	Op   string
	Errs []error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %d failed: %s", e.Op, len(e.Errs), strings.Join(msgs, "; "))
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error { return e.Errs }

// batch returns nil for no errors and a *BatchError otherwise.
func batch(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &BatchError{Op: op, Errs: errs}
}

// moduleError names the module a workflow step failed on.
func moduleError(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("module %q: %w", name, err)
}
