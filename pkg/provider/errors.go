// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRemoteProvisioning is matched by every failure to create, delete
	// or list remote repositories.
	ErrRemoteProvisioning = errors.New("remote provisioning failed")
	// ErrProvisioningTimeout is returned when a provisioning call exceeds
	// its deadline. It also matches context.DeadlineExceeded.
	ErrProvisioningTimeout = fmt.Errorf("provisioning timed out: %w", context.DeadlineExceeded)
	// ErrUnknownKind is returned for a manager kind outside the closed set.
	ErrUnknownKind = errors.New("unknown repository manager kind")
	// ErrInvalidSettings is returned by Settings.Validate.
	ErrInvalidSettings = errors.New("invalid repository manager settings")
	// ErrCircuitOpen is returned while a host is considered down after
	// repeated failures.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrRepositoryExists is returned when creating a repository twice.
	ErrRepositoryExists = errors.New("repository already exists")
	// ErrRepositoryNotFound is returned when deleting an unknown repository.
	ErrRepositoryNotFound = errors.New("repository not found")
)

// ProvisioningError reports which manager and operation failed.
type ProvisioningError struct {
	Manager string
	Op      string
	Name    string
	Err     error
}

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s: %v", e.Manager, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %q: %v", e.Manager, e.Op, e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProvisioningError) Unwrap() error { return e.Err }

// Is reports ErrRemoteProvisioning as part of the chain.
func (e *ProvisioningError) Is(target error) bool { return target == ErrRemoteProvisioning }

func provisioningError(manager, op, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrProvisioningTimeout) {
		err = fmt.Errorf("%w: %w", ErrProvisioningTimeout, err)
	}
	return &ProvisioningError{Manager: manager, Op: op, Name: name, Err: err}
}
