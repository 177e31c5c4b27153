// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestProvisioningError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := provisioningError("Local", "create", "core", cause)

	if !errors.Is(err, ErrRemoteProvisioning) {
		t.Error("errors.Is(err, ErrRemoteProvisioning) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	var pe *ProvisioningError
	if !errors.As(err, &pe) || pe.Manager != "Local" || pe.Op != "create" || pe.Name != "core" {
		t.Fatalf("errors.As() = %+v", pe)
	}
	if got, want := err.Error(), `Local: create "core": boom`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := provisioningError("Local", "list", "", cause).Error(), "Local: list: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if provisioningError("Local", "list", "", nil) != nil {
		t.Error("provisioningError(nil) != nil")
	}
}

func TestProvisioningTimeout(t *testing.T) {
	t.Parallel()

	err := provisioningError("Server", "create", "core", fmt.Errorf("post: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrProvisioningTimeout) {
		t.Error("errors.Is(err, ErrProvisioningTimeout) = false")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is(err, context.DeadlineExceeded) = false")
	}
	if !errors.Is(ErrProvisioningTimeout, context.DeadlineExceeded) {
		t.Error("ErrProvisioningTimeout does not wrap context.DeadlineExceeded")
	}
}
