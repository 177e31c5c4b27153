// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/moduni/moduni/internal/issue"
	"github.com/moduni/moduni/internal/registry"
	"github.com/moduni/moduni/pkg/cueutil"
	"github.com/moduni/moduni/pkg/module"
	"github.com/moduni/moduni/pkg/provider"
	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/version"
)

func TestNewServiceError_PanicsOnNilErr(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on nil Err, got none")
		}
		if msg, ok := r.(string); !ok || msg != "ServiceError: Err must not be nil" {
			t.Fatalf("unexpected panic value: %v", r)
		}
	}()

	newServiceError(nil, 0, "")
}

func TestServiceError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	underlying := errors.New("underlying error")
	svcErr := newServiceError(underlying, issue.ModuleNotFoundId, "")

	if svcErr.Error() != "underlying error" {
		t.Errorf("Error() = %q, want %q", svcErr.Error(), "underlying error")
	}
	if !errors.Is(svcErr, underlying) {
		t.Error("errors.Is should find underlying error via Unwrap")
	}
}

func TestRenderServiceError(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, nil)
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})

	t.Run("styled message only", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, newServiceError(errors.New("test"), 0, "only this"))
		if buf.String() != "only this" {
			t.Errorf("output = %q, want %q", buf.String(), "only this")
		}
	})

	t.Run("with issue", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, newServiceError(errors.New("test"), issue.CheckoutConflictId, "styled: "))
		if buf.Len() <= len("styled: ") {
			t.Errorf("expected styled message and issue content, got %q", buf.String())
		}
	})
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 0},
		{"modify outside master", fmt.Errorf("modify Core [v1.0.0]: %w", registry.ErrModifyOutsideMaster), issue.ModifyOutsideMasterId},
		{"uncommitted project", fmt.Errorf("%w: %w", registry.ErrUncommittedChanges, scm.ErrEmptyCommit), issue.UncommittedChangesId},
		{"module not found", fmt.Errorf("%w: ghost", registry.ErrModuleNotFound), issue.ModuleNotFoundId},
		{"unknown version", &module.VersionError{Op: "checkout", Module: "Core", Err: module.ErrUnknownVersion}, issue.UnknownVersionId},
		{"malformed version", &version.MalformedVersionError{Value: "", Reason: "empty version"}, issue.UnknownVersionId},
		{"checkout conflict", &scm.RefError{Op: "checkout", Ref: "master", Err: scm.ErrCheckoutConflict}, issue.CheckoutConflictId},
		{"missing remote ref", &scm.RefError{Op: "checkout", Ref: "v1.1.x", Err: scm.ErrNoSuchRemoteRef}, issue.NoSuchRemoteRefId},
		{"provisioning timeout", &provider.ProvisioningError{Manager: "bb", Op: "create", Err: provider.ErrProvisioningTimeout}, issue.ProvisioningTimeoutId},
		{"provisioning failure", &provider.ProvisioningError{Manager: "bb", Op: "create", Err: errors.New("503")}, issue.RemoteProvisioningFailedId},
		{"invalid path", &module.SnapshotError{Field: "path", Reason: "empty"}, issue.InvalidMetadataId},
		{"blank module name", &module.SnapshotError{Field: "name", Reason: "empty"}, issue.InvalidMetadataId},
		{"invalid metadata document", &cueutil.ValidationError{File: ".moduni.cue", Violations: []cueutil.Violation{{Path: "uuid", Message: "incomplete value"}}}, issue.InvalidMetadataId},
		{"permission denied", fmt.Errorf("write lock: %w", os.ErrPermission), issue.PermissionDeniedId},
		{"batch of one", &registry.BatchError{Op: "import", Errs: []error{registry.ErrModuleNotFound}}, issue.ModuleNotFoundId},
		{"deadline", context.DeadlineExceeded, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAsServiceErrorKeepsExisting(t *testing.T) {
	t.Parallel()

	inner := newServiceError(errors.New("config"), issue.ConfigLoadFailedId, "")
	wrapped := fmt.Errorf("list: %w", inner)
	if got := asServiceError(wrapped); got != inner {
		t.Errorf("asServiceError() = %v, want the wrapped ServiceError", got)
	}
	if got := asServiceError(registry.ErrModuleNotFound); got.IssueID != issue.ModuleNotFoundId {
		t.Errorf("IssueID = %d, want %d", got.IssueID, issue.ModuleNotFoundId)
	}

	linked := issue.Wrap(registry.ErrModuleNotFound, "import module", issue.LinkIssue(issue.ProjectNotFoundId))
	if got := asServiceError(linked); got.IssueID != issue.ProjectNotFoundId {
		t.Errorf("IssueID = %d, want the linked %d", got.IssueID, issue.ProjectNotFoundId)
	}
}
