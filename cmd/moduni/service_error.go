// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/moduni/moduni/internal/issue"
	"github.com/moduni/moduni/internal/registry"
	"github.com/moduni/moduni/pkg/cueutil"
	"github.com/moduni/moduni/pkg/module"
	"github.com/moduni/moduni/pkg/provider"
	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/version"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints any styled message first, then the optional
// issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// classifyError maps the sentinel at the root of err to its catalog entry.
// Zero means no entry applies.
func classifyError(err error) issue.Id {
	var validation *cueutil.ValidationError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, registry.ErrModifyOutsideMaster):
		return issue.ModifyOutsideMasterId
	case errors.Is(err, registry.ErrUncommittedChanges):
		return issue.UncommittedChangesId
	case errors.Is(err, registry.ErrModuleNotFound):
		return issue.ModuleNotFoundId
	case errors.Is(err, module.ErrUnknownVersion), errors.Is(err, version.ErrMalformedVersion),
		errors.Is(err, registry.ErrInvalidVersion):
		return issue.UnknownVersionId
	case errors.Is(err, scm.ErrCheckoutConflict):
		return issue.CheckoutConflictId
	case errors.Is(err, scm.ErrNoSuchRemoteRef):
		return issue.NoSuchRemoteRefId
	case errors.Is(err, provider.ErrProvisioningTimeout):
		return issue.ProvisioningTimeoutId
	case errors.Is(err, provider.ErrRemoteProvisioning):
		return issue.RemoteProvisioningFailedId
	case errors.As(err, &validation), errors.Is(err, module.ErrInvalidDependency), errors.Is(err, module.ErrInvalidMetadata),
		errors.Is(err, scm.ErrInvalidPath):
		return issue.InvalidMetadataId
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId
	default:
		return 0
	}
}

// asServiceError wraps err with the catalog entry that explains it: the
// issue linked by an ActionableError in the chain, else the classified
// sentinel. A ServiceError already in the chain is returned as is.
func asServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return newServiceError(err, ae.Issue, "")
	}
	return newServiceError(err, classifyError(err), "")
}
