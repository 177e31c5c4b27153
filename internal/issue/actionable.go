// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
)

type (
	// ActionableError tells the user what failed, on which resource, and
	// what to try next. Build one with Wrap:
	//
	//	return issue.Wrap(err, "check out module",
	//		issue.OnResource("Core"),
	//		issue.Suggest("Run 'moduni module versions Core' to list versions"),
	//		issue.LinkIssue(issue.UnknownVersionId),
	//	)
	ActionableError struct {
		// Operation is a verb phrase such as "publish version".
		Operation   string
		Resource    string
		Suggestions []string
		Cause       error
		// Issue links a catalog entry with longer remediation notes.
		Issue Id
	}

	// Option decorates an ActionableError built by Wrap.
	Option func(*ActionableError)
)

// Wrap describes a failed operation caused by err. A nil err yields an
// error without cause.
func Wrap(err error, operation string, opts ...Option) *ActionableError {
	ae := &ActionableError{Operation: operation, Cause: err}
	for _, opt := range opts {
		opt(ae)
	}
	return ae
}

// OnResource names the file, path or module involved.
func OnResource(resource string) Option {
	return func(ae *ActionableError) { ae.Resource = resource }
}

// Suggest appends remediation hints.
func Suggest(suggestions ...string) Option {
	return func(ae *ActionableError) { ae.Suggestions = append(ae.Suggestions, suggestions...) }
}

// LinkIssue attaches a catalog entry.
func LinkIssue(id Id) Option {
	return func(ae *ActionableError) { ae.Issue = id }
}

// Error returns "failed to <operation>: <resource>: <cause>", omitting
// empty parts.
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error { return e.Cause }

// HasSuggestions reports whether any hint is attached.
func (e *ActionableError) HasSuggestions() bool { return len(e.Suggestions) > 0 }

// CatalogIssue returns the linked catalog entry, or nil.
func (e *ActionableError) CatalogIssue() *Issue {
	if e.Issue == 0 {
		return nil
	}
	return Get(e.Issue)
}

// Format renders the error for a terminal, one suggestion per line:
//
//	failed to load configuration: config.cue: file not found
//	  → Run 'moduni config init' to write a default configuration
//
// Verbose output also lists every error of the cause chain below a
// "caused by:" header.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())
	for _, s := range e.Suggestions {
		b.WriteString("\n  → ")
		b.WriteString(s)
	}
	if !verbose || e.Cause == nil {
		return b.String()
	}
	b.WriteString("\n\ncaused by:")
	for err := e.Cause; err != nil; err = errors.Unwrap(err) {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}
