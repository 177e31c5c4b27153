// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrTooLarge is returned for documents above the configured size limit.
var ErrTooLarge = errors.New("document too large")

type (
	// Violation is one constraint a document breaks.
	Violation struct {
		// Path locates the offending value, e.g. "dependencies[0].module_id".
		// Empty for syntax errors.
		Path    string
		Message string
	}

	// ValidationError lists every violation found in one document.
	ValidationError struct {
		File       string
		Violations []Violation
	}
)

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

func (e *ValidationError) Error() string {
	switch len(e.Violations) {
	case 0:
		return e.File + ": invalid document"
	case 1:
		return e.File + ": " + e.Violations[0].String()
	}
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("%s: %d violations:\n  %s", e.File, len(lines), strings.Join(lines, "\n  "))
}

// Validation turns a CUE error into a *ValidationError for file. Errors
// without CUE detail are wrapped with the file name instead.
//
//	.moduni.cue: dependencies[0].minimum_version: incomplete value string
func Validation(err error, file string) error {
	if err == nil {
		return nil
	}
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}
	ve := &ValidationError{File: file, Violations: make([]Violation, 0, len(list))}
	for _, e := range list {
		path := jsonPath(e.Path())
		msg := e.Error()
		if path != "" {
			if rest, ok := strings.CutPrefix(msg, path); ok {
				msg = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			}
		}
		ve.Violations = append(ve.Violations, Violation{Path: path, Message: msg})
	}
	return ve
}

// jsonPath renders a CUE selector path with numeric elements as indices:
// ["tags", "0", "color"] reads "tags[0].color".
func jsonPath(elems []string) string {
	var b strings.Builder
	for i, el := range elems {
		switch {
		case i > 0 && isIndex(el):
			b.WriteString("[" + el + "]")
		case i > 0:
			b.WriteString("." + el)
		default:
			b.WriteString(el)
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}

// CheckFileSize rejects data longer than limit bytes with ErrTooLarge.
func CheckFileSize(data []byte, limit int64, file string) error {
	if n := int64(len(data)); n > limit {
		return fmt.Errorf("%s: %w: %d bytes, limit %d", file, ErrTooLarge, n, limit)
	}
	return nil
}
