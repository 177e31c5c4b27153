// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestValidationWrapsPlainErrors(t *testing.T) {
	t.Parallel()

	if err := Validation(nil, ".moduni.cue"); err != nil {
		t.Errorf("Validation(nil) = %v, want nil", err)
	}

	cause := errors.New("some error")
	err := Validation(cause, ".moduni.cue")
	if !errors.Is(err, cause) {
		t.Errorf("Validation() = %v, want it to wrap the cause", err)
	}
	if got, want := err.Error(), ".moduni.cue: some error"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestJSONPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{path: nil, want: ""},
		{path: []string{"name"}, want: "name"},
		{path: []string{"developer", "email"}, want: "developer.email"},
		{path: []string{"tags", "0", "color"}, want: "tags[0].color"},
		{path: []string{"repository_managers", "1", "hosts", "0"}, want: "repository_managers[1].hosts[0]"},
		{path: []string{"0"}, want: "0"},
	}

	for _, tt := range tests {
		if got := jsonPath(tt.path); got != tt.want {
			t.Errorf("jsonPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 100), 100, "test.cue"); err != nil {
		t.Errorf("CheckFileSize() at limit = %v, want nil", err)
	}

	err := CheckFileSize(make([]byte, 101), 100, "test.cue")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("CheckFileSize() over limit = %v, want ErrTooLarge", err)
	}
	for _, want := range []string{"test.cue", "101", "100"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("CheckFileSize() error = %q, want it to contain %q", err, want)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "no violations",
			err:  &ValidationError{File: "config.cue"},
			want: "config.cue: invalid document",
		},
		{
			name: "one violation",
			err:  &ValidationError{File: "config.cue", Violations: []Violation{{Path: "tags[0].name", Message: "expected string, got int"}}},
			want: "config.cue: tags[0].name: expected string, got int",
		},
		{
			name: "several violations",
			err: &ValidationError{File: "config.cue", Violations: []Violation{
				{Message: "syntax error"},
				{Path: "log_level", Message: "conflicting values"},
			}},
			want: "config.cue: 2 violations:\n  syntax error\n  log_level: conflicting values",
		},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("%s: Error() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
