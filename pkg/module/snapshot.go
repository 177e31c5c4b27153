// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/moduni/moduni/pkg/scm"
)

const (
	// DefaultName is the name given to a snapshot that was never edited.
	DefaultName = "My module"
	// DefaultDescription is the placeholder description of a new snapshot.
	DefaultDescription = "Write your description here..."

	// MinMaturityLevel and MaxMaturityLevel bound Snapshot.MaturityLevel.
	MinMaturityLevel = 1
	MaxMaturityLevel = 9
)

type (
	// Tag is a colored label attached to a module.
	Tag struct {
		Name  string
		Color string
	}

	// Snapshot is the metadata of a module at one version.
	Snapshot struct {
		Name          string
		Description   string
		MaturityLevel int
		// Path is the working copy location of the module, relative to the
		// project root when the module lives inside a project.
		Path         string
		Tags         []Tag
		Dependencies []Dependency
	}

	// SnapshotError describes one failed validation rule.
	SnapshotError struct {
		Field  string
		Path   string
		Reason string
	}
)

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %q: %s", e.Field, e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap returns scm.ErrInvalidPath for path failures and
// ErrInvalidMetadata for every other field.
func (e *SnapshotError) Unwrap() error {
	if e.Field == "path" {
		return scm.ErrInvalidPath
	}
	return ErrInvalidMetadata
}

// DefaultSnapshot returns the metadata of a module nobody has edited yet.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		Name:          DefaultName,
		Description:   DefaultDescription,
		MaturityLevel: MinMaturityLevel,
	}
}

// SetMaturityLevel assigns level clamped into [MinMaturityLevel, MaxMaturityLevel].
func (s *Snapshot) SetMaturityLevel(level int) {
	s.MaturityLevel = ClampMaturity(level)
}

// ClampMaturity bounds level into the valid maturity range.
func ClampMaturity(level int) int {
	return min(max(level, MinMaturityLevel), MaxMaturityLevel)
}

// Clone returns a copy that shares no slices with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Tags = slices.Clone(s.Tags)
	c.Dependencies = slices.Clone(s.Dependencies)
	return &c
}

// Validate reports every rule the snapshot breaks. A snapshot needs a
// name, named tags and a path; a snapshot for a module being created also
// needs that path to be a directory holding the initial content.
func (s *Snapshot) Validate(isCreation bool) error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, &SnapshotError{Field: "name", Reason: "the module name must not be empty"})
	}
	for i, tag := range s.Tags {
		if strings.TrimSpace(tag.Name) == "" {
			errs = append(errs, &SnapshotError{Field: fmt.Sprintf("tags[%d].name", i), Reason: "a tag name must not be empty"})
		}
	}
	if s.Path == "" {
		errs = append(errs, &SnapshotError{Field: "path", Reason: "the path to the repository must not be empty"})
	} else if isCreation {
		entries, err := os.ReadDir(s.Path)
		switch {
		case err != nil:
			errs = append(errs, &SnapshotError{Field: "path", Path: s.Path, Reason: "directory is not readable"})
		case len(entries) == 0:
			errs = append(errs, &SnapshotError{Field: "path", Path: s.Path, Reason: "the directory of a new module must not be empty"})
		}
	}
	for _, dep := range s.Dependencies {
		if err := dep.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Equal reports whether s and other carry the same metadata.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Name == other.Name &&
		s.Description == other.Description &&
		s.MaturityLevel == other.MaturityLevel &&
		s.Path == other.Path &&
		slices.Equal(s.Tags, other.Tags) &&
		slices.Equal(s.Dependencies, other.Dependencies)
}
