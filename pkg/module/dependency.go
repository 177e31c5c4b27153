// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/moduni/moduni/pkg/version"
)

// Relationship kinds between a module and one of its dependencies.
const (
	// RelationshipMinimum requires at least the minimum version.
	RelationshipMinimum Relationship = iota
	// RelationshipRange requires a version between minimum and maximum.
	RelationshipRange
	// RelationshipExact requires exactly the minimum version.
	RelationshipExact
)

// ErrInvalidDependency is the sentinel error wrapped by InvalidDependencyError.
var ErrInvalidDependency = errors.New("invalid dependency")

type (
	// Relationship is the constraint kind of a Dependency.
	Relationship int

	// Dependency is an edge to another module, addressed by its ID.
	Dependency struct {
		ModuleID       uuid.UUID
		MinimumVersion version.BranchVersion
		// MaximumVersion bounds RelationshipRange. Zero means unbounded.
		MaximumVersion version.BranchVersion
		Relationship   Relationship
	}

	// InvalidDependencyError is returned by Dependency.Validate.
	InvalidDependencyError struct {
		ModuleID uuid.UUID
		Reason   string
	}

	// Lookup resolves module IDs to live modules.
	Lookup interface {
		Lookup(id uuid.UUID) (*Module, bool)
	}

	// DependencyStatus is the evaluation of one dependency against the
	// currently checked out version of its target.
	DependencyStatus struct {
		Dependency Dependency
		// Found is false when no module with the ID is known.
		Found     bool
		Name      string
		Current   version.BranchVersion
		Satisfied bool
	}
)

// Error implements the error interface.
func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("invalid dependency on %s: %s", e.ModuleID, e.Reason)
}

// Unwrap returns ErrInvalidDependency so callers can use errors.Is for programmatic detection.
func (e *InvalidDependencyError) Unwrap() error { return ErrInvalidDependency }

// String returns the lowercase name used in metadata files.
func (r Relationship) String() string {
	switch r {
	case RelationshipMinimum:
		return "minimum"
	case RelationshipRange:
		return "range"
	case RelationshipExact:
		return "exact"
	default:
		return fmt.Sprintf("relationship(%d)", int(r))
	}
}

// ParseRelationship parses the metadata representation of a relationship.
func ParseRelationship(s string) (Relationship, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minimum":
		return RelationshipMinimum, nil
	case "range":
		return RelationshipRange, nil
	case "exact":
		return RelationshipExact, nil
	default:
		return 0, fmt.Errorf("%w: unknown relationship %q", ErrInvalidDependency, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Relationship) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Relationship) UnmarshalText(text []byte) error {
	parsed, err := ParseRelationship(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Validate checks that the dependency references a module and a version.
func (d Dependency) Validate() error {
	switch {
	case d.ModuleID == uuid.Nil:
		return &InvalidDependencyError{ModuleID: d.ModuleID, Reason: "missing module id"}
	case d.MinimumVersion.IsZero():
		return &InvalidDependencyError{ModuleID: d.ModuleID, Reason: "missing minimum version"}
	case d.Relationship == RelationshipRange && !d.MaximumVersion.IsZero() &&
		version.Compare(d.MinimumVersion, d.MaximumVersion) > 0:
		return &InvalidDependencyError{
			ModuleID: d.ModuleID,
			Reason:   fmt.Sprintf("minimum %s is above maximum %s", d.MinimumVersion, d.MaximumVersion),
		}
	}
	return nil
}

// SatisfiedBy reports whether current meets the constraint.
func (d Dependency) SatisfiedBy(current version.BranchVersion) bool {
	c := version.Compare(current, d.MinimumVersion)
	switch d.Relationship {
	case RelationshipExact:
		return c == 0
	case RelationshipRange:
		if c < 0 {
			return false
		}
		return d.MaximumVersion.IsZero() || version.Compare(current, d.MaximumVersion) <= 0
	default:
		return c >= 0
	}
}

// String renders the constraint, e.g. ">= v1.2.0".
func (d Dependency) String() string {
	switch d.Relationship {
	case RelationshipExact:
		return "= " + d.MinimumVersion.String()
	case RelationshipRange:
		if d.MaximumVersion.IsZero() {
			return ">= " + d.MinimumVersion.String()
		}
		return fmt.Sprintf(">= %s, <= %s", d.MinimumVersion, d.MaximumVersion)
	default:
		return ">= " + d.MinimumVersion.String()
	}
}

// CheckDependencies evaluates deps against the modules known to lookup.
// Nothing is upgraded; the caller decides what to do with unsatisfied
// entries.
func CheckDependencies(deps []Dependency, lookup Lookup) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(deps))
	for _, dep := range deps {
		st := DependencyStatus{Dependency: dep}
		if m, ok := lookup.Lookup(dep.ModuleID); ok {
			st.Found = true
			st.Name = m.Name()
			st.Current = m.CurrentVersion()
			st.Satisfied = dep.SatisfiedBy(st.Current)
		}
		out = append(out, st)
	}
	return out
}

// Unsatisfied filters statuses down to missing or unmet dependencies.
func Unsatisfied(statuses []DependencyStatus) []DependencyStatus {
	var out []DependencyStatus
	for _, st := range statuses {
		if !st.Found || !st.Satisfied {
			out = append(out, st)
		}
	}
	return out
}
