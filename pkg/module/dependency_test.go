// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/moduni/moduni/pkg/version"
)

type lookupMap map[uuid.UUID]*Module

func (l lookupMap) Lookup(id uuid.UUID) (*Module, bool) {
	m, ok := l[id]
	return m, ok
}

func moduleAt(name, v string) *Module {
	m := New(&Snapshot{Name: name, MaturityLevel: 1, Path: name})
	m.current = version.MustParse(v)
	return m
}

func TestDependencySatisfiedBy(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tests := []struct {
		name    string
		dep     Dependency
		current string
		want    bool
	}{
		{"minimum below", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.1.0")}, "v1.0.9", false},
		{"minimum equal", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.1.0")}, "v1.1.0", true},
		{"minimum above", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.1.0")}, "v1.2.0", true},
		{"minimum floating line", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.1.0")}, "v1.1.x", true},
		{"minimum master", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.1.0")}, "master", true},
		{"exact match", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.1.0"), Relationship: RelationshipExact}, "v1.1.0", true},
		{"exact newer", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.1.0"), Relationship: RelationshipExact}, "v1.1.1", false},
		{
			"range inside",
			Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.0.0"), MaximumVersion: version.MustParse("v1.9.0"), Relationship: RelationshipRange},
			"v1.4.2", true,
		},
		{
			"range above",
			Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.0.0"), MaximumVersion: version.MustParse("v1.9.0"), Relationship: RelationshipRange},
			"v2.0.0", false,
		},
		{
			"range unbounded",
			Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.0.0"), Relationship: RelationshipRange},
			"v7.0.0", true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.dep.SatisfiedBy(version.MustParse(tt.current)); got != tt.want {
				t.Errorf("%s SatisfiedBy(%s) = %v, want %v", tt.dep, tt.current, got, tt.want)
			}
		})
	}
}

func TestDependencyValidate(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tests := []struct {
		name    string
		dep     Dependency
		wantErr bool
	}{
		{"valid", Dependency{ModuleID: id, MinimumVersion: version.MustParse("v1.0.0")}, false},
		{"missing id", Dependency{MinimumVersion: version.MustParse("v1.0.0")}, true},
		{"missing minimum", Dependency{ModuleID: id}, true},
		{
			"inverted range",
			Dependency{ModuleID: id, MinimumVersion: version.MustParse("v2.0.0"), MaximumVersion: version.MustParse("v1.0.0"), Relationship: RelationshipRange},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.dep.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDependency) {
				t.Errorf("Validate() error = %v, want ErrInvalidDependency", err)
			}
		})
	}
}

func TestParseRelationship(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Relationship{
		"":        RelationshipMinimum,
		"minimum": RelationshipMinimum,
		"RANGE":   RelationshipRange,
		" exact ": RelationshipExact,
	} {
		got, err := ParseRelationship(in)
		if err != nil {
			t.Errorf("ParseRelationship(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseRelationship(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseRelationship("at-least"); !errors.Is(err, ErrInvalidDependency) {
		t.Errorf("ParseRelationship(at-least) error = %v, want ErrInvalidDependency", err)
	}
}

func TestCheckDependencies(t *testing.T) {
	t.Parallel()

	minimum := version.MustParse("v1.1.0")
	behind, exact, ahead, missing := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	lookup := lookupMap{
		behind: moduleAt("Behind", "v1.0.9"),
		exact:  moduleAt("Exact", "v1.1.0"),
		ahead:  moduleAt("Ahead", "v1.2.0"),
	}
	deps := []Dependency{
		{ModuleID: behind, MinimumVersion: minimum},
		{ModuleID: exact, MinimumVersion: minimum},
		{ModuleID: ahead, MinimumVersion: minimum},
		{ModuleID: missing, MinimumVersion: minimum},
	}

	statuses := CheckDependencies(deps, lookup)
	if len(statuses) != len(deps) {
		t.Fatalf("CheckDependencies() returned %d statuses, want %d", len(statuses), len(deps))
	}
	wantSatisfied := []bool{false, true, true, false}
	for i, st := range statuses {
		if st.Satisfied != wantSatisfied[i] {
			t.Errorf("statuses[%d] (%s) Satisfied = %v, want %v", i, st.Name, st.Satisfied, wantSatisfied[i])
		}
	}
	if statuses[3].Found {
		t.Error("unknown module reported as found")
	}
	if statuses[0].Name != "Behind" || statuses[0].Current.String() != "v1.0.9" {
		t.Errorf("statuses[0] = %+v, want Behind at v1.0.9", statuses[0])
	}

	unmet := Unsatisfied(statuses)
	if len(unmet) != 2 || unmet[0].Dependency.ModuleID != behind || unmet[1].Dependency.ModuleID != missing {
		t.Errorf("Unsatisfied() = %+v, want behind and missing", unmet)
	}
}
