// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/version"
)

func TestClampMaturity(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 5: 5, 9: 9, 10: 9, 42: 9} {
		if got := ClampMaturity(in); got != want {
			t.Errorf("ClampMaturity(%d) = %d, want %d", in, got, want)
		}
	}

	s := DefaultSnapshot()
	s.SetMaturityLevel(12)
	if s.MaturityLevel != MaxMaturityLevel {
		t.Errorf("SetMaturityLevel(12) = %d, want %d", s.MaturityLevel, MaxMaturityLevel)
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := &Snapshot{
		Name: "Core",
		Tags: []Tag{{Name: "infra", Color: "#ff0000"}},
		Dependencies: []Dependency{
			{ModuleID: uuid.New(), MinimumVersion: version.MustParse("v1.0.0")},
		},
	}
	c := s.Clone()
	if !c.Equal(s) {
		t.Fatalf("Clone() = %+v, want equal to %+v", c, s)
	}

	c.Tags[0].Name = "changed"
	c.Dependencies[0].MinimumVersion = version.MustParse("v2.0.0")
	if s.Tags[0].Name != "infra" || s.Dependencies[0].MinimumVersion.String() != "v1.0.0" {
		t.Error("mutating the clone changed the original")
	}
	if c.Equal(s) {
		t.Error("Equal() reports a modified clone as equal")
	}

	var nilSnapshot *Snapshot
	if nilSnapshot.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestSnapshotValidate(t *testing.T) {
	t.Parallel()

	populated := t.TempDir()
	if err := os.WriteFile(filepath.Join(populated, "README.md"), []byte("# core\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := t.TempDir()

	tests := []struct {
		name       string
		path       string
		isCreation bool
		wantErr    bool
	}{
		{"missing path", "", false, true},
		{"existing module any path", "Modules/Core", false, false},
		{"creation populated", populated, true, false},
		{"creation empty dir", empty, true, true},
		{"creation missing dir", filepath.Join(empty, "nope"), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := DefaultSnapshot()
			s.Path = tt.path
			err := s.Validate(tt.isCreation)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%v) error = %v, wantErr %v", tt.isCreation, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, scm.ErrInvalidPath) {
				t.Errorf("Validate() error = %v, want ErrInvalidPath", err)
			}
			var se *SnapshotError
			if !errors.As(err, &se) || se.Field != "path" {
				t.Errorf("Validate() error = %v, want a path *SnapshotError", err)
			}
		})
	}
}

func TestSnapshotValidateReportsEveryRule(t *testing.T) {
	t.Parallel()

	s := &Snapshot{Dependencies: []Dependency{{ModuleID: uuid.New()}}}
	err := s.Validate(false)
	if !errors.Is(err, scm.ErrInvalidPath) || !errors.Is(err, ErrInvalidDependency) {
		t.Errorf("Validate() error = %v, want both path and dependency failures", err)
	}
}

func TestSnapshotValidateRequiresNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		snapshot  *Snapshot
		wantField string
	}{
		{"empty name", &Snapshot{Path: "Modules/Core"}, "name"},
		{"blank name", &Snapshot{Name: "  ", Path: "Modules/Core"}, "name"},
		{
			name: "empty tag name",
			snapshot: &Snapshot{
				Name: "Core",
				Path: "Modules/Core",
				Tags: []Tag{{Name: "infra"}, {Color: "#ff0000"}},
			},
			wantField: "tags[1].name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.snapshot.Validate(false)
			if !errors.Is(err, ErrInvalidMetadata) {
				t.Fatalf("Validate() error = %v, want ErrInvalidMetadata", err)
			}
			if errors.Is(err, scm.ErrInvalidPath) {
				t.Errorf("Validate() error = %v, should not report a path failure", err)
			}
			var se *SnapshotError
			if !errors.As(err, &se) || se.Field != tt.wantField {
				t.Errorf("Validate() error = %v, want a %s *SnapshotError", err, tt.wantField)
			}
		})
	}
}
