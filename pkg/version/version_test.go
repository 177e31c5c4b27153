// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		kind     Kind
		expected string
	}{
		{input: "v1.2.3", kind: KindExact, expected: "v1.2.3"},
		{input: "v0.0.0", kind: KindExact, expected: "v0.0.0"},
		{input: "v10.20.30", kind: KindExact, expected: "v10.20.30"},
		{input: "v01.2.3", kind: KindExact, expected: "v1.2.3"},
		{input: "v1.2.x", kind: KindBranchVersion, expected: "v1.2.x"},
		{input: "master", kind: KindNamedBranch, expected: "master"},
		{input: "development", kind: KindNamedBranch, expected: "development"},
		{input: "feature/login", kind: KindNamedBranch, expected: "feature/login"},
		{input: "1.2.3", kind: KindNamedBranch, expected: "1.2.3"},
		{input: "v1.2", kind: KindNamedBranch, expected: "v1.2"},
		{input: "v1.2.3-rc.1", kind: KindNamedBranch, expected: "v1.2.3-rc.1"},
		{input: "v1.x.x", kind: KindNamedBranch, expected: "v1.x.x"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("Parse(%q).Kind() = %s, want %s", tt.input, v.Kind(), tt.kind)
			}
			if v.String() != tt.expected {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.input, v.String(), tt.expected)
			}

			kinds := 0
			for _, ok := range []bool{v.IsExact(), v.IsBranchVersion(), v.IsNamedBranch()} {
				if ok {
					kinds++
				}
			}
			if kinds != 1 {
				t.Errorf("Parse(%q) matches %d kinds, want exactly 1", tt.input, kinds)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "v99999999999999999999.0.0"} {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) expected error", input)
			continue
		}
		if !errors.Is(err, ErrMalformedVersion) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformedVersion", input, err)
		}
		var mvErr *MalformedVersionError
		if !errors.As(err, &mvErr) {
			t.Errorf("Parse(%q) error is not *MalformedVersionError", input)
		}
	}
}

func TestRoundTripExact(t *testing.T) {
	t.Parallel()

	for _, v := range []BranchVersion{New(0, 0, 0), New(1, 2, 3), New(7, 0, 12), New(100, 200, 300)} {
		got, err := Parse(v.String())
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", v, err)
		}
		if got != v {
			t.Errorf("Parse(%q) = %#v, want %#v", v, got, v)
		}
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{a: "v1.2.3", b: "v1.2.4", want: -1},
		{a: "v1.2.4", b: "v1.2.3", want: 1},
		{a: "v1.2.3", b: "v1.2.3", want: 0},
		{a: "v1.10.0", b: "v1.9.9", want: 1},
		{a: "v2.0.0", b: "v1.99.99", want: 1},
		{a: "v1.2.x", b: "v1.2.3", want: 1},
		{a: "v1.2.3", b: "v1.2.x", want: -1},
		{a: "v1.2.x", b: "v1.2.x", want: 0},
		{a: "v1.2.x", b: "v1.3.0", want: -1},
		{a: "v1.3.x", b: "v1.2.x", want: 1},
		{a: "master", b: "v9.9.9", want: 1},
		{a: "v9.9.x", b: "feature", want: -1},
		{a: "feature", b: "master", want: -1},
		{a: "feature", b: "development", want: -1},
		{a: "master", b: "feature", want: 1},
		{a: "feature", b: "bugfix", want: 0},
		{a: "master", b: "development", want: 0},
		{a: "master", b: "master", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			t.Parallel()

			got := Compare(MustParse(tt.a), MustParse(tt.b))
			if got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if back := Compare(MustParse(tt.b), MustParse(tt.a)); back != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, back, -tt.want)
			}
		})
	}
}

func TestNamedBranchesShareBucket(t *testing.T) {
	t.Parallel()

	a, b := MustParse("feature-a"), MustParse("feature-b")
	if Compare(a, b) != 0 {
		t.Errorf("Compare(%q, %q) = %d, want 0", a, b, Compare(a, b))
	}
	if a == b {
		t.Errorf("%q and %q must not be identical", a, b)
	}
}

func TestFloatingLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{input: "v1.2.3", expected: "v1.2.x"},
		{input: "v1.2.x", expected: "v1.2.x"},
		{input: "master", expected: "master"},
	}

	for _, tt := range tests {
		if got := MustParse(tt.input).FloatingLine(); got != tt.expected {
			t.Errorf("FloatingLine(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}

	if got := MustParse("v3.4.5").FloatingVersion(); got != NewBranchVersion(3, 4) {
		t.Errorf("FloatingVersion() = %q, want v3.4.x", got)
	}
}

func TestBump(t *testing.T) {
	t.Parallel()

	v := MustParse("v1.2.3")
	v.BumpPatch()
	if v.String() != "v1.2.4" {
		t.Errorf("BumpPatch() = %q, want v1.2.4", v)
	}
	v.BumpMinor()
	if v.String() != "v1.3.0" {
		t.Errorf("BumpMinor() = %q, want v1.3.0", v)
	}
	v.BumpPatch()
	v.BumpMajor()
	if v.String() != "v2.0.0" {
		t.Errorf("BumpMajor() = %q, want v2.0.0", v)
	}

	for _, text := range []string{"v1.2.x", "master"} {
		nv := MustParse(text)
		nv.BumpMajor()
		nv.BumpMinor()
		nv.BumpPatch()
		if nv != MustParse(text) {
			t.Errorf("bumping %q changed it to %q", text, nv)
		}
	}
}

func TestSortDescending(t *testing.T) {
	t.Parallel()

	versions := []BranchVersion{
		MustParse("master"),
		MustParse("v1.0.0"),
		MustParse("v1.1.x"),
		MustParse("feature"),
		MustParse("v1.1.0"),
		MustParse("v1.0.x"),
		MustParse("v0.9.3"),
	}
	SortDescending(versions)

	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.String()
	}
	want := []string{"master", "feature", "v1.1.x", "v1.1.0", "v1.0.x", "v1.0.0", "v0.9.3"}
	if !slices.Equal(got, want) {
		t.Errorf("SortDescending() = %v, want %v", got, want)
	}
}

func TestLatest(t *testing.T) {
	t.Parallel()

	versions := []BranchVersion{MustParse("master"), MustParse("v2.0.x"), MustParse("v1.0.0"), MustParse("v2.0.0")}
	latest, ok := Latest(versions)
	if !ok {
		t.Fatal("Latest() found nothing")
	}
	if latest.String() != "v2.0.0" {
		t.Errorf("Latest() = %q, want v2.0.0", latest)
	}

	if _, ok := Latest([]BranchVersion{MustParse("master")}); ok {
		t.Error("Latest() without exact versions should report false")
	}
}

func TestTextMarshaling(t *testing.T) {
	t.Parallel()

	var v BranchVersion
	if err := v.UnmarshalText([]byte("v4.5.x")); err != nil {
		t.Fatalf("UnmarshalText() error: %v", err)
	}
	if !v.IsBranchVersion() {
		t.Errorf("UnmarshalText(v4.5.x) kind = %s, want branch-version", v.Kind())
	}

	if err := v.UnmarshalText(nil); !errors.Is(err, ErrMalformedVersion) {
		t.Errorf("UnmarshalText(nil) error = %v, want ErrMalformedVersion", err)
	}

	var zero BranchVersion
	if _, err := zero.MarshalText(); !errors.Is(err, ErrMalformedVersion) {
		t.Errorf("MarshalText() on zero value error = %v, want ErrMalformedVersion", err)
	}
}
