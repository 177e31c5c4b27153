// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// Master is the trunk branch every module carries.
	Master = "master"
	// Development is the secondary long-lived branch that sorts with Master.
	Development = "development"

	floatingSuffix = "x"
)

// Kind discriminates the three forms a BranchVersion can take.
const (
	KindNamedBranch Kind = iota
	KindBranchVersion
	KindExact
)

var (
	// ErrMalformedVersion is the sentinel error wrapped by MalformedVersionError.
	ErrMalformedVersion = errors.New("malformed version")

	exactPattern    = regexp.MustCompile(`^v(\d+\.){2}\d+$`)
	floatingPattern = regexp.MustCompile(`^v(\d+\.){2}x$`)
)

type (
	// Kind is the variant tag of a BranchVersion.
	Kind int

	// BranchVersion identifies a module version. It is one of an exact
	// version (v1.2.3, realized as a tag), a branch version (v1.2.x, the
	// floating line of a minor release), or a named branch (master, feature
	// branches). The zero value is not a valid identifier; use Parse or one
	// of the constructors.
	//
	// BranchVersion is comparable, so == is identity. Ordering goes through
	// Compare, which is a weak order: distinct non-special named branches
	// compare equal without being identical.
	BranchVersion struct {
		kind   Kind
		major  uint64
		minor  uint64
		patch  uint64
		branch string
	}

	// MalformedVersionError is returned when text cannot be parsed into a
	// BranchVersion.
	MalformedVersionError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *MalformedVersionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed version %q", e.Value)
	}
	return fmt.Sprintf("malformed version %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrMalformedVersion so callers can use errors.Is for programmatic detection.
func (e *MalformedVersionError) Unwrap() error { return ErrMalformedVersion }

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindBranchVersion:
		return "branch-version"
	case KindNamedBranch:
		return "branch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Parse classifies text into a BranchVersion. Text matching v{M}.{m}.{p}
// is an exact version, v{M}.{m}.x a branch version, and anything else a
// named branch. Empty text is rejected.
func Parse(text string) (BranchVersion, error) {
	if strings.TrimSpace(text) == "" {
		return BranchVersion{}, &MalformedVersionError{Value: text, Reason: "empty version"}
	}

	switch {
	case exactPattern.MatchString(text):
		parts, err := parseNumbers(text, 3)
		if err != nil {
			return BranchVersion{}, err
		}
		return New(parts[0], parts[1], parts[2]), nil
	case floatingPattern.MatchString(text):
		parts, err := parseNumbers(text, 2)
		if err != nil {
			return BranchVersion{}, err
		}
		return NewBranchVersion(parts[0], parts[1]), nil
	default:
		return NewBranch(text), nil
	}
}

// MustParse is like Parse but panics on malformed input. Intended for
// constants and tests.
func MustParse(text string) BranchVersion {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

// New returns the exact version v{major}.{minor}.{patch}.
func New(major, minor, patch uint64) BranchVersion {
	return BranchVersion{kind: KindExact, major: major, minor: minor, patch: patch}
}

// NewBranchVersion returns the floating line v{major}.{minor}.x.
func NewBranchVersion(major, minor uint64) BranchVersion {
	return BranchVersion{kind: KindBranchVersion, major: major, minor: minor, branch: floatingLine(major, minor)}
}

// NewBranch returns a named branch identifier. The name is not
// reclassified; use Parse for untrusted text.
func NewBranch(name string) BranchVersion {
	return BranchVersion{kind: KindNamedBranch, branch: name}
}

func parseNumbers(text string, n int) ([]uint64, error) {
	fields := strings.Split(strings.TrimPrefix(text, "v"), ".")
	out := make([]uint64, n)
	for i := range n {
		num, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return nil, &MalformedVersionError{Value: text, Reason: err.Error()}
		}
		out[i] = num
	}
	return out, nil
}

func floatingLine(major, minor uint64) string {
	return fmt.Sprintf("v%d.%d.%s", major, minor, floatingSuffix)
}

// Kind returns the variant tag.
func (v BranchVersion) Kind() Kind { return v.kind }

// IsExact reports whether v is a fully qualified major.minor.patch version.
func (v BranchVersion) IsExact() bool { return v.kind == KindExact }

// IsBranchVersion reports whether v is a floating minor line.
func (v BranchVersion) IsBranchVersion() bool { return v.kind == KindBranchVersion }

// IsNamedBranch reports whether v carries no numeric component.
func (v BranchVersion) IsNamedBranch() bool { return v.kind == KindNamedBranch }

// IsZero reports whether v was never initialized.
func (v BranchVersion) IsZero() bool { return v == BranchVersion{} }

// Major returns the major component, zero for named branches.
func (v BranchVersion) Major() uint64 { return v.major }

// Minor returns the minor component, zero for named branches.
func (v BranchVersion) Minor() uint64 { return v.minor }

// Patch returns the patch component, zero unless exact.
func (v BranchVersion) Patch() uint64 { return v.patch }

// String returns the canonical text form.
func (v BranchVersion) String() string {
	if v.kind == KindExact {
		return fmt.Sprintf("v%d.%d.%d", v.major, v.minor, v.patch)
	}
	return v.branch
}

// FloatingLine returns v{major}.{minor}.x for exact versions and the
// branch name unchanged otherwise.
func (v BranchVersion) FloatingLine() string {
	if v.kind == KindExact {
		return floatingLine(v.major, v.minor)
	}
	return v.branch
}

// FloatingVersion returns the branch version of the line v belongs to.
// Named branches are returned unchanged.
func (v BranchVersion) FloatingVersion() BranchVersion {
	if v.kind == KindNamedBranch {
		return v
	}
	return NewBranchVersion(v.major, v.minor)
}

// BumpMajor increments the major component and resets minor and patch.
func (v *BranchVersion) BumpMajor() {
	if !v.IsExact() {
		return
	}
	v.major++
	v.minor = 0
	v.patch = 0
}

// BumpMinor increments the minor component and resets patch.
func (v *BranchVersion) BumpMinor() {
	if !v.IsExact() {
		return
	}
	v.minor++
	v.patch = 0
}

// BumpPatch increments the patch component.
func (v *BranchVersion) BumpPatch() {
	if !v.IsExact() {
		return
	}
	v.patch++
}

// Compare returns -1, 0 or +1 following the module version order.
func (v BranchVersion) Compare(other BranchVersion) int { return Compare(v, other) }

// Less reports whether v sorts strictly before other.
func (v BranchVersion) Less(other BranchVersion) bool { return Compare(v, other) < 0 }

// Compare orders two identifiers:
//
//   - numeric against numeric compares major, minor, and patch when both are
//     exact; a branch version sorts after exact versions of its own line
//   - a named branch sorts after every numeric identifier
//   - master and development sort after other named branches, and every
//     other pair of named branches compares equal
func Compare(a, b BranchVersion) int {
	switch {
	case !a.IsNamedBranch() && !b.IsNamedBranch():
		return compareNumeric(a, b)
	case a.IsNamedBranch() && !b.IsNamedBranch():
		return 1
	case !a.IsNamedBranch() && b.IsNamedBranch():
		return -1
	default:
		return compareNamed(a.branch, b.branch)
	}
}

func compareNumeric(a, b BranchVersion) int {
	if a.IsExact() && b.IsExact() {
		return semver.Compare(a.String(), b.String())
	}
	if c := cmpUint(a.major, b.major); c != 0 {
		return c
	}
	if c := cmpUint(a.minor, b.minor); c != 0 {
		return c
	}
	switch {
	case a.IsBranchVersion() && b.IsExact():
		return 1
	case a.IsExact() && b.IsBranchVersion():
		return -1
	default:
		return 0
	}
}

func compareNamed(a, b string) int {
	aTrunk, bTrunk := isTrunk(a), isTrunk(b)
	switch {
	case aTrunk && !bTrunk:
		return 1
	case !aTrunk && bTrunk:
		return -1
	default:
		return 0
	}
}

func isTrunk(name string) bool {
	return name == Master || name == Development
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortDescending sorts versions newest first. The sort is stable so that
// identifiers in the same bucket keep their relative order.
func SortDescending(versions []BranchVersion) {
	slices.SortStableFunc(versions, func(a, b BranchVersion) int {
		return Compare(b, a)
	})
}

// Latest returns the greatest exact version in versions.
func Latest(versions []BranchVersion) (BranchVersion, bool) {
	var (
		best  BranchVersion
		found bool
	)
	for _, v := range versions {
		if !v.IsExact() {
			continue
		}
		if !found || Compare(v, best) > 0 {
			best, found = v, true
		}
	}
	return best, found
}

// MarshalText implements encoding.TextMarshaler.
func (v BranchVersion) MarshalText() ([]byte, error) {
	if v.IsZero() {
		return nil, &MalformedVersionError{Reason: "zero value"}
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *BranchVersion) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
