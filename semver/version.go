// Package semver parses versions and version ranges for the npm-compatible
// registry protocol and evaluates range membership and ordering over them.
//
// Numeric comparison and the bulk of the range grammar are delegated to
// Masterminds/semver/v3, which already speaks the same caret/tilde/hyphen/
// wildcard/OR grammar as npm's own resolver. This package adds the two
// tokens that library doesn't know about (`latest`, `workspace:<spec>`) and
// the prerelease-eligibility policy a plain Constraints.Check call doesn't
// encode.
package semver

import (
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is an immutable, parsed semantic version.
type Version struct {
	sv *mmsemver.Version
}

// Parse parses a version string of the form major.minor.patch[-prerelease][+build].
func Parse(s string) (Version, error) {
	sv, err := mmsemver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrapf(ErrBadVersion, "%q: %s", s, err)
	}
	return Version{sv: sv}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// compile-time constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version exactly as it was given to Parse (for "1.2"
// that is "1.2", not "1.2.0"), so it matches the registry's version keys.
func (v Version) String() string {
	if v.sv == nil {
		return ""
	}
	return v.sv.Original()
}

// Major, Minor, Patch expose the numeric triple.
func (v Version) Major() uint64 { return v.sv.Major() }
func (v Version) Minor() uint64 { return v.sv.Minor() }
func (v Version) Patch() uint64 { return v.sv.Patch() }

// Prerelease returns the dot-separated prerelease identifier, or "" if none.
func (v Version) Prerelease() string { return v.sv.Prerelease() }

// IsPrerelease reports whether the version carries a prerelease identifier.
func (v Version) IsPrerelease() bool { return v.sv.Prerelease() != "" }

// IsZero reports whether v is the zero Version (never successfully parsed).
func (v Version) IsZero() bool { return v.sv == nil }

// SameTriple reports whether v and o share the same major.minor.patch,
// ignoring prerelease and build metadata.
func (v Version) SameTriple(o Version) bool {
	return v.Major() == o.Major() && v.Minor() == o.Minor() && v.Patch() == o.Patch()
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than o.
//
// Ordering: lexicographic on the (major, minor, patch) triple; a version
// without a prerelease outranks the same triple with any prerelease;
// prerelease segments compare numerically when both sides are numeric,
// else lexicographically. Masterminds/semver/v3 already implements exactly
// this precedence rule (SemVer 2.0.0 §11), so we delegate directly.
func (v Version) Compare(o Version) int {
	return v.sv.Compare(o.sv)
}

// Equal reports whether v and o are the same version, including prerelease.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// Less reports whether v orders strictly before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// Sortable wraps a slice of Version for use with sort.Sort.
type Sortable []Version

func (s Sortable) Len() int           { return len(s) }
func (s Sortable) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s Sortable) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// looksLikeWorkspace reports whether s carries the workspace: protocol prefix.
func looksLikeWorkspace(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "workspace:")
}
