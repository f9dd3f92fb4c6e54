package semver

import (
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// kind distinguishes the special tokens from an ordinary range expression.
type kind uint8

const (
	kindNormal kind = iota
	kindLatest
	kindWorkspace
)

// Range is a parsed version range: a union of simple constraints, or one of
// the special tokens `latest` / `workspace:<spec>`.
type Range struct {
	raw  string
	kind kind

	// workspaceSpec holds the text following "workspace:" for kindWorkspace.
	workspaceSpec string

	// c is the delegate constraint set for kindNormal ranges.
	c *mmsemver.Constraints

	// pin is set when raw parses as a single exact version (no operator),
	// used to implement the prerelease-eligibility rule 4.1(a).
	pin   Version
	isPin bool
}

// ParseRange parses a range expression per §3 of the data model: exact
// versions, comparators, caret, tilde, wildcard, hyphen ranges, unions via
// comma or "||", and the special tokens `latest` and `workspace:<spec>`.
func ParseRange(s string) (Range, error) {
	trimmed := strings.TrimSpace(s)

	if trimmed == "latest" || trimmed == "" {
		return Range{raw: s, kind: kindLatest}, nil
	}
	if looksLikeWorkspace(trimmed) {
		return Range{
			raw:           s,
			kind:          kindWorkspace,
			workspaceSpec: strings.TrimPrefix(trimmed, "workspace:"),
		}, nil
	}

	c, err := mmsemver.NewConstraint(trimmed)
	if err != nil {
		return Range{}, errors.Wrapf(ErrBadRange, "%q: %s", s, err)
	}

	r := Range{raw: s, kind: kindNormal, c: c}
	if pv, perr := mmsemver.NewVersion(trimmed); perr == nil {
		r.pin = Version{sv: pv}
		r.isPin = true
	}
	return r, nil
}

// String renders the range as originally given.
func (r Range) String() string { return r.raw }

// IsLatest reports whether the range is the bare `latest` dist-tag token.
func (r Range) IsLatest() bool { return r.kind == kindLatest }

// IsWorkspace reports whether the range is a `workspace:<spec>` token.
func (r Range) IsWorkspace() bool { return r.kind == kindWorkspace }

// WorkspaceSpec returns the text after "workspace:", valid only when
// IsWorkspace is true.
func (r Range) WorkspaceSpec() string { return r.workspaceSpec }

// Satisfies reports whether v lies within the union this range describes.
// It is only meaningful for ordinary (non-latest, non-workspace) ranges;
// those special tokens are resolved by the caller against registry state
// (the `latest` dist-tag, or the workspace's declared version) before a
// membership test makes sense, so Satisfies always returns false for them.
func (r Range) Satisfies(v Version) bool {
	if r.kind != kindNormal {
		return false
	}
	return r.c.Check(v.sv)
}

// MaxSatisfying implements the selection policy of §4.1: among candidates
// satisfying the range, prefer the highest non-prerelease version. A
// prerelease candidate is eligible only when the range pins the exact same
// (major, minor, patch) triple with a prerelease itself, or when
// allowPrerelease is true. Returns ok=false when nothing qualifies.
func MaxSatisfying(r Range, candidates []Version, allowPrerelease bool) (Version, bool) {
	var stableBest, prereleaseBest Version
	var haveStable, havePrerelease bool

	for _, v := range candidates {
		if !r.Satisfies(v) {
			continue
		}
		if v.IsPrerelease() {
			if !havePrerelease || prereleaseBest.Less(v) {
				prereleaseBest = v
				havePrerelease = true
			}
			continue
		}
		if !haveStable || stableBest.Less(v) {
			stableBest = v
			haveStable = true
		}
	}

	if haveStable {
		return stableBest, true
	}
	if !havePrerelease {
		return Version{}, false
	}

	if allowPrerelease {
		return prereleaseBest, true
	}
	if r.isPin && r.pin.IsPrerelease() && r.pin.SameTriple(prereleaseBest) {
		return prereleaseBest, true
	}
	return Version{}, false
}
