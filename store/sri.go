package store

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"strings"

	"github.com/pkg/errors"
)

// sri is a parsed subresource-integrity string: "<algo>-<base64(digest)>".
type sri struct {
	algo   string
	digest string // base64
}

func parseSRI(s string) (sri, error) {
	algo, b64, ok := strings.Cut(s, "-")
	if !ok {
		return sri{}, errors.Wrapf(ErrIntegrity, "malformed integrity string %q", s)
	}
	switch algo {
	case "sha512", "sha1", "sha256":
	default:
		return sri{}, errors.Wrapf(ErrIntegrity, "unsupported integrity algorithm %q", algo)
	}
	return sri{algo: algo, digest: b64}, nil
}

func newHasher(algo string) hash.Hash {
	switch algo {
	case "sha1":
		return sha1.New()
	case "sha256":
		return sha256.New()
	case "sha512":
		return sha512.New()
	default:
		return sha512.New()
	}
}

func (s sri) String() string { return s.algo + "-" + s.digest }

// verify reports whether sum (raw bytes, not yet base64-encoded) matches the
// digest this sri carries.
func (s sri) verify(sum []byte) bool {
	return base64.StdEncoding.EncodeToString(sum) == s.digest
}

// computeSRI computes the SRI string for sum using the preferred algorithm.
func computeSRI(algo string, sum []byte) string {
	return algo + "-" + base64.StdEncoding.EncodeToString(sum)
}

// preferredAlgo picks sha512 unless the caller's declared integrity string
// names sha1 (legacy shasum verification per §4.4/§6).
func preferredAlgo(declared string) string {
	if strings.HasPrefix(declared, "sha1-") {
		return "sha1"
	}
	return "sha512"
}
