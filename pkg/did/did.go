// Package did provides parsing for ledger-anchored DID identifiers and the
// DID document model returned by identity resolution, including the
// LinkedDomains service lookup and Ed25519 key extraction used by the
// verification paths.
package did

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by this package.
var (
	ErrInvalidDID         = errors.New("invalid DID format")
	ErrUnsupportedKeyType = errors.New("unsupported verification key type (only Ed25519 supported)")
	ErrNoVerificationKey  = errors.New("DID document carries no usable verification key")
)

// Identifier is a parsed DID. The method-specific suffix stays opaque; the
// ledger owns its meaning.
type Identifier struct {
	// Method is the DID method, e.g. "twin".
	Method string

	// Suffix is the method-specific identifier.
	Suffix string

	raw string
}

// Parse splits a DID string into method and method-specific suffix.
// Returns ErrInvalidDID when the string is not of the form
// did:<method>:<suffix>.
func Parse(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, ErrInvalidDID
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Identifier{}, fmt.Errorf("%w: expected did:<method>:<suffix>, got %q", ErrInvalidDID, s)
	}
	if parts[0] != "did" {
		return Identifier{}, fmt.Errorf("%w: must start with 'did:'", ErrInvalidDID)
	}
	if parts[1] == "" || parts[2] == "" {
		return Identifier{}, fmt.Errorf("%w: empty method or suffix", ErrInvalidDID)
	}

	return Identifier{
		Method: parts[1],
		Suffix: parts[2],
		raw:    s,
	}, nil
}

// String returns the canonical DID string.
func (id Identifier) String() string {
	if id.raw != "" {
		return id.raw
	}
	return "did:" + id.Method + ":" + id.Suffix
}

// HasPrefix reports whether the DID matches a method-specific prefix such
// as "did:twin:".
func (id Identifier) HasPrefix(prefix string) bool {
	return strings.HasPrefix(id.String(), prefix)
}

// Tag returns the last colon-separated segment of the suffix. Suffixes may
// carry a network qualifier (did:twin:net:0xabc); the tag is the part that
// names the subject.
func (id Identifier) Tag() string {
	segs := strings.Split(id.Suffix, ":")
	return segs[len(segs)-1]
}
