// Package acdc models the Authentic Chained Data Container credential used
// by the chain-of-trust path: a content-addressed body whose digest is a
// self-addressing identifier, plus a detached provenance signature from the
// credential's issuer.
package acdc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twinlabs/twinlink/pkg/cesr"
)

// Common errors returned by this package.
var (
	ErrDigestMismatch = errors.New("credential digest does not match its body")
	ErrBadStructure   = errors.New("credential structure is invalid")
)

// versionPrefix is the serialization family every credential version string
// must open with.
const versionPrefix = "ACDC"

// Credential is a parsed chain-of-trust credential. Parse is the single
// normalization point: after it, every field is a plain Go value and the
// original body is retained for digest recomputation.
type Credential struct {
	// Version is the serialization version string, e.g. ACDC10JSON00017a_.
	Version string

	// Digest is the credential's self-addressing identifier.
	Digest string

	// SubjectAID is the AID the credential is issued to.
	SubjectAID string

	// SchemaID is the SAID of the credential's schema.
	SchemaID string

	// Attributes carries the typed view of the attribute section.
	Attributes Attributes

	// Provenance carries the issuer's detached signature.
	Provenance Provenance

	// raw is the full decoded body, including attribute fields the typed
	// view does not model. Canonicalization works on this so unknown fields
	// stay inside the digest.
	raw map[string]any
}

// Attributes is the typed view of a credential's attribute section.
type Attributes struct {
	// AlsoKnownAs lists the DIDs this credential vouches for.
	AlsoKnownAs []string `json:"alsoKnownAs,omitempty"`

	// Issuer names the AID that authorized this credential, one level up
	// the issuance chain.
	Issuer string `json:"issuer,omitempty"`

	// Type is an optional human-readable credential type label.
	Type string `json:"type,omitempty"`
}

// Provenance is the detached issuer signature section. It is excluded from
// the self-addressing digest; a signature cannot sign itself.
type Provenance struct {
	// SignatureDigest is the issuer's qualified Ed25519 signature over the
	// completed credential body (see SignedBody).
	SignatureDigest string `json:"d,omitempty"`
}

type envelope struct {
	Version    string     `json:"v"`
	Digest     string     `json:"d"`
	SubjectAID string     `json:"i"`
	SchemaID   string     `json:"s"`
	Attributes Attributes `json:"a"`
	Provenance Provenance `json:"p"`
}

// Parse decodes a credential body.
func Parse(data []byte) (*Credential, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStructure, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStructure, err)
	}

	return &Credential{
		Version:    env.Version,
		Digest:     env.Digest,
		SubjectAID: env.SubjectAID,
		SchemaID:   env.SchemaID,
		Attributes: env.Attributes,
		Provenance: env.Provenance,
		raw:        raw,
	}, nil
}

// ValidateStructure checks that every required field is present: version,
// digest, subject AID, schema, and a non-empty alsoKnownAs attribute set.
func (c *Credential) ValidateStructure() error {
	switch {
	case c.Version == "":
		return fmt.Errorf("%w: missing version field 'v'", ErrBadStructure)
	case len(c.Version) < len(versionPrefix) || c.Version[:len(versionPrefix)] != versionPrefix:
		return fmt.Errorf("%w: version %q is not an %s serialization", ErrBadStructure, c.Version, versionPrefix)
	case c.Digest == "":
		return fmt.Errorf("%w: missing digest field 'd'", ErrBadStructure)
	case c.SubjectAID == "":
		return fmt.Errorf("%w: missing subject AID field 'i'", ErrBadStructure)
	case c.SchemaID == "":
		return fmt.Errorf("%w: missing schema field 's'", ErrBadStructure)
	case len(c.Attributes.AlsoKnownAs) == 0:
		return fmt.Errorf("%w: attributes carry no alsoKnownAs set", ErrBadStructure)
	}
	return nil
}

// CanonicalBody returns the canonical serialization the digest covers: the
// body with the digest field and the detached provenance section removed,
// keys sorted.
func (c *Credential) CanonicalBody() ([]byte, error) {
	body := make(map[string]any, len(c.raw))
	for k, v := range c.raw {
		body[k] = v
	}
	delete(body, "d")
	delete(body, "p")

	canonical, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing credential body: %w", err)
	}
	return canonical, nil
}

// VerifyDigest recomputes the self-addressing digest from the canonical
// body and compares it to the stored one.
func (c *Credential) VerifyDigest() error {
	diger, err := cesr.ParseDiger(c.Digest)
	if err != nil {
		return fmt.Errorf("%w: unparsable digest %q: %v", ErrBadStructure, c.Digest, err)
	}

	body, err := c.CanonicalBody()
	if err != nil {
		return err
	}

	if !diger.Verify(body) {
		return fmt.Errorf("%w: digest %s", ErrDigestMismatch, c.Digest)
	}
	return nil
}

// SignedBody returns the serialization the provenance signature covers:
// the completed body, digest included, with only the detached provenance
// section removed. Issuers sign the credential after the digest is filled
// in and before the signature is attached.
func (c *Credential) SignedBody() ([]byte, error) {
	body := make(map[string]any, len(c.raw))
	for k, v := range c.raw {
		body[k] = v
	}
	delete(body, "p")

	signed, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("serializing signed credential body: %w", err)
	}
	return signed, nil
}

// BindsIdentifier reports whether the credential's alsoKnownAs set names
// the identifier.
func (c *Credential) BindsIdentifier(didStr string) bool {
	for _, aka := range c.Attributes.AlsoKnownAs {
		if aka == didStr {
			return true
		}
	}
	return false
}

// Saidify computes the self-addressing digest of a credential body and
// returns the completed body plus the digest. The input's digest field, if
// any, is overwritten. Used by fixture generation and issuing-side tooling.
func Saidify(data []byte) ([]byte, string, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadStructure, err)
	}

	body := make(map[string]any, len(raw))
	for k, v := range raw {
		body[k] = v
	}
	delete(body, "d")
	delete(body, "p")

	canonical, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalizing credential body: %w", err)
	}

	said := cesr.NewDiger(canonical).QB64()
	raw["d"] = said

	completed, err := json.Marshal(raw)
	if err != nil {
		return nil, "", fmt.Errorf("serializing credential: %w", err)
	}
	return completed, said, nil
}
