// Package domainproof implements the domain-control verification path: the
// DID document advertises a LinkedDomains service, the origin serves a
// did-configuration document, and a signed token inside it binds identifier
// and origin to each other.
package domainproof

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// WellKnownPath is where an origin publishes its domain-linkage
// configuration, relative to the origin root.
const WellKnownPath = ".well-known/did-configuration.json"

// Configuration is the decoded did-configuration document. A conforming
// origin publishes at least one linkage token.
type Configuration struct {
	LinkedTokens []string `json:"linked_dids"`
}

// Claims is the payload of a domain-linkage token.
type Claims struct {
	Issuer  string   `json:"iss"`
	Subject *Subject `json:"sub"`
}

// Subject identifies what a linkage token vouches for. Some producers nest
// the subject one level deeper; Flatten normalizes that.
type Subject struct {
	ID     string   `json:"id,omitempty"`
	Origin string   `json:"origin,omitempty"`
	Sub    *Subject `json:"sub,omitempty"`
}

// Flatten resolves single-level subject-within-subject nesting and returns
// the effective subject.
func (s *Subject) Flatten() *Subject {
	if s == nil {
		return nil
	}
	if s.ID == "" && s.Sub != nil {
		return s.Sub
	}
	return s
}

// SignLinkage creates a compact domain-linkage token asserting that the
// identifier controls the origin, signed with the identifier's Ed25519 key.
// The issuing side publishes the result inside the origin's configuration
// document.
func SignLinkage(id, origin string, key ed25519.PrivateKey) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key}, nil)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	payload, err := json.Marshal(Claims{
		Issuer:  id,
		Subject: &Subject{ID: id, Origin: origin},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling claims: %w", err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("signing claims: %w", err)
	}
	return jws.CompactSerialize()
}
