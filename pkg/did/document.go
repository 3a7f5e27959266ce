package did

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
)

// Multicodec constants for multibase-encoded verification keys.
const (
	// ed25519MulticodecTag is the varint multicodec prefix for Ed25519
	// public keys (0xed01 encodes as the bytes 0xed, 0x01).
	ed25519MulticodecByte0 = 0xed
	ed25519MulticodecByte1 = 0x01
)

// LinkedDomainsType is the service type that advertises a web origin whose
// well-known configuration proves control of the DID.
const LinkedDomainsType = "LinkedDomains"

// Document is the identity record a DID resolves to.
type Document struct {
	ID                 string               `json:"id"`
	AlsoKnownAs        []string             `json:"alsoKnownAs,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
	Service            []Service            `json:"service,omitempty"`
}

// VerificationMethod is a key entry of a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller,omitempty"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
}

// Service is a service entry of a DID document. Type and endpoint both
// appear in the wild as either a single string or an array; StringOrSlice
// normalizes them at decode time so downstream code never branches on
// shape.
type Service struct {
	ID              string        `json:"id"`
	Type            StringOrSlice `json:"type"`
	ServiceEndpoint StringOrSlice `json:"serviceEndpoint"`
}

// StringOrSlice decodes from either a JSON string or an array of strings.
type StringOrSlice []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrSlice{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*s = StringOrSlice(many)
	return nil
}

// MarshalJSON implements json.Marshaler. A single value round-trips as a
// bare string.
func (s StringOrSlice) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// Contains reports whether the set includes v.
func (s StringOrSlice) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// First returns the first value, or empty string when the set is empty.
func (s StringOrSlice) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// LinkedDomainsService returns the first service entry whose type set
// includes LinkedDomains.
func (d *Document) LinkedDomainsService() (*Service, bool) {
	for i := range d.Service {
		if d.Service[i].Type.Contains(LinkedDomainsType) {
			return &d.Service[i], true
		}
	}
	return nil, false
}

// VerificationKey returns the document's first Ed25519 verification key,
// decoded from its multibase form.
func (d *Document) VerificationKey() (ed25519.PublicKey, error) {
	for _, vm := range d.VerificationMethod {
		if vm.PublicKeyMultibase == "" {
			continue
		}
		key, err := DecodeMultibaseKey(vm.PublicKeyMultibase)
		if err != nil {
			return nil, fmt.Errorf("verification method %s: %w", vm.ID, err)
		}
		return key, nil
	}
	return nil, ErrNoVerificationKey
}

// DecodeMultibaseKey decodes a multibase-encoded Ed25519 public key.
// Format: z<base58btc(0xed01 || public_key)>.
func DecodeMultibaseKey(multibase string) (ed25519.PublicKey, error) {
	if multibase == "" {
		return nil, fmt.Errorf("%w: empty key", ErrNoVerificationKey)
	}

	// 'z' is the multibase prefix for base58btc.
	if multibase[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' (base58btc) prefix, got '%c'", ErrUnsupportedKeyType, multibase[0])
	}

	decoded, err := base58Decode(multibase[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58btc encoding: %v", ErrUnsupportedKeyType, err)
	}

	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: decoded value too short", ErrUnsupportedKeyType)
	}
	if decoded[0] != ed25519MulticodecByte0 || decoded[1] != ed25519MulticodecByte1 {
		return nil, fmt.Errorf("%w: expected Ed25519 multicodec (0xed01), got 0x%02x%02x", ErrUnsupportedKeyType, decoded[0], decoded[1])
	}

	key := decoded[2:]
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrUnsupportedKeyType, ed25519.PublicKeySize, len(key))
	}

	return ed25519.PublicKey(key), nil
}

// EncodeMultibaseKey encodes an Ed25519 public key in multibase form.
// Inverse of DecodeMultibaseKey; used when building identity records.
func EncodeMultibaseKey(publicKey ed25519.PublicKey) string {
	if len(publicKey) != ed25519.PublicKeySize {
		return ""
	}

	prefixed := make([]byte, 2+len(publicKey))
	prefixed[0] = ed25519MulticodecByte0
	prefixed[1] = ed25519MulticodecByte1
	copy(prefixed[2:], publicKey)

	return "z" + base58Encode(prefixed)
}
