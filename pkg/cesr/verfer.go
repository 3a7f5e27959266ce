package cesr

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// ErrSignatureMismatch is returned when a signature does not verify against
// the key and data.
var ErrSignatureMismatch = errors.New("signature does not verify")

// Verfer wraps an Ed25519 verification key in its qualified form.
type Verfer struct {
	pub ed25519.PublicKey
}

// NewVerfer wraps a raw Ed25519 public key.
func NewVerfer(pub ed25519.PublicKey) (*Verfer, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrWrongSize, len(pub), ed25519.PublicKeySize)
	}
	return &Verfer{pub: pub}, nil
}

// ParseVerfer decodes a qualified Ed25519 verification key.
func ParseVerfer(qb64 string) (*Verfer, error) {
	raw, err := decode(qb64, CodeEd25519, ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return &Verfer{pub: ed25519.PublicKey(raw)}, nil
}

// QB64 returns the qualified base64 form of the key.
func (v *Verfer) QB64() string {
	return encode(CodeEd25519, v.pub)
}

// PublicKey returns the wrapped raw key.
func (v *Verfer) PublicKey() ed25519.PublicKey {
	return v.pub
}

// Verify checks a qualified Ed25519 signature over data.
func (v *Verfer) Verify(sigQB64 string, data []byte) error {
	sig, err := decode(sigQB64, CodeEd25519Sig, ed25519.SignatureSize)
	if err != nil {
		return err
	}
	if !ed25519.Verify(v.pub, data, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// SignQB64 signs data with an Ed25519 private key and returns the qualified
// signature. Used by fixture generation and the issuing side of tests; the
// verification pipeline itself never signs.
func SignQB64(priv ed25519.PrivateKey, data []byte) string {
	return encode(CodeEd25519Sig, ed25519.Sign(priv, data))
}
