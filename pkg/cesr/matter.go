// Package cesr implements the small subset of the Composable Event Streaming
// Representation needed by the credential-chain protocol: qualified base64
// (qb64) primitives for content digests, Ed25519 verification keys, and
// Ed25519 signatures.
//
// A qb64 string is a derivation code followed by the base64url encoding of
// the raw value, front-padded so the code occupies the pad positions. The
// code identifies both the algorithm and the raw size, which makes the
// primitives self-describing.
package cesr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Derivation codes for the primitives handled here.
const (
	// CodeBlake2b256 qualifies a Blake2b-256 content digest.
	CodeBlake2b256 = "F"

	// CodeSHA256 qualifies a SHA2-256 content digest.
	CodeSHA256 = "I"

	// CodeEd25519 qualifies an Ed25519 verification key.
	CodeEd25519 = "D"

	// CodeEd25519Sig qualifies an Ed25519 signature.
	CodeEd25519Sig = "0B"
)

var (
	// ErrUnknownCode is returned for derivation codes outside the supported set.
	ErrUnknownCode = errors.New("unknown derivation code")

	// ErrInvalidQB64 is returned when a qualified base64 string cannot be decoded.
	ErrInvalidQB64 = errors.New("invalid qualified base64")

	// ErrWrongSize is returned when decoded raw material has an unexpected length.
	ErrWrongSize = errors.New("unexpected raw material size")
)

// encode qualifies raw material under the given code. The code length must
// equal the base64 pad size of the raw material, which holds for every code
// in this package (1-char codes carry 32-byte values, 2-char codes 64-byte
// values).
func encode(code string, raw []byte) string {
	ps := (3 - len(raw)%3) % 3
	padded := make([]byte, ps+len(raw))
	copy(padded[ps:], raw)
	b64 := base64.RawURLEncoding.EncodeToString(padded)
	return code + b64[len(code):]
}

// decode strips the expected code from qb64 and returns raw material of
// exactly wantSize bytes.
func decode(qb64, code string, wantSize int) ([]byte, error) {
	if !strings.HasPrefix(qb64, code) {
		return nil, fmt.Errorf("%w: expected code %q in %q", ErrInvalidQB64, code, truncate(qb64))
	}
	ps := len(code)
	padded, err := base64.RawURLEncoding.DecodeString(strings.Repeat("A", ps) + qb64[ps:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQB64, err)
	}
	raw := padded[ps:]
	if len(raw) != wantSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrWrongSize, len(raw), wantSize)
	}
	return raw, nil
}

// truncate keeps error messages readable when fed arbitrary input.
func truncate(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}
