package cesr

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// digestSize is the raw size of every digest code supported here.
const digestSize = 32

// Diger is a qualified content digest. The zero value is not usable; build
// one with NewDiger or ParseDiger.
type Diger struct {
	code string
	raw  []byte
}

// NewDiger digests data with Blake2b-256, the default algorithm of the
// credential-chain protocol.
func NewDiger(data []byte) *Diger {
	d, _ := NewDigerWithCode(data, CodeBlake2b256)
	return d
}

// NewDigerWithCode digests data with the algorithm named by code.
func NewDigerWithCode(data []byte, code string) (*Diger, error) {
	raw, err := digest(code, data)
	if err != nil {
		return nil, err
	}
	return &Diger{code: code, raw: raw}, nil
}

// ParseDiger decodes a qualified digest string, dispatching on its
// derivation code.
func ParseDiger(qb64 string) (*Diger, error) {
	if qb64 == "" {
		return nil, fmt.Errorf("%w: empty digest", ErrInvalidQB64)
	}
	code := qb64[:1]
	switch code {
	case CodeBlake2b256, CodeSHA256:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCode, code)
	}
	raw, err := decode(qb64, code, digestSize)
	if err != nil {
		return nil, err
	}
	return &Diger{code: code, raw: raw}, nil
}

// QB64 returns the qualified base64 form of the digest.
func (d *Diger) QB64() string {
	return encode(d.code, d.raw)
}

// Code returns the derivation code of the digest.
func (d *Diger) Code() string {
	return d.code
}

// Verify reports whether data digests to this value under the same
// algorithm.
func (d *Diger) Verify(data []byte) bool {
	raw, err := digest(d.code, data)
	if err != nil {
		return false
	}
	return bytes.Equal(raw, d.raw)
}

func digest(code string, data []byte) ([]byte, error) {
	switch code {
	case CodeBlake2b256:
		sum := blake2b.Sum256(data)
		return sum[:], nil
	case CodeSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCode, code)
	}
}
