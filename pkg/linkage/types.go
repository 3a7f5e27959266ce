// Package linkage defines the data contracts shared across the TWIN ID to
// vLEI verification pipeline: the verification paths, the result shape
// returned to callers, the issuance chain model, and the typed error
// taxonomy used by every stage.
package linkage

import (
	"strings"
	"time"
)

// Path selects which verification procedure the router dispatches to.
// It is a closed set; ParsePath rejects anything else.
type Path string

const (
	// PathCredentialChain verifies a chain-of-trust credential up to the
	// configured trust anchor.
	PathCredentialChain Path = "CREDENTIAL_CHAIN"

	// PathDomainProof verifies a self-hosted domain-configuration proof.
	PathDomainProof Path = "DOMAIN_PROOF"
)

// ParsePath normalizes and validates a caller-supplied path selector.
// Accepts the canonical form plus lower-case and hyphenated spellings
// ("credential-chain", "domain_proof"). Unknown values return
// ErrUnsupportedPath.
func ParsePath(s string) (Path, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch Path(normalized) {
	case PathCredentialChain:
		return PathCredentialChain, nil
	case PathDomainProof:
		return PathDomainProof, nil
	default:
		return "", Errorf(ErrCodeUnsupportedPath, "unsupported verification path %q", s)
	}
}

// String returns the canonical wire form of the path.
func (p Path) String() string {
	return string(p)
}

// Status is the tri-state outcome of a verification call.
type Status string

const (
	// StatusVerified means the linkage proof checked out end to end.
	StatusVerified Status = "VERIFIED"

	// StatusNotVerified means a structural or cryptographic gate failed.
	StatusNotVerified Status = "NOT_VERIFIED"

	// StatusError means an external collaborator failed before a verdict
	// could be reached.
	StatusError Status = "ERROR"
)

// ChainLevel identifies a node's position in the issuance chain.
type ChainLevel string

const (
	// LevelLegalEntity is the credential subject at the bottom of the chain.
	LevelLegalEntity ChainLevel = "LEGAL_ENTITY"

	// LevelIntermediary is the qualified issuer between subject and root.
	LevelIntermediary ChainLevel = "INTERMEDIARY"

	// LevelRoot is the trust anchor terminating the chain.
	LevelRoot ChainLevel = "ROOT"
)

// ChainNode is one hop of a verified issuance chain. A valid chain is
// ordered LEGAL_ENTITY -> INTERMEDIARY -> ROOT and each node's authorizing
// credential names the next node's AID as its issuer.
type ChainNode struct {
	Level          ChainLevel `json:"level"`
	AID            string     `json:"aid"`
	CredentialType string     `json:"credentialType"`
}

// Details is the structured trace attached to a verification result:
// which steps ran, the issuance chain where one was established, and
// whether the chain reached the configured root of trust.
type Details struct {
	// Steps lists the pipeline steps that completed, in order.
	Steps []string `json:"steps,omitempty"`

	// CredentialSAID is the self-addressing digest of the verified
	// credential, when the credential-chain path ran.
	CredentialSAID string `json:"credentialSaid,omitempty"`

	// Chain is the verified issuance chain, ordered subject to root.
	Chain []ChainNode `json:"issuanceChain,omitempty"`

	// RootVerified reports whether the chain terminated at the configured
	// trust anchor. The wire name keeps the GLEIF terminology used by vLEI
	// deployments.
	RootVerified bool `json:"gleifVerified"`
}

// Result is the normalized outcome of a verification call. It is built per
// call and never persisted by the verifier; the attestation token is the
// durable record.
type Result struct {
	// Status is the tri-state verdict.
	Status Status `json:"status"`

	// Reason describes the failing gate. Empty on success.
	Reason string `json:"reason,omitempty"`

	// LinkedDID is the identifier the proof vouches for.
	LinkedDID string `json:"linkedIdentifier,omitempty"`

	// LinkedOrigin is the web origin bound by a domain proof.
	LinkedOrigin string `json:"linkedOrigin,omitempty"`

	// AttestationDID is the identity record created for the attestation,
	// when minting got that far.
	AttestationDID string `json:"attestationDid,omitempty"`

	// TokenID is the minted attestation token. Empty when minting failed;
	// an empty TokenID never downgrades Status.
	TokenID string `json:"tokenId,omitempty"`

	// Details carries the verification trace.
	Details *Details `json:"verificationDetails,omitempty"`
}

// Attestation is the on-chain receipt of a successful verification.
// TokenID may be empty: identity creation and token minting are separate
// ledger calls and the second is allowed to fail without discarding the
// first.
type Attestation struct {
	DID           string `json:"attestationDid"`
	TokenID       string `json:"tokenId,omitempty"`
	IssuerAddress string `json:"issuerAddress,omitempty"`
}

// Payload is the linkage evidence packaged into the attestation token's
// immutable metadata.
type Payload struct {
	// SourceDID is the identifier that was verified.
	SourceDID string `json:"sourceIdentifier"`

	// Path is the verification path that produced the proof.
	Path Path `json:"path"`

	// LinkedDID is the identifier the proof vouches for.
	LinkedDID string `json:"linkedIdentifier,omitempty"`

	// LinkedOrigin is the origin bound by a domain proof.
	LinkedOrigin string `json:"linkedOrigin,omitempty"`

	// CredentialSAID identifies the credential behind a chain proof.
	CredentialSAID string `json:"credentialSaid,omitempty"`

	// Chain is the verified issuance chain.
	Chain []ChainNode `json:"issuanceChain,omitempty"`

	// RootVerified records whether the chain reached the trust anchor.
	RootVerified bool `json:"gleifVerified"`

	// VerifiedAt is when the verification completed.
	VerifiedAt time.Time `json:"verifiedAt"`
}
