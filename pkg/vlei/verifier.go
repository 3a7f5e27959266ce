// Package vlei implements the credential-chain verification path: a
// published chain-of-trust credential must bind the identifier, carry a
// valid self-addressing digest, and be endorsed through a qualified
// intermediary up to the configured root of trust.
package vlei

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twinlabs/twinlink/pkg/acdc"
	"github.com/twinlabs/twinlink/pkg/artifact"
	"github.com/twinlabs/twinlink/pkg/cesr"
	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/keri"
	"github.com/twinlabs/twinlink/pkg/linkage"
)

// Default chain-node type labels, used when a credential carries no type
// attribute of its own.
const (
	legalEntityType  = "DesignatedAliases"
	intermediaryType = "QualifiedIssuer"
	rootType         = "RootOfTrust"
)

// Config carries the trust parameters of the chain verifier.
type Config struct {
	// TrustAnchorAID is the AID a valid issuance chain must terminate at.
	TrustAnchorAID string
}

// Proof is the evidence produced by a successful chain verification.
type Proof struct {
	// CredentialSAID is the self-addressing digest of the verified leaf
	// credential.
	CredentialSAID string

	// Chain is the verified issuance chain, subject first.
	Chain []linkage.ChainNode

	// RootVerified reports that the chain terminated at the configured
	// trust anchor. Always true on success.
	RootVerified bool

	// Steps lists the completed verification steps, in order.
	Steps []string
}

// Verifier validates chain-of-trust credentials against published key
// events. The five steps run in order and any failure is terminal for the
// call: a typed linkage error marks a failed gate, any other error an
// unreachable collaborator.
type Verifier struct {
	src  artifact.Source
	keys *keri.Store
	cfg  Config
}

// NewVerifier creates a chain verifier reading credential artifacts from
// src and key states from keys.
func NewVerifier(src artifact.Source, keys *keri.Store, cfg Config) *Verifier {
	return &Verifier{
		src:  src,
		keys: keys,
		cfg:  cfg,
	}
}

// Verify runs the five-step chain validation for the identifier.
func (v *Verifier) Verify(ctx context.Context, id did.Identifier) (*Proof, error) {
	// Step 1: Fetch the published credential, check structure and digest.
	cred, err := v.fetchCredential(ctx)
	if err != nil {
		return nil, err
	}
	if err := cred.ValidateStructure(); err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeBadStructure, "credential structure check failed", err)
	}
	if err := cred.VerifyDigest(); err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeBadStructure, "credential digest check failed", err)
	}

	// Step 2: The credential must vouch for this identifier.
	if !cred.BindsIdentifier(id.String()) {
		return nil, linkage.Errorf(linkage.ErrCodeNotBound, "credential %s does not name %s in alsoKnownAs", cred.Digest, id)
	}

	// Step 3: Resolve the issuers that authorized the credential.
	iss, err := v.resolveIssuers(ctx, cred)
	if err != nil {
		return nil, err
	}

	// Step 4: Verify the issuers' event logs and both provenance
	// endorsements.
	if err := v.verifySignatures(ctx, cred, iss); err != nil {
		return nil, err
	}

	// Step 5: Walk the chain up to the configured trust anchor.
	chain, err := v.walkChain(cred, iss)
	if err != nil {
		return nil, err
	}

	return &Proof{
		CredentialSAID: cred.Digest,
		Chain:          chain,
		RootVerified:   true,
		Steps: []string{
			"credential structure and self-addressing digest verified",
			fmt.Sprintf("credential binds %s", id),
			fmt.Sprintf("issuer chain resolved: %s endorsed by %s", iss.intermediary.AID, iss.root.AID),
			"event logs and provenance signatures verified",
			"issuance chain terminates at configured trust anchor",
		},
	}, nil
}

// fetchCredential loads the published leaf credential. The publisher
// writes the current credential's SAID to a marker file and stores the
// credential body under that SAID; the fixed filename is the fallback when
// no marker is published or the marker is stale.
func (v *Verifier) fetchCredential(ctx context.Context) (*acdc.Credential, error) {
	data, said, err := v.fetchCredentialBytes(ctx)
	if err != nil {
		return nil, err
	}

	cred, err := acdc.Parse(data)
	if err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeBadStructure, "credential body does not parse", err)
	}
	if said != "" && cred.Digest != said {
		return nil, linkage.Errorf(linkage.ErrCodeBadStructure, "credential stored under SAID %s declares digest %s", said, cred.Digest)
	}
	return cred, nil
}

func (v *Verifier) fetchCredentialBytes(ctx context.Context) ([]byte, string, error) {
	marker, err := v.src.Fetch(ctx, artifact.CredentialSAIDPath)
	switch {
	case err == nil:
		if said := strings.TrimSpace(string(marker)); said != "" {
			data, err := v.src.Fetch(ctx, artifact.CredentialPath(said))
			if err == nil {
				return data, said, nil
			}
			if !errors.Is(err, artifact.ErrNotFound) {
				return nil, "", fmt.Errorf("fetching credential %s: %w", said, err)
			}
			// Marker points at a body that is not published; fall back to
			// the fixed filename.
		}
	case errors.Is(err, artifact.ErrNotFound):
		// No marker published.
	default:
		return nil, "", fmt.Errorf("fetching credential marker: %w", err)
	}

	data, err := v.src.Fetch(ctx, artifact.LegalEntityCredentialPath)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, "", linkage.WrapError(linkage.ErrCodeBadStructure, "no credential published for this identifier", err)
		}
		return nil, "", fmt.Errorf("fetching credential: %w", err)
	}
	return data, "", nil
}

// issuers is the resolved authorization context of a leaf credential: the
// intermediary's own credential plus the verified key states of both AIDs
// above the subject.
type issuers struct {
	intermediaryCred *acdc.Credential
	intermediary     *keri.KeyState
	root             *keri.KeyState
}

func (v *Verifier) resolveIssuers(ctx context.Context, cred *acdc.Credential) (*issuers, error) {
	data, err := v.src.Fetch(ctx, artifact.IntermediaryCredentialPath)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, linkage.WrapError(linkage.ErrCodeIssuerUnresolved, "no intermediary credential published", err)
		}
		return nil, fmt.Errorf("fetching intermediary credential: %w", err)
	}

	interCred, err := acdc.Parse(data)
	if err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeIssuerUnresolved, "intermediary credential does not parse", err)
	}
	if interCred.SubjectAID == "" {
		return nil, linkage.NewError(linkage.ErrCodeIssuerUnresolved, "intermediary credential names no subject AID")
	}
	if err := interCred.VerifyDigest(); err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeIssuerUnresolved, "intermediary credential digest check failed", err)
	}

	// The leaf credential may name its issuer directly; otherwise the
	// published intermediary credential identifies it.
	intermediaryAID := cred.Attributes.Issuer
	if intermediaryAID == "" {
		intermediaryAID = interCred.SubjectAID
	}

	rootAID := interCred.Attributes.Issuer
	if rootAID == "" {
		return nil, linkage.NewError(linkage.ErrCodeIssuerUnresolved, "intermediary credential names no issuer")
	}

	intermediary, err := v.resolveKeyState(ctx, intermediaryAID)
	if err != nil {
		return nil, err
	}
	root, err := v.resolveKeyState(ctx, rootAID)
	if err != nil {
		return nil, err
	}

	return &issuers{
		intermediaryCred: interCred,
		intermediary:     intermediary,
		root:             root,
	}, nil
}

// resolveKeyState maps key-state failures onto the gate codes: an AID with
// no published inception event cannot be resolved, while an event log that
// fails verification is a signature failure.
func (v *Verifier) resolveKeyState(ctx context.Context, aid string) (*keri.KeyState, error) {
	state, err := v.keys.Resolve(ctx, aid)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, keri.ErrUnknownAID):
		return nil, linkage.WrapError(linkage.ErrCodeIssuerUnresolved, fmt.Sprintf("no key state for issuer %s", aid), err)
	case errors.Is(err, cesr.ErrSignatureMismatch), errors.Is(err, keri.ErrEventInvalid):
		return nil, linkage.WrapError(linkage.ErrCodeSignatureInvalid, fmt.Sprintf("event log of %s does not verify", aid), err)
	default:
		return nil, fmt.Errorf("resolving key state of %s: %w", aid, err)
	}
}

func (v *Verifier) verifySignatures(ctx context.Context, cred *acdc.Credential, iss *issuers) error {
	for _, state := range []*keri.KeyState{iss.intermediary, iss.root} {
		if err := v.keys.VerifyLog(ctx, state.AID); err != nil {
			return linkage.WrapError(linkage.ErrCodeSignatureInvalid, fmt.Sprintf("event log of %s does not verify", state.AID), err)
		}
	}

	// The intermediary endorses the leaf credential, the root endorses the
	// intermediary's.
	if err := verifyProvenance(cred, iss.intermediary); err != nil {
		return err
	}
	return verifyProvenance(iss.intermediaryCred, iss.root)
}

// verifyProvenance checks a credential's detached issuer signature against
// the endorser's current keys. Any current key may have produced it.
func verifyProvenance(cred *acdc.Credential, endorser *keri.KeyState) error {
	sig := cred.Provenance.SignatureDigest
	if sig == "" {
		return linkage.Errorf(linkage.ErrCodeSignatureInvalid, "credential %s carries no provenance signature", cred.Digest)
	}

	body, err := cred.SignedBody()
	if err != nil {
		return fmt.Errorf("canonicalizing credential %s: %w", cred.Digest, err)
	}

	for _, verfer := range endorser.Keys {
		if err := verfer.Verify(sig, body); err == nil {
			return nil
		}
	}
	return linkage.Errorf(linkage.ErrCodeSignatureInvalid, "provenance signature on %s does not verify against keys of %s", cred.Digest, endorser.AID)
}

// walkChain orders the chain subject to root, confirming issuer linkage
// between the credentials and the configured trust anchor at the top.
func (v *Verifier) walkChain(cred *acdc.Credential, iss *issuers) ([]linkage.ChainNode, error) {
	interCred := iss.intermediaryCred

	if aid := cred.Attributes.Issuer; aid != "" && aid != interCred.SubjectAID {
		return nil, linkage.Errorf(linkage.ErrCodeRootMismatch, "credential issuer %s is not the published intermediary %s", aid, interCred.SubjectAID)
	}
	if v.cfg.TrustAnchorAID == "" {
		return nil, linkage.NewError(linkage.ErrCodeRootMismatch, "no trust anchor configured, cannot accept any chain")
	}
	if iss.root.AID != v.cfg.TrustAnchorAID {
		return nil, linkage.Errorf(linkage.ErrCodeRootMismatch, "chain terminates at %s, configured trust anchor is %s", iss.root.AID, v.cfg.TrustAnchorAID)
	}

	return []linkage.ChainNode{
		{Level: linkage.LevelLegalEntity, AID: cred.SubjectAID, CredentialType: typeLabel(cred, legalEntityType)},
		{Level: linkage.LevelIntermediary, AID: interCred.SubjectAID, CredentialType: typeLabel(interCred, intermediaryType)},
		{Level: linkage.LevelRoot, AID: iss.root.AID, CredentialType: rootType},
	}, nil
}

func typeLabel(cred *acdc.Credential, fallback string) string {
	if cred.Attributes.Type != "" {
		return cred.Attributes.Type
	}
	return fallback
}
