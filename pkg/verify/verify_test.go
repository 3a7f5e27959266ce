package verify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/domainproof"
	"github.com/twinlabs/twinlink/pkg/ledger"
	"github.com/twinlabs/twinlink/pkg/linkage"
	"github.com/twinlabs/twinlink/pkg/verify"
	"github.com/twinlabs/twinlink/pkg/vlei"
)

const (
	testDID        = "did:twin:0x6b175474e89094c44da98b954eedeac495271d0f"
	attestationDID = "did:twin:0x00000000219ab540356cbb839cbe05303d7705fa"
)

type fakeResolver struct {
	doc    *did.Document
	err    error
	calls  int
	lastID string
}

func (f *fakeResolver) ResolveIdentity(_ context.Context, identifier string) (*did.Document, error) {
	f.calls++
	f.lastID = identifier
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type fakeChain struct {
	proof  *vlei.Proof
	err    error
	calls  int
	lastID did.Identifier
}

func (f *fakeChain) Verify(_ context.Context, id did.Identifier) (*vlei.Proof, error) {
	f.calls++
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.proof, nil
}

type fakeDomain struct {
	proof   *domainproof.Proof
	err     error
	calls   int
	lastDoc *did.Document
}

func (f *fakeDomain) Verify(_ context.Context, doc *did.Document) (*domainproof.Proof, error) {
	f.calls++
	f.lastDoc = doc
	if f.err != nil {
		return nil, f.err
	}
	return f.proof, nil
}

type fakeMinter struct {
	att         linkage.Attestation
	err         error
	calls       int
	lastSource  did.Identifier
	lastPayload linkage.Payload
}

func (f *fakeMinter) Attest(_ context.Context, source did.Identifier, payload linkage.Payload) (linkage.Attestation, error) {
	f.calls++
	f.lastSource = source
	f.lastPayload = payload
	if f.err != nil {
		return linkage.Attestation{}, f.err
	}
	return f.att, nil
}

func chainProof() *vlei.Proof {
	return &vlei.Proof{
		CredentialSAID: "EHd8rso9snpper1bnSCadV1mUTnF8ffH0mWOstCVSLEI",
		Chain: []linkage.ChainNode{
			{Level: linkage.LevelLegalEntity, AID: "ELeaf", CredentialType: "DesignatedAliases"},
			{Level: linkage.LevelIntermediary, AID: "EQvi", CredentialType: "QualifiedvLEIIssuer"},
			{Level: linkage.LevelRoot, AID: "ERoot", CredentialType: "RootOfTrust"},
		},
		RootVerified: true,
		Steps: []string{
			"credential retrieved",
			"structure validated",
			"identifier binding confirmed",
			"signatures verified",
			"issuance chain anchored",
		},
	}
}

func domainProof() *domainproof.Proof {
	return &domainproof.Proof{
		LinkedDID:    testDID,
		LinkedOrigin: "https://example.com",
		Steps: []string{
			"linked domains service found",
			"origin normalized",
			"configuration fetched",
			"token signature verified",
			"subject and issuer match",
			"origin match",
		},
	}
}

// fixture wires a router over fully succeeding fakes; tests break the
// collaborator under scrutiny.
type fixture struct {
	resolver *fakeResolver
	chain    *fakeChain
	domain   *fakeDomain
	minter   *fakeMinter
	router   *verify.Router
}

func newFixture(cfg verify.Config) *fixture {
	f := &fixture{
		resolver: &fakeResolver{doc: &did.Document{ID: testDID}},
		chain:    &fakeChain{proof: chainProof()},
		domain:   &fakeDomain{proof: domainProof()},
		minter:   &fakeMinter{att: linkage.Attestation{DID: attestationDID, TokenID: "token-1"}},
	}
	f.router = verify.NewRouter(cfg, verify.Deps{
		Resolver: f.resolver,
		Chain:    f.chain,
		Domain:   f.domain,
		Minter:   f.minter,
		Logger:   zerolog.Nop(),
	})
	return f
}

func gated() *fixture {
	return newFixture(verify.Config{DIDPrefix: "did:twin:"})
}

func TestRouterIdentifierGate(t *testing.T) {
	t.Run("malformed identifier is rejected locally", func(t *testing.T) {
		f := gated()

		res := f.router.Verify(context.Background(), "not-a-did", string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusNotVerified, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeInvalidIdentifier)
		assert.Zero(t, f.resolver.calls, "rejected identifiers must not be resolved")
		assert.Zero(t, f.chain.calls)
		assert.Zero(t, f.minter.calls)
	})

	t.Run("foreign namespace is rejected locally", func(t *testing.T) {
		f := gated()

		res := f.router.Verify(context.Background(), "did:web:example.com", string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusNotVerified, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeInvalidIdentifier)
		assert.Contains(t, res.Reason, "did:twin:")
		assert.Zero(t, f.resolver.calls)
	})

	t.Run("empty prefix admits any method", func(t *testing.T) {
		f := newFixture(verify.Config{})
		f.resolver.doc = &did.Document{ID: "did:web:example.com"}

		res := f.router.Verify(context.Background(), "did:web:example.com", string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusVerified, res.Status)
		assert.Equal(t, 1, f.resolver.calls)
		assert.Equal(t, "did:web:example.com", f.resolver.lastID)
	})
}

func TestRouterPathGate(t *testing.T) {
	t.Run("unknown selector is rejected before resolution", func(t *testing.T) {
		f := gated()

		res := f.router.Verify(context.Background(), testDID, "CARRIER_PIGEON")

		assert.Equal(t, linkage.StatusNotVerified, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeUnsupportedPath)
		assert.Zero(t, f.resolver.calls)
		assert.Zero(t, f.chain.calls)
		assert.Zero(t, f.domain.calls)
	})

	t.Run("hyphenated lower-case selector dispatches", func(t *testing.T) {
		f := gated()

		res := f.router.Verify(context.Background(), testDID, "credential-chain")

		assert.Equal(t, linkage.StatusVerified, res.Status)
		assert.Equal(t, 1, f.chain.calls)
		assert.Zero(t, f.domain.calls)
	})
}

func TestRouterResolutionFailure(t *testing.T) {
	t.Run("unknown identifier", func(t *testing.T) {
		f := gated()
		f.resolver.err = ledger.ErrNotFound

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusError, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeResolutionFailed)
		assert.Contains(t, res.Reason, testDID)
		assert.Zero(t, f.chain.calls, "resolution failure must abort before dispatch")
		assert.Zero(t, f.minter.calls)
	})

	t.Run("gateway breakdown", func(t *testing.T) {
		f := gated()
		f.resolver.err = errors.New("gateway returned status 502")

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathDomainProof))

		assert.Equal(t, linkage.StatusError, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeResolutionFailed)
		assert.Zero(t, f.domain.calls)
	})
}

func TestRouterCredentialChain(t *testing.T) {
	t.Run("verified end to end", func(t *testing.T) {
		f := gated()

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		require.Equal(t, linkage.StatusVerified, res.Status)
		assert.Empty(t, res.Reason)
		assert.Equal(t, testDID, res.LinkedDID)
		assert.Empty(t, res.LinkedOrigin)
		assert.Equal(t, testDID, f.chain.lastID.String())

		require.NotNil(t, res.Details)
		assert.Equal(t, "EHd8rso9snpper1bnSCadV1mUTnF8ffH0mWOstCVSLEI", res.Details.CredentialSAID)
		assert.Len(t, res.Details.Chain, 3)
		assert.True(t, res.Details.RootVerified)
		assert.Len(t, res.Details.Steps, 5)

		assert.Equal(t, attestationDID, res.AttestationDID)
		assert.Equal(t, "token-1", res.TokenID)
	})

	t.Run("attestation payload mirrors the proof", func(t *testing.T) {
		f := gated()

		f.router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		require.Equal(t, 1, f.minter.calls)
		assert.Equal(t, testDID, f.minter.lastSource.String())

		payload := f.minter.lastPayload
		assert.Equal(t, testDID, payload.SourceDID)
		assert.Equal(t, linkage.PathCredentialChain, payload.Path)
		assert.Equal(t, testDID, payload.LinkedDID)
		assert.Equal(t, "EHd8rso9snpper1bnSCadV1mUTnF8ffH0mWOstCVSLEI", payload.CredentialSAID)
		assert.Len(t, payload.Chain, 3)
		assert.True(t, payload.RootVerified)
		assert.False(t, payload.VerifiedAt.IsZero())
	})

	t.Run("gate failure is a verdict without a chain", func(t *testing.T) {
		f := gated()
		f.chain.err = linkage.NewError(linkage.ErrCodeNotBound,
			"credential does not designate did:twin:0x6b17 as an alias")

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusNotVerified, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeNotBound)
		assert.Nil(t, res.Details)
		assert.Empty(t, res.LinkedDID)
		assert.Zero(t, f.minter.calls, "failed verifications must not be attested")
	})

	t.Run("collaborator breakdown is an error", func(t *testing.T) {
		f := gated()
		f.chain.err = errors.New("artifact host unreachable")

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusError, res.Status)
		assert.Equal(t, "artifact host unreachable", res.Reason)
		assert.Zero(t, f.minter.calls)
	})
}

func TestRouterDomainProof(t *testing.T) {
	t.Run("verified end to end", func(t *testing.T) {
		f := gated()

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathDomainProof))

		require.Equal(t, linkage.StatusVerified, res.Status)
		assert.Equal(t, testDID, res.LinkedDID)
		assert.Equal(t, "https://example.com", res.LinkedOrigin)
		assert.Same(t, f.resolver.doc, f.domain.lastDoc, "domain path verifies the resolved record")

		require.NotNil(t, res.Details)
		assert.Len(t, res.Details.Steps, 6)
		assert.Empty(t, res.Details.CredentialSAID)
		assert.False(t, res.Details.RootVerified)

		require.Equal(t, 1, f.minter.calls)
		assert.Equal(t, "https://example.com", f.minter.lastPayload.LinkedOrigin)
		assert.Equal(t, linkage.PathDomainProof, f.minter.lastPayload.Path)
	})

	t.Run("origin mismatch is a verdict", func(t *testing.T) {
		f := gated()
		f.domain.err = linkage.NewError(linkage.ErrCodeOriginMismatch,
			"token origin https://other.example does not match https://example.com")

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathDomainProof))

		assert.Equal(t, linkage.StatusNotVerified, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeOriginMismatch)
		assert.Zero(t, f.minter.calls)
	})
}

func TestRouterMintingIsolation(t *testing.T) {
	t.Run("hard minting failure keeps the verdict", func(t *testing.T) {
		f := gated()
		f.minter.err = linkage.WrapError(linkage.ErrCodeMintFailed,
			"creating attestation identity", errors.New("gateway returned status 503"))

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusVerified, res.Status)
		assert.Contains(t, res.Reason, linkage.ErrCodeMintFailed)
		assert.Empty(t, res.AttestationDID)
		assert.Empty(t, res.TokenID)
		require.NotNil(t, res.Details, "proof details survive a minting failure")
		assert.True(t, res.Details.RootVerified)
	})

	t.Run("partial attestation keeps the identity", func(t *testing.T) {
		f := gated()
		f.minter.att = linkage.Attestation{DID: attestationDID}

		res := f.router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusVerified, res.Status)
		assert.Empty(t, res.Reason)
		assert.Equal(t, attestationDID, res.AttestationDID)
		assert.Empty(t, res.TokenID)
	})

	t.Run("nil minter disables attestation", func(t *testing.T) {
		resolver := &fakeResolver{doc: &did.Document{ID: testDID}}
		router := verify.NewRouter(verify.Config{DIDPrefix: "did:twin:"}, verify.Deps{
			Resolver: resolver,
			Chain:    &fakeChain{proof: chainProof()},
			Domain:   &fakeDomain{proof: domainProof()},
			Logger:   zerolog.Nop(),
		})

		res := router.Verify(context.Background(), testDID, string(linkage.PathCredentialChain))

		assert.Equal(t, linkage.StatusVerified, res.Status)
		assert.Empty(t, res.AttestationDID)
		assert.Empty(t, res.TokenID)
	})
}
