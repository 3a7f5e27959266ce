// Package verify routes verification requests to the configured linkage
// path and normalizes every outcome into a single result shape.
//
// The router owns the request-independent gates: identifier syntax, the
// DID namespace check, path selection, and identity resolution. The path
// verifiers own the proof semantics. Every call produces a
// linkage.Result; failures are folded into the result rather than
// returned as Go errors, so transports only have to map statuses.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/domainproof"
	"github.com/twinlabs/twinlink/pkg/linkage"
	"github.com/twinlabs/twinlink/pkg/vlei"
)

// ChainVerifier proves an issuance chain for an identifier.
type ChainVerifier interface {
	Verify(ctx context.Context, id did.Identifier) (*vlei.Proof, error)
}

// DomainVerifier proves control of a web origin for an identity record.
type DomainVerifier interface {
	Verify(ctx context.Context, doc *did.Document) (*domainproof.Proof, error)
}

// Resolver resolves identifiers to identity records.
type Resolver interface {
	ResolveIdentity(ctx context.Context, identifier string) (*did.Document, error)
}

// Attester turns a successful verification into an on-chain attestation.
type Attester interface {
	Attest(ctx context.Context, source did.Identifier, payload linkage.Payload) (linkage.Attestation, error)
}

// Config carries the router's request-independent settings.
type Config struct {
	// DIDPrefix, when set, gates identifiers before any collaborator is
	// called, e.g. "did:twin:". Identifiers outside the prefix are
	// rejected without a resolver round trip.
	DIDPrefix string
}

// Deps bundles the router's collaborators. Minter may be nil, which
// disables attestation and leaves Verify as a pure check.
type Deps struct {
	Resolver Resolver
	Chain    ChainVerifier
	Domain   DomainVerifier
	Minter   Attester
	Logger   zerolog.Logger
}

// Router dispatches verification requests and normalizes outcomes. It
// holds no per-request state; one Router serves concurrent requests.
type Router struct {
	cfg      Config
	resolver Resolver
	chain    ChainVerifier
	domain   DomainVerifier
	minter   Attester
	log      zerolog.Logger
}

// NewRouter creates a Router over the given collaborators.
func NewRouter(cfg Config, deps Deps) *Router {
	return &Router{
		cfg:      cfg,
		resolver: deps.Resolver,
		chain:    deps.Chain,
		domain:   deps.Domain,
		minter:   deps.Minter,
		log:      deps.Logger,
	}
}

// Verify runs one verification request end to end: gate the identifier,
// resolve its identity record, dispatch to the selected path, and on
// success mint the attestation. The result status is VERIFIED or
// NOT_VERIFIED for a verdict, ERROR when a collaborator failed before a
// verdict could be reached. Attestation failures never downgrade a
// VERIFIED result.
func (r *Router) Verify(ctx context.Context, identifier, pathSelector string) linkage.Result {
	started := time.Now()
	res := r.run(ctx, identifier, pathSelector)

	evt := r.log.Info()
	if res.Status == linkage.StatusError {
		evt = r.log.Error()
	}
	evt = evt.
		Str("did", identifier).
		Str("path", pathSelector).
		Str("status", string(res.Status)).
		Dur("elapsed", time.Since(started))
	if res.Reason != "" {
		evt = evt.Str("reason", res.Reason)
	}
	evt.Msg("verification finished")

	return res
}

func (r *Router) run(ctx context.Context, identifier, pathSelector string) linkage.Result {
	id, err := r.admit(identifier)
	if err != nil {
		return r.resultFromError(err)
	}

	path, err := linkage.ParsePath(pathSelector)
	if err != nil {
		return r.resultFromError(err)
	}

	doc, err := r.resolver.ResolveIdentity(ctx, id.String())
	if err != nil {
		return r.resultFromError(linkage.WrapError(linkage.ErrCodeResolutionFailed,
			fmt.Sprintf("resolving identity record for %s", id), err))
	}

	var res linkage.Result
	switch path {
	case linkage.PathCredentialChain:
		res = r.verifyChain(ctx, id)
	case linkage.PathDomainProof:
		res = r.verifyDomain(ctx, doc)
	}

	if res.Status == linkage.StatusVerified {
		r.attest(ctx, id, path, &res)
	}
	return res
}

// admit parses the identifier and applies the namespace gate. It never
// touches the network, so rejected identifiers cost no resolver calls.
func (r *Router) admit(identifier string) (did.Identifier, error) {
	id, err := did.Parse(identifier)
	if err != nil {
		return did.Identifier{}, linkage.WrapError(linkage.ErrCodeInvalidIdentifier,
			fmt.Sprintf("identifier %q is not a valid DID", identifier), err)
	}
	if r.cfg.DIDPrefix != "" && !id.HasPrefix(r.cfg.DIDPrefix) {
		return did.Identifier{}, linkage.Errorf(linkage.ErrCodeInvalidIdentifier,
			"identifier %s is outside the %s namespace", id, r.cfg.DIDPrefix)
	}
	return id, nil
}

func (r *Router) verifyChain(ctx context.Context, id did.Identifier) linkage.Result {
	proof, err := r.chain.Verify(ctx, id)
	if err != nil {
		return r.resultFromError(err)
	}
	return linkage.Result{
		Status:    linkage.StatusVerified,
		LinkedDID: id.String(),
		Details: &linkage.Details{
			Steps:          proof.Steps,
			CredentialSAID: proof.CredentialSAID,
			Chain:          proof.Chain,
			RootVerified:   proof.RootVerified,
		},
	}
}

func (r *Router) verifyDomain(ctx context.Context, doc *did.Document) linkage.Result {
	proof, err := r.domain.Verify(ctx, doc)
	if err != nil {
		return r.resultFromError(err)
	}
	return linkage.Result{
		Status:       linkage.StatusVerified,
		LinkedDID:    proof.LinkedDID,
		LinkedOrigin: proof.LinkedOrigin,
		Details:      &linkage.Details{Steps: proof.Steps},
	}
}

// attest mints the attestation token for a verified result. Minting is
// best-effort: a failure lands in Reason and the verdict stands.
func (r *Router) attest(ctx context.Context, id did.Identifier, path linkage.Path, res *linkage.Result) {
	if r.minter == nil {
		return
	}

	payload := linkage.Payload{
		SourceDID:    id.String(),
		Path:         path,
		LinkedDID:    res.LinkedDID,
		LinkedOrigin: res.LinkedOrigin,
		VerifiedAt:   time.Now().UTC(),
	}
	if res.Details != nil {
		payload.CredentialSAID = res.Details.CredentialSAID
		payload.Chain = res.Details.Chain
		payload.RootVerified = res.Details.RootVerified
	}

	att, err := r.minter.Attest(ctx, id, payload)
	if err != nil {
		r.log.Error().Err(err).
			Str("did", id.String()).
			Msg("attestation failed, verification result stands")
		res.Reason = err.Error()
		return
	}
	res.AttestationDID = att.DID
	res.TokenID = att.TokenID
}

// resultFromError folds a pipeline error into a result. Typed gate
// failures are verdicts (NOT_VERIFIED); resolution failures and untyped
// errors mean a collaborator broke down (ERROR).
func (r *Router) resultFromError(err error) linkage.Result {
	lerr, ok := linkage.AsError(err)
	if !ok {
		return linkage.Result{Status: linkage.StatusError, Reason: err.Error()}
	}

	status := linkage.StatusNotVerified
	if lerr.Code == linkage.ErrCodeResolutionFailed {
		status = linkage.StatusError
	}
	return linkage.Result{Status: status, Reason: lerr.Error()}
}
