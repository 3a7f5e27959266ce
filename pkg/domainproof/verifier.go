package domainproof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/twinlabs/twinlink/pkg/artifact"
	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/linkage"
)

// Proof is the evidence produced by a successful domain verification.
type Proof struct {
	// LinkedDID is the identifier the token was issued by and for.
	LinkedDID string

	// LinkedOrigin is the normalized origin the token binds.
	LinkedOrigin string

	// Steps lists the completed verification steps, in order.
	Steps []string
}

// Verifier validates domain-configuration proofs. Each gate failure is a
// typed linkage error; an unreachable origin surfaces as a plain error.
type Verifier struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// NewVerifier creates a domain-proof verifier with default fetch tuning.
func NewVerifier() *Verifier {
	return &Verifier{
		attempts: artifact.DefaultAttempts,
		backoff:  artifact.DefaultBackoff,
	}
}

// SetClient overrides the HTTP client used for configuration fetches.
func (v *Verifier) SetClient(c *http.Client) {
	v.client = c
}

// SetRetry tunes the bounded retry policy for configuration fetches.
func (v *Verifier) SetRetry(attempts int, backoff time.Duration) {
	v.attempts = attempts
	v.backoff = backoff
}

// Verify checks that the document's LinkedDomains origin vouches for the
// document's identifier, and vice versa.
func (v *Verifier) Verify(ctx context.Context, doc *did.Document) (*Proof, error) {
	svc, ok := doc.LinkedDomainsService()
	if !ok {
		return nil, linkage.Errorf(linkage.ErrCodeNoLinkedDomainService, "document %s advertises no LinkedDomains service", doc.ID)
	}

	origin, err := normalizeOrigin(svc.ServiceEndpoint.First())
	if err != nil {
		return nil, err
	}

	cfg, err := v.fetchConfiguration(ctx, origin)
	if err != nil {
		return nil, err
	}

	if len(cfg.LinkedTokens) == 0 {
		return nil, linkage.Errorf(linkage.ErrCodeNoLinkedTokens, "configuration at %s carries no linkage tokens", origin)
	}

	claims, err := verifyToken(cfg.LinkedTokens[0], doc)
	if err != nil {
		return nil, err
	}

	subject := claims.Subject.Flatten()
	if claims.Issuer != doc.ID || subject == nil || subject.ID != doc.ID {
		return nil, linkage.Errorf(linkage.ErrCodeSubjectIssuerMismatch, "token does not bind %s as both issuer and subject", doc.ID)
	}

	if strings.TrimSuffix(subject.Origin, "/") != origin {
		return nil, linkage.Errorf(linkage.ErrCodeOriginMismatch, "token binds origin %s, service endpoint is %s", subject.Origin, origin)
	}

	return &Proof{
		LinkedDID:    claims.Issuer,
		LinkedOrigin: origin,
		Steps: []string{
			"LinkedDomains service endpoint located",
			fmt.Sprintf("origin normalized to %s", origin),
			"domain configuration fetched",
			"linkage token signature verified against document key",
			"token issuer and subject match the document",
			"token origin matches the service endpoint",
		},
	}, nil
}

// normalizeOrigin validates the service endpoint and strips a trailing
// slash.
func normalizeOrigin(endpoint string) (string, error) {
	if endpoint == "" {
		return "", linkage.NewError(linkage.ErrCodeInvalidEndpoint, "LinkedDomains service has no endpoint")
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", linkage.Errorf(linkage.ErrCodeInvalidEndpoint, "service endpoint %q is not an http(s) origin", endpoint)
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

func (v *Verifier) fetchConfiguration(ctx context.Context, origin string) (*Configuration, error) {
	src := artifact.NewHTTPSource(origin)
	src.SetRetry(v.attempts, v.backoff)
	if v.client != nil {
		src.SetClient(v.client)
	}

	data, err := src.Fetch(ctx, WellKnownPath)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, linkage.WrapError(linkage.ErrCodeConfigFetchFailed, fmt.Sprintf("origin %s serves no domain configuration", origin), err)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching domain configuration from %s: %w", origin, err)
	}

	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeConfigFetchFailed, "domain configuration does not parse", err)
	}
	return &cfg, nil
}

// verifyToken parses the compact token, checks its signature against the
// document's verification key, and returns the verified claims.
func verifyToken(token string, doc *did.Document) (*Claims, error) {
	jws, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeInvalidToken, "linkage token does not parse", err)
	}

	key, err := doc.VerificationKey()
	if err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeInvalidToken, "document carries no key to verify the token", err)
	}

	payload, err := jws.Verify(key)
	if err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeInvalidToken, "linkage token signature does not verify", err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, linkage.WrapError(linkage.ErrCodeInvalidToken, "linkage token claims do not parse", err)
	}
	return &claims, nil
}
