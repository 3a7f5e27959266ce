// Package attest records successful verifications on the ledger: a fresh
// identity per attestation plus a token carrying the linkage evidence.
// Everything past identity creation is best-effort; the verification
// verdict never depends on it.
package attest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/ledger"
	"github.com/twinlabs/twinlink/pkg/linkage"
)

// Attestation stages reported to the failure hook.
const (
	StageCreate   = "create"
	StageMint     = "mint"
	StageTransfer = "transfer"
)

// labelPrefix tags ledger identities created for attestations.
const labelPrefix = "twinlink-attestation-"

// Minter turns verification outcomes into on-chain attestations.
type Minter struct {
	ledger        ledger.Ledger
	log           zerolog.Logger
	issuerAddress string
	onFailure     func(stage string)
}

// NewMinter creates a minter backed by the ledger collaborator.
func NewMinter(led ledger.Ledger, log zerolog.Logger) *Minter {
	return &Minter{
		ledger: led,
		log:    log,
	}
}

// SetIssuerAddress sets the ledger address tokens are minted from. Without
// one, minted tokens stay with the gateway's default account and no
// transfer is attempted.
func (m *Minter) SetIssuerAddress(addr string) {
	m.issuerAddress = addr
}

// SetFailureHook installs a callback invoked once per failed stage.
func (m *Minter) SetFailureHook(hook func(stage string)) {
	m.onFailure = hook
}

// Attest creates an attestation identity and mints the linkage evidence
// into a token owned by it. Identity creation failure is a hard error;
// mint and transfer failures degrade the attestation to a missing token
// instead of failing the call.
func (m *Minter) Attest(ctx context.Context, source did.Identifier, payload linkage.Payload) (linkage.Attestation, error) {
	label := labelPrefix + uuid.NewString()

	created, err := m.ledger.CreateIdentity(ctx, label)
	if err != nil {
		m.fail(StageCreate)
		return linkage.Attestation{}, linkage.WrapError(linkage.ErrCodeMintFailed, fmt.Sprintf("creating attestation identity for %s", source), err)
	}

	att := linkage.Attestation{
		DID:           created.Document.ID,
		IssuerAddress: m.issuerAddress,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.fail(StageMint)
		m.log.Error().Err(err).Str("did", att.DID).Msg("attestation payload does not serialize")
		return att, nil
	}

	metadata := map[string]string{
		"kind":             "linkage-attestation",
		"sourceIdentifier": payload.SourceDID,
		"path":             payload.Path.String(),
	}

	tokenID, err := m.ledger.MintToken(ctx, label, m.issuerAddress, data, metadata)
	if err != nil {
		m.fail(StageMint)
		m.log.Error().Err(err).Str("did", att.DID).Str("label", label).Msg("attestation token mint failed")
		return att, nil
	}
	att.TokenID = tokenID

	if m.issuerAddress == "" || created.ControlAddress == "" || created.ControlAddress == m.issuerAddress {
		return att, nil
	}

	if err := m.ledger.TransferToken(ctx, tokenID, created.ControlAddress, m.issuerAddress); err != nil {
		m.fail(StageTransfer)
		m.log.Warn().Err(err).Str("tokenId", tokenID).Str("to", created.ControlAddress).Msg("attestation token transfer failed, token stays with issuer")
	}

	return att, nil
}

func (m *Minter) fail(stage string) {
	if m.onFailure != nil {
		m.onFailure(stage)
	}
}
