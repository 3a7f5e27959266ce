// Package ledger defines the identity-ledger collaborator the verification
// pipeline consumes: DID document resolution on the read side, identity
// creation and token minting on the attestation side. The ledger itself is
// a black box behind a REST gateway.
package ledger

import (
	"context"
	"errors"

	"github.com/twinlabs/twinlink/pkg/did"
)

// Common errors returned by ledger implementations.
var (
	// ErrNotFound means the ledger does not know the identifier.
	ErrNotFound = errors.New("identifier not found on ledger")

	// ErrGateway means the gateway answered outside its contract.
	ErrGateway = errors.New("ledger gateway error")
)

// CreatedIdentity is the outcome of CreateIdentity: the fresh identity
// record plus the address controlling it.
type CreatedIdentity struct {
	Document       *did.Document `json:"document"`
	ControlAddress string        `json:"controlAddress"`
}

// Ledger is the identity-ledger collaborator.
type Ledger interface {
	// CreateIdentity creates a brand-new identity record tagged with the
	// given controller label.
	CreateIdentity(ctx context.Context, controllerLabel string) (*CreatedIdentity, error)

	// ResolveIdentity resolves an identifier to its DID document. Returns
	// ErrNotFound for unknown identifiers.
	ResolveIdentity(ctx context.Context, identifier string) (*did.Document, error)

	// MintToken mints an immutable token under the controller's identity
	// and returns its ID.
	MintToken(ctx context.Context, controllerLabel, issuerAddress string, immutableData []byte, metadata map[string]string) (string, error)

	// TransferToken moves a token between addresses.
	TransferToken(ctx context.Context, tokenID, toAddress, fromAddress string) error
}
