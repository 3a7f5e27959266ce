package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/twinlabs/twinlink/pkg/did"
)

// GatewayClient implements Ledger over the identity gateway's REST API.
type GatewayClient struct {
	BaseURL string
	Client  *http.Client
}

// NewGatewayClient creates a client for the gateway at baseURL.
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateIdentity creates a new identity record.
// Endpoint: POST {base}/v1/identities
func (c *GatewayClient) CreateIdentity(ctx context.Context, controllerLabel string) (*CreatedIdentity, error) {
	payload, err := json.Marshal(map[string]string{"controllerLabel": controllerLabel})
	if err != nil {
		return nil, fmt.Errorf("encoding create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/identities", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: create identity returned status %d", ErrGateway, resp.StatusCode)
	}

	var created CreatedIdentity
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: decoding create response: %v", ErrGateway, err)
	}
	if created.Document == nil || created.Document.ID == "" {
		return nil, fmt.Errorf("%w: create response carries no identity record", ErrGateway)
	}
	return &created, nil
}

// ResolveIdentity resolves an identifier to its DID document.
// Endpoint: GET {base}/v1/identities/{did}
func (c *GatewayClient) ResolveIdentity(ctx context.Context, identifier string) (*did.Document, error) {
	endpoint := fmt.Sprintf("%s/v1/identities/%s", c.BaseURL, url.PathEscape(identifier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building resolve request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", identifier, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: resolve returned status %d", ErrGateway, resp.StatusCode)
	}

	var doc did.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding identity record: %v", ErrGateway, err)
	}
	return &doc, nil
}

// MintToken mints an immutable token and returns its ID.
// Endpoint: POST {base}/v1/tokens
func (c *GatewayClient) MintToken(ctx context.Context, controllerLabel, issuerAddress string, immutableData []byte, metadata map[string]string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"controllerLabel": controllerLabel,
		"issuerAddress":   issuerAddress,
		"immutableData":   json.RawMessage(immutableData),
		"metadata":        metadata,
	})
	if err != nil {
		return "", fmt.Errorf("encoding mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/tokens", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("minting token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: mint returned status %d", ErrGateway, resp.StatusCode)
	}

	var minted struct {
		TokenID string `json:"tokenId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&minted); err != nil {
		return "", fmt.Errorf("%w: decoding mint response: %v", ErrGateway, err)
	}
	if minted.TokenID == "" {
		return "", fmt.Errorf("%w: mint response carries no token ID", ErrGateway)
	}
	return minted.TokenID, nil
}

// TransferToken moves a token between addresses.
// Endpoint: POST {base}/v1/tokens/{id}/transfer
func (c *GatewayClient) TransferToken(ctx context.Context, tokenID, toAddress, fromAddress string) error {
	payload, err := json.Marshal(map[string]string{
		"toAddress":   toAddress,
		"fromAddress": fromAddress,
	})
	if err != nil {
		return fmt.Errorf("encoding transfer request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/tokens/%s/transfer", c.BaseURL, url.PathEscape(tokenID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("transferring token %s: %w", tokenID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: token %s", ErrNotFound, tokenID)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: transfer returned status %d", ErrGateway, resp.StatusCode)
	}
	return nil
}
