// Package config loads the service configuration from the environment
// and validates it at startup. Components never read the environment
// themselves; main resolves a Config once and injects the values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAddr      = ":8080"
	DefaultDIDPrefix = "did:twin:"
	DefaultTimeout   = 10 * time.Second
	DefaultAttempts  = 3
	DefaultBackoff   = 500 * time.Millisecond
)

// Config is the resolved service configuration.
type Config struct {
	// Addr is the HTTP listen address (TWINLINK_ADDR).
	Addr string

	// DIDPrefix gates identifiers before any resolution
	// (TWINLINK_DID_PREFIX).
	DIDPrefix string

	// TrustAnchorAID is the AID every issuance chain must terminate at
	// (TRUST_ANCHOR_AID, legacy alias GLEIF_ROOT_AID). Leaving it unset
	// makes every credential-chain verification fail at the anchor gate;
	// /healthz reports whether it is configured.
	TrustAnchorAID string

	// GatewayURL is the base URL of the ledger gateway
	// (LEDGER_GATEWAY_URL).
	GatewayURL string

	// ArtifactBaseURL serves .well-known verification artifacts over
	// HTTP (ARTIFACT_BASE_URL). Mutually exclusive with ArtifactDir.
	ArtifactBaseURL string

	// ArtifactDir serves artifacts from a local directory, for
	// development setups (ARTIFACT_DIR).
	ArtifactDir string

	// IssuerAddress receives minted attestation tokens
	// (TWINLINK_ISSUER_ADDRESS). Empty leaves tokens with the
	// attestation identity's own address.
	IssuerAddress string

	// HTTPTimeout bounds each outbound request (HTTP_TIMEOUT).
	HTTPTimeout time.Duration

	// FetchAttempts and FetchBackoff bound artifact fetch retries
	// (FETCH_ATTEMPTS, FETCH_BACKOFF).
	FetchAttempts int
	FetchBackoff  time.Duration
}

// LoadDotEnv loads a .env file from the working directory into the
// process environment when one exists. Variables already set win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// FromEnv builds a Config from the environment, applying defaults and
// validating the combination.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            getenv("TWINLINK_ADDR", DefaultAddr),
		DIDPrefix:       getenv("TWINLINK_DID_PREFIX", DefaultDIDPrefix),
		TrustAnchorAID:  os.Getenv("TRUST_ANCHOR_AID"),
		GatewayURL:      os.Getenv("LEDGER_GATEWAY_URL"),
		ArtifactBaseURL: os.Getenv("ARTIFACT_BASE_URL"),
		ArtifactDir:     os.Getenv("ARTIFACT_DIR"),
		IssuerAddress:   os.Getenv("TWINLINK_ISSUER_ADDRESS"),
	}
	if cfg.TrustAnchorAID == "" {
		cfg.TrustAnchorAID = os.Getenv("GLEIF_ROOT_AID")
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", DefaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.FetchAttempts, err = intEnv("FETCH_ATTEMPTS", DefaultAttempts); err != nil {
		return Config{}, err
	}
	if cfg.FetchBackoff, err = durationEnv("FETCH_BACKOFF", DefaultBackoff); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("LEDGER_GATEWAY_URL is required")
	}
	if c.ArtifactBaseURL != "" && c.ArtifactDir != "" {
		return fmt.Errorf("ARTIFACT_BASE_URL and ARTIFACT_DIR are mutually exclusive")
	}
	if c.ArtifactBaseURL == "" && c.ArtifactDir == "" {
		return fmt.Errorf("no artifact source configured: set ARTIFACT_BASE_URL or ARTIFACT_DIR")
	}
	if c.FetchAttempts < 1 {
		return fmt.Errorf("FETCH_ATTEMPTS must be at least 1, got %d", c.FetchAttempts)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
