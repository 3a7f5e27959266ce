// Package fixture generates a complete artifact tree for development and
// integration testing: a three-level identity hierarchy with signed
// inception events, the credentials linking it to a TWIN identifier, and
// optionally the domain configuration for a linked origin. The output is
// the tree a production issuer publishes; pointing ARTIFACT_DIR at it
// yields a fully verifiable setup.
package fixture

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-jose/go-jose/v4"

	"github.com/twinlabs/twinlink/pkg/acdc"
	"github.com/twinlabs/twinlink/pkg/artifact"
	"github.com/twinlabs/twinlink/pkg/cesr"
	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/domainproof"
	"github.com/twinlabs/twinlink/pkg/keri"
)

const credentialVersion = "ACDC10JSON00017a_"

// Params selects what the generated tree binds.
type Params struct {
	// DID is the identifier the leaf credential designates.
	DID string

	// Origin, when set, adds a LinkedDomains service to the identity
	// record and emits the matching did-configuration.json.
	Origin string

	// LEI is embedded in the leaf credential's attributes when set.
	LEI string
}

// Set describes a generated artifact tree.
type Set struct {
	RootAID         string
	IntermediaryAID string
	LegalEntityAID  string
	CredentialSAID  string

	// Document is the identity record to register at the ledger gateway
	// for the verified DID. It is also written to identity-document.json.
	Document *did.Document

	// DocumentKey is the private key behind Document's verification
	// method; it signs domain-configuration tokens.
	DocumentKey ed25519.PrivateKey
}

type identity struct {
	priv   ed25519.PrivateKey
	aid    string
	signed []byte
}

// newIdentity generates a keypair and its signed inception event.
func newIdentity() (*identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	verfer, err := cesr.NewVerfer(pub)
	if err != nil {
		return nil, err
	}

	event, aid, err := keri.Incept([]*cesr.Verfer{verfer})
	if err != nil {
		return nil, err
	}
	signed, err := json.Marshal(keri.SignedEvent{
		Event:      event,
		Signatures: []string{cesr.SignQB64(priv, event)},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding signed event: %w", err)
	}

	return &identity{priv: priv, aid: aid, signed: signed}, nil
}

// buildCredential computes the SAID of a credential body, signs the
// completed body with the issuer key, and attaches the signature as the
// detached provenance section.
func buildCredential(body map[string]any, issuer ed25519.PrivateKey) ([]byte, string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encoding credential body: %w", err)
	}
	completed, said, err := acdc.Saidify(raw)
	if err != nil {
		return nil, "", err
	}

	var m map[string]any
	if err := json.Unmarshal(completed, &m); err != nil {
		return nil, "", fmt.Errorf("decoding completed credential: %w", err)
	}
	m["p"] = map[string]any{"d": cesr.SignQB64(issuer, completed)}

	signed, err := json.Marshal(m)
	if err != nil {
		return nil, "", fmt.Errorf("encoding signed credential: %w", err)
	}
	return signed, said, nil
}

// Generate writes a complete artifact tree under dir and returns its
// description. Existing files are overwritten.
func Generate(dir string, p Params) (*Set, error) {
	id, err := did.Parse(p.DID)
	if err != nil {
		return nil, err
	}

	root, err := newIdentity()
	if err != nil {
		return nil, err
	}
	inter, err := newIdentity()
	if err != nil {
		return nil, err
	}
	legal, err := newIdentity()
	if err != nil {
		return nil, err
	}

	// Key events and the habitat index.
	for _, ident := range []*identity{root, inter, legal} {
		if err := write(dir, artifact.InceptionPath(ident.aid), ident.signed); err != nil {
			return nil, err
		}
	}
	habitats, err := json.Marshal([]keri.Habitat{
		{Name: "root", AID: root.aid},
		{Name: "intermediary", AID: inter.aid},
		{Name: "legal-entity", AID: legal.aid},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding habitats: %w", err)
	}
	if err := write(dir, artifact.HabitatsPath, habitats); err != nil {
		return nil, err
	}

	// The qualified-issuer credential, endorsed by the root.
	interCred, _, err := buildCredential(map[string]any{
		"v": credentialVersion,
		"d": "",
		"i": inter.aid,
		"s": cesr.NewDiger([]byte("qualified-issuer-schema")).QB64(),
		"a": map[string]any{
			"type":      "QualifiedvLEIIssuer",
			"issuer":    root.aid,
			"issuee":    inter.aid,
			"qualified": true,
		},
	}, root.priv)
	if err != nil {
		return nil, err
	}
	if err := write(dir, artifact.IntermediaryCredentialPath, interCred); err != nil {
		return nil, err
	}

	// The leaf credential, endorsed by the intermediary. Published under
	// the fixed name, under its own SAID, and through the SAID marker.
	attrs := map[string]any{
		"type":        "DesignatedAliases",
		"issuer":      inter.aid,
		"alsoKnownAs": []string{id.String()},
	}
	if p.LEI != "" {
		attrs["lei"] = p.LEI
	}
	leaf, leafSAID, err := buildCredential(map[string]any{
		"v": credentialVersion,
		"d": "",
		"i": legal.aid,
		"s": cesr.NewDiger([]byte("designated-aliases-schema")).QB64(),
		"a": attrs,
	}, inter.priv)
	if err != nil {
		return nil, err
	}
	for _, rel := range []string{artifact.LegalEntityCredentialPath, artifact.CredentialPath(leafSAID)} {
		if err := write(dir, rel, leaf); err != nil {
			return nil, err
		}
	}
	if err := write(dir, artifact.CredentialSAIDPath, []byte(leafSAID+"\n")); err != nil {
		return nil, err
	}

	// The identity record the gateway should serve for the DID, and the
	// domain configuration its origin should host.
	docPub, docPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating document key: %w", err)
	}
	doc := &did.Document{
		ID: id.String(),
		VerificationMethod: []did.VerificationMethod{{
			ID:                 id.String() + "#key-1",
			Type:               "Ed25519VerificationKey2020",
			Controller:         id.String(),
			PublicKeyMultibase: did.EncodeMultibaseKey(docPub),
		}},
	}
	if p.Origin != "" {
		doc.Service = []did.Service{{
			ID:              id.String() + "#domain-linkage",
			Type:            did.StringOrSlice{"LinkedDomains"},
			ServiceEndpoint: did.StringOrSlice{p.Origin},
		}}

		token, err := domainproof.SignLinkage(id.String(), p.Origin, docPriv)
		if err != nil {
			return nil, err
		}
		cfg, err := json.MarshalIndent(domainproof.Configuration{LinkedTokens: []string{token}}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding domain configuration: %w", err)
		}
		if err := write(dir, "did-configuration.json", cfg); err != nil {
			return nil, err
		}
	}
	docJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding identity record: %w", err)
	}
	if err := write(dir, "identity-document.json", docJSON); err != nil {
		return nil, err
	}

	// Private keys, for re-issuing artifacts against the same hierarchy.
	for _, k := range []struct {
		name string
		kid  string
		key  ed25519.PrivateKey
	}{
		{"root", root.aid, root.priv},
		{"intermediary", inter.aid, inter.priv},
		{"legal-entity", legal.aid, legal.priv},
		{"document", id.String(), docPriv},
	} {
		if err := writeKey(dir, k.name, k.kid, k.key); err != nil {
			return nil, err
		}
	}

	return &Set{
		RootAID:         root.aid,
		IntermediaryAID: inter.aid,
		LegalEntityAID:  legal.aid,
		CredentialSAID:  leafSAID,
		Document:        doc,
		DocumentKey:     docPriv,
	}, nil
}

func write(dir, rel string, data []byte) error {
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

func writeKey(dir, name, kid string, key ed25519.PrivateKey) error {
	jwk := jose.JSONWebKey{
		Key:       key,
		KeyID:     kid,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}
	data, err := json.MarshalIndent(jwk, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s key: %w", name, err)
	}
	return write(dir, filepath.Join("keys", name+".jwk"), data)
}
