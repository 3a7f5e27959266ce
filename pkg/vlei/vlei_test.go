package vlei_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinlabs/twinlink/pkg/acdc"
	"github.com/twinlabs/twinlink/pkg/artifact"
	"github.com/twinlabs/twinlink/pkg/cesr"
	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/keri"
	"github.com/twinlabs/twinlink/pkg/linkage"
	"github.com/twinlabs/twinlink/pkg/vlei"
)

type identity struct {
	priv     ed25519.PrivateKey
	verfer   *cesr.Verfer
	aid      string
	artifact []byte
}

func newIdentity(t *testing.T) *identity {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	verfer, err := cesr.NewVerfer(pub)
	require.NoError(t, err)

	event, aid, err := keri.Incept([]*cesr.Verfer{verfer})
	require.NoError(t, err)

	signed, err := json.Marshal(keri.SignedEvent{
		Event:      event,
		Signatures: []string{cesr.SignQB64(priv, event)},
	})
	require.NoError(t, err)

	return &identity{priv: priv, verfer: verfer, aid: aid, artifact: signed}
}

// buildCredential computes the SAID of a credential body, signs the
// completed body with the issuer key, and attaches the signature as the
// detached provenance section.
func buildCredential(t *testing.T, body map[string]any, issuer ed25519.PrivateKey) ([]byte, string) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	completed, said, err := acdc.Saidify(raw)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(completed, &m))
	m["p"] = map[string]any{"d": cesr.SignQB64(issuer, completed)}

	signed, err := json.Marshal(m)
	require.NoError(t, err)
	return signed, said
}

// fixture is a published artifact tree carrying a valid chain: a leaf
// credential for the legal entity, endorsed by the intermediary, whose own
// credential is endorsed by the root.
type fixture struct {
	dir          string
	legalEntity  *identity
	intermediary *identity
	root         *identity
	id           did.Identifier
	leaf         []byte
	leafSAID     string
	interCred    []byte
	interSAID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		dir:          t.TempDir(),
		legalEntity:  newIdentity(t),
		intermediary: newIdentity(t),
		root:         newIdentity(t),
	}

	id, err := did.Parse("did:twin:0x6b175474e89094c44da98b954eedeac495271d0f")
	require.NoError(t, err)
	f.id = id

	f.interCred, f.interSAID = buildCredential(t, map[string]any{
		"v": "ACDC10JSON00017a_",
		"d": "",
		"i": f.intermediary.aid,
		"s": cesr.NewDiger([]byte("qualified-issuer-schema")).QB64(),
		"a": map[string]any{
			"type":      "QualifiedvLEIIssuer",
			"issuer":    f.root.aid,
			"issuee":    f.intermediary.aid,
			"qualified": true,
		},
	}, f.root.priv)

	f.leaf, f.leafSAID = buildCredential(t, map[string]any{
		"v": "ACDC10JSON00017a_",
		"d": "",
		"i": f.legalEntity.aid,
		"s": cesr.NewDiger([]byte("designated-aliases-schema")).QB64(),
		"a": map[string]any{
			"alsoKnownAs": []string{id.String()},
		},
	}, f.intermediary.priv)

	f.write(t, artifact.LegalEntityCredentialPath, f.leaf)
	f.write(t, artifact.CredentialSAIDPath, []byte(f.leafSAID+"\n"))
	f.write(t, artifact.CredentialPath(f.leafSAID), f.leaf)
	f.write(t, artifact.IntermediaryCredentialPath, f.interCred)
	f.write(t, artifact.InceptionPath(f.intermediary.aid), f.intermediary.artifact)
	f.write(t, artifact.InceptionPath(f.root.aid), f.root.artifact)

	return f
}

func (f *fixture) write(t *testing.T, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func (f *fixture) remove(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(f.dir, filepath.FromSlash(rel))))
}

func (f *fixture) verifier(anchor string) *vlei.Verifier {
	src := artifact.NewDirSource(f.dir)
	return vlei.NewVerifier(src, keri.NewStore(src), vlei.Config{TrustAnchorAID: anchor})
}

func TestVerify_FullChain(t *testing.T) {
	f := newFixture(t)

	proof, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
	require.NoError(t, err)

	assert.True(t, proof.RootVerified)
	assert.Equal(t, f.leafSAID, proof.CredentialSAID)
	assert.Len(t, proof.Steps, 5)

	require.Len(t, proof.Chain, 3)
	assert.Equal(t, linkage.ChainNode{
		Level:          linkage.LevelLegalEntity,
		AID:            f.legalEntity.aid,
		CredentialType: "DesignatedAliases",
	}, proof.Chain[0])
	assert.Equal(t, linkage.ChainNode{
		Level:          linkage.LevelIntermediary,
		AID:            f.intermediary.aid,
		CredentialType: "QualifiedvLEIIssuer",
	}, proof.Chain[1])
	assert.Equal(t, linkage.ChainNode{
		Level:          linkage.LevelRoot,
		AID:            f.root.aid,
		CredentialType: "RootOfTrust",
	}, proof.Chain[2])
}

func TestVerify_Idempotent(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(f.root.aid)

	first, err := v.Verify(context.Background(), f.id)
	require.NoError(t, err)
	second, err := v.Verify(context.Background(), f.id)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestVerify_CredentialResolution(t *testing.T) {
	t.Run("without marker", func(t *testing.T) {
		f := newFixture(t)
		f.remove(t, artifact.CredentialSAIDPath)
		f.remove(t, artifact.CredentialPath(f.leafSAID))

		proof, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		require.NoError(t, err)
		assert.True(t, proof.RootVerified)
	})

	t.Run("marker only", func(t *testing.T) {
		f := newFixture(t)
		f.remove(t, artifact.LegalEntityCredentialPath)

		proof, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		require.NoError(t, err)
		assert.Equal(t, f.leafSAID, proof.CredentialSAID)
	})

	t.Run("stale marker falls back", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, artifact.CredentialSAIDPath, []byte("EAbsentSAID"))

		proof, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		require.NoError(t, err)
		assert.Equal(t, f.leafSAID, proof.CredentialSAID)
	})

	t.Run("marker names a different credential", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, artifact.CredentialPath(f.leafSAID), f.interCred)

		proof, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		require.Error(t, err)
		assert.Nil(t, proof)
		assert.Equal(t, linkage.ErrCodeBadStructure, linkage.GetErrorCode(err))
	})

	t.Run("nothing published", func(t *testing.T) {
		f := newFixture(t)
		f.remove(t, artifact.CredentialSAIDPath)
		f.remove(t, artifact.CredentialPath(f.leafSAID))
		f.remove(t, artifact.LegalEntityCredentialPath)

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeBadStructure, linkage.GetErrorCode(err))
	})
}

func TestVerify_TamperedCredential(t *testing.T) {
	f := newFixture(t)

	var m map[string]any
	require.NoError(t, json.Unmarshal(f.leaf, &m))
	m["a"].(map[string]any)["lei"] = "549300DRQQI75D2JP341"
	tampered, err := json.Marshal(m)
	require.NoError(t, err)

	f.write(t, artifact.LegalEntityCredentialPath, tampered)
	f.write(t, artifact.CredentialPath(f.leafSAID), tampered)

	_, err = f.verifier(f.root.aid).Verify(context.Background(), f.id)
	require.Error(t, err)
	assert.Equal(t, linkage.ErrCodeBadStructure, linkage.GetErrorCode(err))
	assert.ErrorIs(t, err, acdc.ErrDigestMismatch)
}

func TestVerify_NotBound(t *testing.T) {
	f := newFixture(t)

	other, err := did.Parse("did:twin:0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)

	proof, err := f.verifier(f.root.aid).Verify(context.Background(), other)
	require.Error(t, err)
	assert.Nil(t, proof)
	assert.Equal(t, linkage.ErrCodeNotBound, linkage.GetErrorCode(err))
	assert.Contains(t, err.Error(), other.String())

	// Unchanged inputs give the unchanged verdict.
	_, again := f.verifier(f.root.aid).Verify(context.Background(), other)
	assert.Equal(t, linkage.GetErrorCode(err), linkage.GetErrorCode(again))
}

func TestVerify_IssuerResolution(t *testing.T) {
	t.Run("missing intermediary credential", func(t *testing.T) {
		f := newFixture(t)
		f.remove(t, artifact.IntermediaryCredentialPath)

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeIssuerUnresolved, linkage.GetErrorCode(err))
	})

	t.Run("intermediary credential without issuer", func(t *testing.T) {
		f := newFixture(t)
		orphan, _ := buildCredential(t, map[string]any{
			"v": "ACDC10JSON00017a_",
			"d": "",
			"i": f.intermediary.aid,
			"s": cesr.NewDiger([]byte("qualified-issuer-schema")).QB64(),
			"a": map[string]any{"issuee": f.intermediary.aid},
		}, f.root.priv)
		f.write(t, artifact.IntermediaryCredentialPath, orphan)

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeIssuerUnresolved, linkage.GetErrorCode(err))
	})

	t.Run("no key state for root", func(t *testing.T) {
		f := newFixture(t)
		f.remove(t, artifact.InceptionPath(f.root.aid))

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeIssuerUnresolved, linkage.GetErrorCode(err))
		assert.ErrorIs(t, err, keri.ErrUnknownAID)
	})

	t.Run("no key state for intermediary", func(t *testing.T) {
		f := newFixture(t)
		f.remove(t, artifact.InceptionPath(f.intermediary.aid))

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeIssuerUnresolved, linkage.GetErrorCode(err))
	})
}

func TestVerify_SignatureGates(t *testing.T) {
	t.Run("provenance signed by the wrong key", func(t *testing.T) {
		f := newFixture(t)
		stranger := newIdentity(t)

		forged, said := buildCredential(t, map[string]any{
			"v": "ACDC10JSON00017a_",
			"d": "",
			"i": f.legalEntity.aid,
			"s": cesr.NewDiger([]byte("designated-aliases-schema")).QB64(),
			"a": map[string]any{"alsoKnownAs": []string{f.id.String()}},
		}, stranger.priv)
		f.write(t, artifact.LegalEntityCredentialPath, forged)
		f.write(t, artifact.CredentialSAIDPath, []byte(said))
		f.write(t, artifact.CredentialPath(said), forged)

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeSignatureInvalid, linkage.GetErrorCode(err))
	})

	t.Run("missing provenance", func(t *testing.T) {
		f := newFixture(t)

		var m map[string]any
		require.NoError(t, json.Unmarshal(f.leaf, &m))
		delete(m, "p")
		bare, err := json.Marshal(m)
		require.NoError(t, err)
		f.write(t, artifact.LegalEntityCredentialPath, bare)
		f.write(t, artifact.CredentialPath(f.leafSAID), bare)

		_, err = f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeSignatureInvalid, linkage.GetErrorCode(err))
		assert.Contains(t, err.Error(), "no provenance signature")
	})

	t.Run("tampered issuer event log", func(t *testing.T) {
		f := newFixture(t)
		tampered := strings.Replace(string(f.intermediary.artifact), `"s":"0"`, `"s":"1"`, 1)
		require.NotEqual(t, string(f.intermediary.artifact), tampered)
		f.write(t, artifact.InceptionPath(f.intermediary.aid), []byte(tampered))

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeSignatureInvalid, linkage.GetErrorCode(err))
	})
}

func TestVerify_ChainGates(t *testing.T) {
	t.Run("no trust anchor configured", func(t *testing.T) {
		f := newFixture(t)

		proof, err := f.verifier("").Verify(context.Background(), f.id)
		require.Error(t, err)
		assert.Nil(t, proof)
		assert.Equal(t, linkage.ErrCodeRootMismatch, linkage.GetErrorCode(err))
		assert.Contains(t, err.Error(), "no trust anchor configured")
	})

	t.Run("root is not the trust anchor", func(t *testing.T) {
		f := newFixture(t)
		anchor := newIdentity(t)

		proof, err := f.verifier(anchor.aid).Verify(context.Background(), f.id)
		require.Error(t, err)
		assert.Nil(t, proof)
		assert.Equal(t, linkage.ErrCodeRootMismatch, linkage.GetErrorCode(err))
		assert.Contains(t, err.Error(), anchor.aid)
		assert.Contains(t, err.Error(), f.root.aid)
	})

	t.Run("credential names an issuer outside the chain", func(t *testing.T) {
		f := newFixture(t)
		stranger := newIdentity(t)
		f.write(t, artifact.InceptionPath(stranger.aid), stranger.artifact)

		// The stranger endorses the leaf and the credential names it, so
		// every earlier gate passes; the traversal must still reject the
		// hop because the published intermediary is someone else.
		leaf, said := buildCredential(t, map[string]any{
			"v": "ACDC10JSON00017a_",
			"d": "",
			"i": f.legalEntity.aid,
			"s": cesr.NewDiger([]byte("designated-aliases-schema")).QB64(),
			"a": map[string]any{
				"alsoKnownAs": []string{f.id.String()},
				"issuer":      stranger.aid,
			},
		}, stranger.priv)
		f.write(t, artifact.LegalEntityCredentialPath, leaf)
		f.write(t, artifact.CredentialSAIDPath, []byte(said))
		f.write(t, artifact.CredentialPath(said), leaf)

		_, err := f.verifier(f.root.aid).Verify(context.Background(), f.id)
		assert.Equal(t, linkage.ErrCodeRootMismatch, linkage.GetErrorCode(err))
	})
}

type failingSource struct {
	err error
}

func (s failingSource) Fetch(ctx context.Context, relPath string) ([]byte, error) {
	return nil, s.err
}

func TestVerify_SourceUnavailable(t *testing.T) {
	src := failingSource{err: fmt.Errorf("%w: connection refused", artifact.ErrUnavailable)}
	v := vlei.NewVerifier(src, keri.NewStore(src), vlei.Config{TrustAnchorAID: "E000"})

	id, err := did.Parse("did:twin:0x6b175474e89094c44da98b954eedeac495271d0f")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, artifact.ErrUnavailable)

	// Collaborator failure is not a verification verdict.
	assert.Empty(t, linkage.GetErrorCode(err))
}
