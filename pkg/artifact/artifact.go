// Package artifact fetches credential and key-event artifacts from the
// locations the issuing side publishes them to: a local artifact directory
// or an HTTP origin serving the well-known tree.
package artifact

import (
	"context"
	"errors"
)

// Relative paths of the published artifact tree.
const (
	// LegalEntityCredentialPath holds the legal entity's chain-of-trust
	// credential.
	LegalEntityCredentialPath = ".well-known/keri/legal-entity-credential.json"

	// IntermediaryCredentialPath holds the qualified issuer's credential,
	// one level up the chain.
	IntermediaryCredentialPath = ".well-known/keri/qvi-credential.json"

	// CredentialSAIDPath holds the SAID of the current legal-entity
	// credential. The publisher also stores the credential under that SAID,
	// so readers can load the current credential without re-deploying a
	// fixed filename.
	CredentialSAIDPath = ".well-known/keri/credential-said.txt"

	// HabitatsPath lists the AIDs whose key events are published under the
	// inception tree.
	HabitatsPath = ".well-known/keri/habitats.json"

	keriPrefix      = ".well-known/keri/"
	inceptionPrefix = keriPrefix + "icp/"
)

// InceptionPath returns the relative path of an AID's signed inception
// event.
func InceptionPath(aid string) string {
	return inceptionPrefix + aid
}

// CredentialPath returns the relative path of a credential stored under its
// own SAID.
func CredentialPath(said string) string {
	return keriPrefix + said
}

// Common errors returned by artifact sources.
var (
	// ErrNotFound means the source answered definitively that it does not
	// serve the artifact (missing file, HTTP 4xx). Retrying cannot help.
	ErrNotFound = errors.New("artifact not found")

	// ErrUnavailable means the source could not be reached or kept failing
	// after the bounded retries.
	ErrUnavailable = errors.New("artifact source unavailable")
)

// Source fetches a published artifact by its relative path.
type Source interface {
	Fetch(ctx context.Context, relPath string) ([]byte, error)
}
