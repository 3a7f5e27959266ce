package linkage

import (
	"errors"
	"fmt"
)

// Error codes returned by the verification pipeline. Each code names the
// gate that failed, not an HTTP status; the server layer maps them.
const (
	// ErrCodeInvalidIdentifier indicates the identifier does not match the
	// expected DID prefix. Checked before any resolver call is made.
	ErrCodeInvalidIdentifier = "INVALID_IDENTIFIER"

	// ErrCodeResolutionFailed indicates the ledger could not resolve the
	// identifier to an identity record.
	ErrCodeResolutionFailed = "RESOLUTION_FAILED"

	// ErrCodeUnsupportedPath indicates an unknown verification path selector.
	ErrCodeUnsupportedPath = "UNSUPPORTED_PATH"

	// ErrCodeBadStructure indicates the credential is missing required fields
	// or its self-addressing digest does not match its body.
	ErrCodeBadStructure = "BAD_STRUCTURE"

	// ErrCodeNotBound indicates the credential's alsoKnownAs set does not
	// contain the identifier under verification.
	ErrCodeNotBound = "NOT_BOUND"

	// ErrCodeIssuerUnresolved indicates an issuer AID's key state could not
	// be resolved.
	ErrCodeIssuerUnresolved = "ISSUER_UNRESOLVED"

	// ErrCodeSignatureInvalid indicates an event-log or credential signature
	// failed verification.
	ErrCodeSignatureInvalid = "SIGNATURE_INVALID"

	// ErrCodeRootMismatch indicates the issuance chain does not terminate at
	// the configured trust anchor.
	ErrCodeRootMismatch = "ROOT_MISMATCH"

	// ErrCodeNoLinkedDomainService indicates the DID document carries no
	// LinkedDomains service entry.
	ErrCodeNoLinkedDomainService = "NO_LINKED_DOMAIN_SERVICE"

	// ErrCodeInvalidEndpoint indicates the LinkedDomains service endpoint is
	// not a usable origin string.
	ErrCodeInvalidEndpoint = "INVALID_ENDPOINT"

	// ErrCodeConfigFetchFailed indicates the well-known domain configuration
	// could not be fetched or parsed.
	ErrCodeConfigFetchFailed = "CONFIG_FETCH_FAILED"

	// ErrCodeNoLinkedTokens indicates the domain configuration carries no
	// linked tokens.
	ErrCodeNoLinkedTokens = "NO_LINKED_TOKENS"

	// ErrCodeInvalidToken indicates a linked token failed to parse or its
	// signature failed verification.
	ErrCodeInvalidToken = "INVALID_TOKEN"

	// ErrCodeSubjectIssuerMismatch indicates the token's issuer or subject
	// does not match the DID document under verification.
	ErrCodeSubjectIssuerMismatch = "SUBJECT_ISSUER_MISMATCH"

	// ErrCodeOriginMismatch indicates the token's subject origin does not
	// match the service endpoint origin.
	ErrCodeOriginMismatch = "ORIGIN_MISMATCH"

	// ErrCodeMintFailed indicates the attestation step failed. Non-fatal to
	// the verification result.
	ErrCodeMintFailed = "MINT_FAILED"
)

// Error represents a linkage verification failure with a typed code.
type Error struct {
	// Code is one of the ErrCode* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Predefined sentinel errors for common cases.
// Use these with errors.Is() for type-safe error checking.
var (
	// ErrInvalidIdentifier is returned for identifiers outside the expected
	// DID method.
	ErrInvalidIdentifier = NewError(ErrCodeInvalidIdentifier, "identifier does not match the expected DID prefix")

	// ErrResolutionFailed is returned when identity resolution fails.
	ErrResolutionFailed = NewError(ErrCodeResolutionFailed, "identifier could not be resolved to an identity record")

	// ErrUnsupportedPath is returned for unknown path selectors.
	ErrUnsupportedPath = NewError(ErrCodeUnsupportedPath, "unsupported verification path")

	// ErrBadStructure is returned when the credential fails structure checks.
	ErrBadStructure = NewError(ErrCodeBadStructure, "credential structure is invalid")

	// ErrNotBound is returned when the credential does not vouch for the
	// identifier.
	ErrNotBound = NewError(ErrCodeNotBound, "credential does not bind the identifier")

	// ErrIssuerUnresolved is returned when an issuer's key state is missing.
	ErrIssuerUnresolved = NewError(ErrCodeIssuerUnresolved, "issuer key state could not be resolved")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = NewError(ErrCodeSignatureInvalid, "signature verification failed")

	// ErrRootMismatch is returned when the chain root is not the trust anchor.
	ErrRootMismatch = NewError(ErrCodeRootMismatch, "issuance chain does not terminate at the trust anchor")

	// ErrNoLinkedDomainService is returned when no LinkedDomains service exists.
	ErrNoLinkedDomainService = NewError(ErrCodeNoLinkedDomainService, "DID document has no LinkedDomains service")

	// ErrInvalidEndpoint is returned for unusable service endpoints.
	ErrInvalidEndpoint = NewError(ErrCodeInvalidEndpoint, "LinkedDomains service endpoint is not a valid origin")

	// ErrConfigFetchFailed is returned when the well-known fetch fails.
	ErrConfigFetchFailed = NewError(ErrCodeConfigFetchFailed, "domain configuration could not be fetched")

	// ErrNoLinkedTokens is returned when the configuration has no tokens.
	ErrNoLinkedTokens = NewError(ErrCodeNoLinkedTokens, "domain configuration carries no linked tokens")

	// ErrInvalidToken is returned when a linked token is unusable.
	ErrInvalidToken = NewError(ErrCodeInvalidToken, "linked token failed to parse or verify")

	// ErrSubjectIssuerMismatch is returned when token identities do not match
	// the DID document.
	ErrSubjectIssuerMismatch = NewError(ErrCodeSubjectIssuerMismatch, "token issuer or subject does not match the DID document")

	// ErrOriginMismatch is returned when the token origin does not match the
	// service endpoint.
	ErrOriginMismatch = NewError(ErrCodeOriginMismatch, "token origin does not match the linked domain")

	// ErrMintFailed is returned when attestation minting fails.
	ErrMintFailed = NewError(ErrCodeMintFailed, "attestation could not be minted")
)

// AsError checks if err is an Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var linkErr *Error
	if errors.As(err, &linkErr) {
		return linkErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an Error, or returns empty string.
func GetErrorCode(err error) string {
	if linkErr, ok := AsError(err); ok {
		return linkErr.Code
	}
	return ""
}
