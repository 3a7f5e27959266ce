package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"unsafe"

	"github.com/twinlabs/twinlink/pkg/artifact"
	"github.com/twinlabs/twinlink/pkg/did"
	"github.com/twinlabs/twinlink/pkg/keri"
	"github.com/twinlabs/twinlink/pkg/linkage"
	"github.com/twinlabs/twinlink/pkg/vlei"
)

// VerifyChain verifies the issuance chain for an identifier against a
// local artifact directory and returns the verification result as a JSON
// string, so non-Go services can embed the verifier.
// The returned string must be freed using FreeString.
//
//export VerifyChain
func VerifyChain(identifier, artifactDir, trustAnchorAID *C.char) *C.char {
	id, err := did.Parse(C.GoString(identifier))
	if err != nil {
		return C.CString(resultJSON(linkage.Result{
			Status: linkage.StatusNotVerified,
			Reason: linkage.WrapError(linkage.ErrCodeInvalidIdentifier, "parsing identifier", err).Error(),
		}))
	}

	src := artifact.NewDirSource(C.GoString(artifactDir))
	verifier := vlei.NewVerifier(src, keri.NewStore(src), vlei.Config{
		TrustAnchorAID: C.GoString(trustAnchorAID),
	})

	proof, err := verifier.Verify(context.Background(), id)
	if err != nil {
		res := linkage.Result{Status: linkage.StatusError, Reason: err.Error()}
		if _, ok := linkage.AsError(err); ok {
			res.Status = linkage.StatusNotVerified
		}
		return C.CString(resultJSON(res))
	}

	return C.CString(resultJSON(linkage.Result{
		Status:    linkage.StatusVerified,
		LinkedDID: id.String(),
		Details: &linkage.Details{
			Steps:          proof.Steps,
			CredentialSAID: proof.CredentialSAID,
			Chain:          proof.Chain,
			RootVerified:   proof.RootVerified,
		},
	}))
}

// FreeString frees the memory allocated for a C string by Go.
//
//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func resultJSON(res linkage.Result) string {
	data, err := json.Marshal(res)
	if err != nil {
		return `{"status":"ERROR","reason":"encoding verification result"}`
	}
	return string(data)
}

func main() {}
