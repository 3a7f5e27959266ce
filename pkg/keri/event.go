// Package keri maintains the key state of the autonomic identifiers that
// appear in issuance chains. States are established from published signed
// inception events and looked up by AID during chain verification.
package keri

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/twinlabs/twinlink/pkg/cesr"
)

// Common errors returned by this package.
var (
	ErrUnknownAID   = errors.New("no key state for AID")
	ErrEventInvalid = errors.New("key event is invalid")
)

// versionFormat is the event version string: serialization family plus the
// total serialized size in hex. The size is fixed-width, so it can be
// computed by serializing with a placeholder first.
const versionFormat = "KERI10JSON%06x_"

const inceptionType = "icp"

// InceptionEvent is the establishment event creating an AID and binding
// its initial signing keys.
type InceptionEvent struct {
	Version          string   `json:"v"`
	SAID             string   `json:"d"`
	AID              string   `json:"i"`
	Sequence         string   `json:"s"`
	Type             string   `json:"t"`
	KeyThreshold     string   `json:"kt"`
	Keys             []string `json:"k"`
	NextThreshold    string   `json:"nt"`
	NextDigests      []string `json:"n"`
	WitnessThreshold string   `json:"bt"`
	Witnesses        []string `json:"b"`
	Config           []string `json:"c"`
	Anchors          []any    `json:"a"`
}

// SignedEvent is the published form of a key event: the exact serialized
// event bytes plus the indexed signatures over them. Event stays a raw
// message so signatures verify over the bytes as published, not over a
// re-serialization.
type SignedEvent struct {
	Event      json.RawMessage `json:"event"`
	Signatures []string        `json:"signatures"`
}

// ParseSignedEvent decodes a published signed-event artifact.
func ParseSignedEvent(data []byte) (*SignedEvent, error) {
	var se SignedEvent
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventInvalid, err)
	}
	if len(se.Event) == 0 {
		return nil, fmt.Errorf("%w: missing event body", ErrEventInvalid)
	}
	if len(se.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no signatures attached", ErrEventInvalid)
	}
	return &se, nil
}

// Inception decodes and validates the wrapped event as an inception event.
func (se *SignedEvent) Inception() (*InceptionEvent, error) {
	var evt InceptionEvent
	if err := json.Unmarshal(se.Event, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventInvalid, err)
	}

	switch {
	case evt.Type != inceptionType:
		return nil, fmt.Errorf("%w: expected type %q, got %q", ErrEventInvalid, inceptionType, evt.Type)
	case evt.AID == "":
		return nil, fmt.Errorf("%w: missing AID field 'i'", ErrEventInvalid)
	case len(evt.Keys) == 0:
		return nil, fmt.Errorf("%w: no signing keys", ErrEventInvalid)
	case len(se.Signatures) > len(evt.Keys):
		return nil, fmt.Errorf("%w: %d signatures for %d keys", ErrEventInvalid, len(se.Signatures), len(evt.Keys))
	}

	if err := checkVersion(evt.Version, len(se.Event)); err != nil {
		return nil, err
	}
	return &evt, nil
}

// Verify checks the event end to end: version and size, key decoding, the
// indexed signatures over the published bytes, and the self-addressing
// binding between the AID and the event body. Returns the established key
// state.
func (se *SignedEvent) Verify() (*KeyState, error) {
	evt, err := se.Inception()
	if err != nil {
		return nil, err
	}

	verfers := make([]*cesr.Verfer, len(evt.Keys))
	for i, k := range evt.Keys {
		v, err := cesr.ParseVerfer(k)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %v", ErrEventInvalid, i, err)
		}
		verfers[i] = v
	}

	// Indexed signatures: signature j is by key j.
	for i, sig := range se.Signatures {
		if err := verfers[i].Verify(sig, se.Event); err != nil {
			return nil, fmt.Errorf("event %s signature %d: %w", evt.AID, i, err)
		}
	}

	if err := verifySelfAddressing(se.Event, evt); err != nil {
		return nil, err
	}

	return &KeyState{
		AID:      evt.AID,
		Keys:     verfers,
		Sequence: evt.Sequence,
	}, nil
}

// checkVersion validates the version string and its embedded size against
// the published byte length.
func checkVersion(version string, size int) error {
	const prefix = "KERI10JSON"
	if !strings.HasPrefix(version, prefix) {
		return fmt.Errorf("%w: version %q is not a KERI serialization", ErrEventInvalid, version)
	}
	hexSize := strings.TrimSuffix(strings.TrimPrefix(version, prefix), "_")
	declared, err := strconv.ParseInt(hexSize, 16, 64)
	if err != nil {
		return fmt.Errorf("%w: unparsable size in version %q", ErrEventInvalid, version)
	}
	if int(declared) != size {
		return fmt.Errorf("%w: version declares %d bytes, event is %d", ErrEventInvalid, declared, size)
	}
	return nil
}

// verifySelfAddressing checks that the AID is bound to the event body: a
// key-coded AID must equal the first key, a digest-coded AID must equal
// the digest of the canonical body with the 'd' and 'i' fields blanked.
func verifySelfAddressing(raw []byte, evt *InceptionEvent) error {
	if strings.HasPrefix(evt.AID, cesr.CodeEd25519) {
		if evt.AID != evt.Keys[0] {
			return fmt.Errorf("%w: key-coded AID does not match first key", ErrEventInvalid)
		}
		return nil
	}

	diger, err := cesr.ParseDiger(evt.AID)
	if err != nil {
		return fmt.Errorf("%w: AID %q has unsupported derivation: %v", ErrEventInvalid, evt.AID, err)
	}
	if evt.SAID != evt.AID {
		return fmt.Errorf("%w: self-addressing event must have d == i", ErrEventInvalid)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("%w: %v", ErrEventInvalid, err)
	}
	delete(body, "d")
	delete(body, "i")
	canonical, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("canonicalizing event body: %w", err)
	}

	if !diger.Verify(canonical) {
		return fmt.Errorf("%w: AID does not match event digest", ErrEventInvalid)
	}
	return nil
}

// Incept builds the serialized inception event for the given keys. The AID
// is derived from the event body itself, so the returned bytes are final
// and ready to be signed as-is. Used by the issuing-side tooling and by
// fixtures; the verification pipeline only ever parses events.
func Incept(verfers []*cesr.Verfer) (event []byte, aid string, err error) {
	if len(verfers) == 0 {
		return nil, "", fmt.Errorf("%w: at least one key required", ErrEventInvalid)
	}

	keys := make([]string, len(verfers))
	for i, v := range verfers {
		keys[i] = v.QB64()
	}

	// The AID slots are filled with dummies of the final digest width, so
	// the size measured now is the size of the finished event.
	dummy := strings.Repeat("#", 44)
	body := map[string]any{
		"v":  fmt.Sprintf(versionFormat, 0),
		"d":  dummy,
		"i":  dummy,
		"s":  "0",
		"t":  inceptionType,
		"kt": strconv.Itoa(len(verfers)),
		"k":  keys,
		"nt": "0",
		"n":  []string{},
		"bt": "0",
		"b":  []string{},
		"c":  []string{},
		"a":  []any{},
	}

	measured, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("serializing inception event: %w", err)
	}
	body["v"] = fmt.Sprintf(versionFormat, len(measured))

	// Derive the AID over the canonical body, version included, with the
	// self-referential fields removed.
	canonical := make(map[string]any, len(body))
	for k, v := range body {
		canonical[k] = v
	}
	delete(canonical, "d")
	delete(canonical, "i")
	canonicalBytes, err := json.Marshal(canonical)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalizing inception body: %w", err)
	}
	aid = cesr.NewDiger(canonicalBytes).QB64()
	body["d"] = aid
	body["i"] = aid

	event, err = json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("serializing inception event: %w", err)
	}
	return event, aid, nil
}
