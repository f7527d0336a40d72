package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// wireVersion is the single framing version this node emits and accepts. A
// future version bump would require deserialize to dispatch on it.
const wireVersion = 1

var canonicalMode cbor.EncMode

func init() {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: building canonical cbor mode: %v", err))
	}
	canonicalMode = mode
}

// header is the framing prefix: [1-byte version | 1-byte kind tag | CBOR
// payload].
type header struct {
	version byte
	kind    RecordKind
}

func encodeHeader(kind RecordKind) []byte {
	return []byte{wireVersion, byte(kind)}
}

func decodeHeader(b []byte) (header, []byte, error) {
	if len(b) < 2 {
		return header{}, nil, fmt.Errorf("%w: frame shorter than header", ErrDecodeFailed)
	}
	if b[0] != wireVersion {
		return header{}, nil, fmt.Errorf("%w: frame version %d", ErrUnsupportedWireVersion, b[0])
	}
	return header{version: b[0], kind: RecordKind(b[1])}, b[2:], nil
}

// Serialize frames value as canonical CBOR under kind's wire tag.
func Serialize(value interface{}, kind RecordKind) ([]byte, error) {
	payload, err := canonicalMode.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	out := make([]byte, 0, 2+len(payload))
	out = append(out, encodeHeader(kind)...)
	out = append(out, payload...)
	return out, nil
}

// Deserialize reads a framed record, checking that its header advertises
// wantKind before decoding the payload into out. It fails with
// ErrRecordKindMismatch when the header's kind disagrees with wantKind.
func Deserialize(frame []byte, wantKind RecordKind, out interface{}) error {
	hdr, payload, err := decodeHeader(frame)
	if err != nil {
		return err
	}
	if hdr.kind != wantKind {
		return fmt.Errorf("%w: frame is %s, want %s", ErrRecordKindMismatch, hdr.kind, wantKind)
	}
	if err := cbor.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return nil
}

// PeekKind reads only the header of a frame, without decoding the payload —
// used by the dispatcher to decide which concrete type to decode into.
func PeekKind(frame []byte) (RecordKind, error) {
	hdr, _, err := decodeHeader(frame)
	if err != nil {
		return 0, err
	}
	return hdr.kind, nil
}
