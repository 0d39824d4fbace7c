package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// WireVersion is the current program image format version.
// Increment when making incompatible changes to the format.
const WireVersion uint16 = 1

// WireMagic prefixes every serialized program image.
var WireMagic = []byte{'Q', 'B', 'V', 'M'}

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a compiled program to a versioned image:
//
//	[magic:4] [version:2 big-endian] [CBOR payload]
func MarshalProgram(p *Program) ([]byte, error) {
	payload, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal program: %w", err)
	}
	buf := make([]byte, 0, 6+len(payload))
	buf = append(buf, WireMagic...)
	buf = append(buf, byte(WireVersion>>8), byte(WireVersion))
	buf = append(buf, payload...)
	return buf, nil
}

// UnmarshalProgram deserializes a program image produced by MarshalProgram.
func UnmarshalProgram(data []byte) (*Program, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode: image too short: %d bytes", len(data))
	}
	if string(data[0:4]) != string(WireMagic) {
		return nil, fmt.Errorf("bytecode: invalid image magic %q", data[0:4])
	}
	version := uint16(data[4])<<8 | uint16(data[5])
	if version > WireVersion {
		return nil, fmt.Errorf("bytecode: image version %d is newer than supported version %d", version, WireVersion)
	}
	var p Program
	if err := cbor.Unmarshal(data[6:], &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if p.Types == nil {
		p.Types = make(map[string]*RecordType)
	}
	if p.Shared == nil {
		p.Shared = make(map[string]bool)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: invalid image: %w", err)
	}
	return &p, nil
}
