package domain

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// TerminalType is the device class reported in the terminal id.
type TerminalType uint8

const (
	TerminalTypeCUT TerminalType = iota + 1 // Control Unit Terminal
	TerminalTypeDFT                         // Distributed Function Terminal
)

// String returns the short class name.
func (t TerminalType) String() string {
	switch t {
	case TerminalTypeCUT:
		return "CUT"
	case TerminalTypeDFT:
		return "DFT"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// cutModels maps the model bits (1..3) of a CUT terminal id to the 3278 model number.
var cutModels = map[uint8]int{
	0b010: 2,
	0b011: 3,
	0b111: 4,
	0b110: 5,
}

// TerminalID is the decoded READ_TERMINAL_ID response.
// Model and Keyboard are only meaningful for CUT terminals.
type TerminalID struct {
	Type     TerminalType
	Model    int
	Keyboard uint8
}

// ParseTerminalID decodes a terminal id byte.
// Bit 0 clear identifies a CUT terminal; bits 1..3 carry the model and the high
// nibble the keyboard id.
func ParseTerminalID(value byte) (TerminalID, error) {
	if value&0x01 != 0 {
		return TerminalID{Type: TerminalTypeDFT}, nil
	}

	model, ok := cutModels[(value&0x0e)>>1]
	if !ok {
		return TerminalID{}, fmt.Errorf("invalid terminal model in id 0x%02x", value)
	}

	return TerminalID{
		Type:     TerminalTypeCUT,
		Model:    model,
		Keyboard: (value & 0xf0) >> 4,
	}, nil
}

func (id TerminalID) String() string {
	if id.Type != TerminalTypeCUT {
		return id.Type.String()
	}
	return fmt.Sprintf("CUT (model %d, keyboard 0x%x)", id.Model, id.Keyboard)
}

// ExtendedID is the optional READ_EXTENDED_ID response as a lower-case hex string.
// The empty string means the terminal did not report one.
type ExtendedID string

// ParseExtendedID encodes the raw extended id bytes. Nil or empty input yields an
// absent id.
func ParseExtendedID(data []byte) ExtendedID {
	if len(data) == 0 {
		return ""
	}
	return ExtendedID(hex.EncodeToString(data))
}

// Present reports whether the terminal reported an extended id.
func (e ExtendedID) Present() bool {
	return e != ""
}

// ModelCode returns hex characters 2 through 5, e.g. "3483" for "c1348300".
// It is used for diagnostics only.
func (e ExtendedID) ModelCode() string {
	if len(e) < 6 {
		return ""
	}
	return string(e[2:6])
}

// KeyboardType returns the keyboard type byte (hex characters 6 and 7).
func (e ExtendedID) KeyboardType() (byte, bool) {
	if len(e) < 8 {
		return 0, false
	}
	b, err := hex.DecodeString(string(e[6:8]))
	if err != nil {
		return 0, false
	}
	return b[0], true
}

func (e ExtendedID) String() string {
	if !e.Present() {
		return "<none>"
	}
	return string(e)
}

// Feature is a terminal feature id as reported by READ_FEATURE_ID.
type Feature uint8

// FeatureEAB is the extended attribute buffer.
const FeatureEAB Feature = 0x79

func (f Feature) String() string {
	switch f {
	case FeatureEAB:
		return "EAB"
	default:
		return fmt.Sprintf("0x%02x", uint8(f))
	}
}

// Features maps a feature id to the feature address it was found at.
type Features map[Feature]uint8

// Has reports whether the feature is installed.
func (f Features) Has(feature Feature) bool {
	_, ok := f[feature]
	return ok
}

func (f Features) String() string {
	if len(f) == 0 {
		return "{}"
	}
	ids := make([]Feature, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s@%d", id, f[id]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
