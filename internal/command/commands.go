// internal/command/commands.go
package command

import (
	"strings"

	"kitchen-print-service/internal/model"
)

// CommandSet holds the byte vocabulary of one printer family
type CommandSet struct {
	Family model.CommandFamily

	// Basic commands
	Initialize []byte

	// Text formatting
	BoldOn       []byte
	BoldOff      []byte
	UnderlineOn  []byte
	UnderlineOff []byte

	// Text size
	DoubleHeightOn []byte
	DoubleWidthOn  []byte
	TextSizeNormal []byte

	// Text alignment
	AlignLeft   []byte
	AlignCenter []byte
	AlignRight  []byte

	// Paper handling
	LineFeed []byte

	// Cutting; a nil PartialCut falls back to FullCut
	FullCut    []byte
	PartialCut []byte

	// Character code tables, keyed by upper-case name
	CodePages map[string][]byte
}

// ESCPOS is the Epson ESC/POS command set
var ESCPOS = &CommandSet{
	Family: model.FamilyESCPOS,

	Initialize: []byte{0x1B, 0x40}, // ESC @

	BoldOn:       []byte{0x1B, 0x45, 0x01}, // ESC E 1
	BoldOff:      []byte{0x1B, 0x45, 0x00}, // ESC E 0
	UnderlineOn:  []byte{0x1B, 0x2D, 0x01}, // ESC - 1
	UnderlineOff: []byte{0x1B, 0x2D, 0x00}, // ESC - 0

	DoubleHeightOn: []byte{0x1D, 0x21, 0x01}, // GS ! 0x01
	DoubleWidthOn:  []byte{0x1D, 0x21, 0x10}, // GS ! 0x10
	TextSizeNormal: []byte{0x1D, 0x21, 0x00}, // GS ! 0

	AlignLeft:   []byte{0x1B, 0x61, 0x00}, // ESC a 0
	AlignCenter: []byte{0x1B, 0x61, 0x01}, // ESC a 1
	AlignRight:  []byte{0x1B, 0x61, 0x02}, // ESC a 2

	LineFeed: []byte{0x0A}, // LF

	FullCut:    []byte{0x1D, 0x56, 0x00}, // GS V 0
	PartialCut: []byte{0x1D, 0x56, 0x01}, // GS V 1

	CodePages: map[string][]byte{
		"CP437":  {0x1B, 0x74, 0x00}, // ESC t 0
		"CP850":  {0x1B, 0x74, 0x02}, // ESC t 2
		"CP866":  {0x1B, 0x74, 0x11}, // ESC t 17
		"CP852":  {0x1B, 0x74, 0x12}, // ESC t 18
		"CP858":  {0x1B, 0x74, 0x13}, // ESC t 19
		"CP1252": {0x1B, 0x74, 0x10}, // ESC t 16
	},
}

// Star is the Star Micronics line mode command set
var Star = &CommandSet{
	Family: model.FamilyStar,

	Initialize: []byte{0x1B, 0x40}, // ESC @

	BoldOn:       []byte{0x1B, 0x45},       // ESC E
	BoldOff:      []byte{0x1B, 0x46},       // ESC F
	UnderlineOn:  []byte{0x1B, 0x2D, 0x01}, // ESC - 1
	UnderlineOff: []byte{0x1B, 0x2D, 0x00}, // ESC - 0

	DoubleHeightOn: []byte{0x1B, 0x69, 0x01, 0x00}, // ESC i 1 0
	DoubleWidthOn:  []byte{0x1B, 0x69, 0x00, 0x01}, // ESC i 0 1
	TextSizeNormal: []byte{0x1B, 0x69, 0x00, 0x00}, // ESC i 0 0

	AlignLeft:   []byte{0x1B, 0x1D, 0x61, 0x00}, // ESC GS a 0
	AlignCenter: []byte{0x1B, 0x1D, 0x61, 0x01}, // ESC GS a 1
	AlignRight:  []byte{0x1B, 0x1D, 0x61, 0x02}, // ESC GS a 2

	LineFeed: []byte{0x0A}, // LF

	FullCut:    []byte{0x1B, 0x64, 0x00}, // ESC d 0
	PartialCut: []byte{0x1B, 0x64, 0x01}, // ESC d 1

	CodePages: map[string][]byte{
		"CP437":  {0x1B, 0x1D, 0x74, 0x01}, // ESC GS t 1
		"CP858":  {0x1B, 0x1D, 0x74, 0x04}, // ESC GS t 4
		"CP852":  {0x1B, 0x1D, 0x74, 0x05}, // ESC GS t 5
		"CP866":  {0x1B, 0x1D, 0x74, 0x0A}, // ESC GS t 10
		"CP850":  {0x1B, 0x1D, 0x74, 0x04}, // CP858 superset
		"CP1252": {0x1B, 0x1D, 0x74, 0x20}, // ESC GS t 32
	},
}

// Lookup returns the command set for a family
func Lookup(family model.CommandFamily) (*CommandSet, error) {
	switch family {
	case model.FamilyESCPOS:
		return ESCPOS, nil
	case model.FamilyStar:
		return Star, nil
	default:
		return nil, model.NewConfigurationError("command_set", "unsupported command set family %q", family)
	}
}

// CodePage returns the code table selection for a character set name
func (cs *CommandSet) CodePage(charset string) ([]byte, error) {
	name := strings.ToUpper(strings.TrimSpace(charset))
	if name == "" {
		name = model.DefaultCharacterSet
	}
	code, ok := cs.CodePages[name]
	if !ok {
		return nil, model.NewConfigurationError("character_set", "character set %q is not supported by %s", charset, cs.Family)
	}
	return code, nil
}

// Cut returns the cut sequence, falling back to a full cut
func (cs *CommandSet) Cut(partial bool) []byte {
	if partial && cs.PartialCut != nil {
		return cs.PartialCut
	}
	return cs.FullCut
}
