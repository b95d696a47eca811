// Package font decodes embedded PDF font programs (CFF, Type 1 and
// TrueType) into per-glyph vector outlines.
package font

import "fmt"

// GlyphID indexes a font's glyph table. GID 0 is always .notdef.
type GlyphID uint16

// CommandOp tags a Command's meaning within a Glyph's outline.
type CommandOp int

const (
	CmdMoveTo CommandOp = iota
	CmdLineTo
	CmdCurveTo
	CmdHintMask
	CmdCntrMask
)

// Command is one step of a glyph outline, in font design units with the
// origin at the glyph's left sidebearing point. CmdCurveTo carries six
// args (two control points plus the endpoint); CmdMoveTo/CmdLineTo carry
// two (the destination point); CmdHintMask/CmdCntrMask carry the raw mask
// bytes as floats, consumed by a hinting engine this package does not
// implement.
type Command struct {
	Op   CommandOp
	Args []float64
}

// Glyph is one decoded glyph outline plus its advance width, both in font
// design units (1000/em for Type 1 and CFF, unitsPerEm for TrueType).
type Glyph struct {
	Width   int32
	HStem   []int16
	VStem   []int16
	Cmds    []Command
}

// Font is implemented by every embedded font program format this package
// decodes.
type Font interface {
	// NumGlyphs is the number of glyphs in the font, including .notdef.
	NumGlyphs() int
	// GlyphID maps a glyph name (Type1/CFF) to its glyph index, or false
	// if the font provides no such mapping.
	GlyphID(name string) (GlyphID, bool)
	// Glyph decodes and returns the outline for a glyph index.
	Glyph(gid GlyphID) (*Glyph, error)
	// FontMatrix is the font's design-space-to-text-space transform, six
	// floats [a b c d e f] as in a PDF content stream matrix.
	FontMatrix() [6]float64
	// BuiltinEncoding is the font's built-in code->glyph-name encoding
	// (nil when the font has none, e.g. most TrueType fonts), used when a
	// PDF simple font omits an explicit /Encoding.
	BuiltinEncoding() map[byte]string
}

// CIDKeyedFont is implemented by fonts that additionally support CID
// (character ID) based glyph lookup, i.e. CID-keyed CFF and TrueType
// fonts used by PDF's /Type0 composite fonts.
type CIDKeyedFont interface {
	Font
	// GIDForCID maps a CID to a glyph index using the font's embedded
	// charset (CFF) or an identity mapping (TrueType), falling back to
	// GID 0 when the CID is not covered.
	GIDForCID(cid uint32) GlyphID
}

// Sniff classifies data's font program format from its leading bytes,
// per the magic-number table used by every sfnt-family parser.
func Sniff(data []byte) (Format, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("font: data too short to classify (%d bytes)", len(data))
	}
	switch {
	case data[0] == 1 && data[1] == 0 && data[2] == 0 && data[3] == 0:
		return FormatTrueType, nil
	case data[0] == 1 && data[1] < 4:
		return FormatCFF, nil
	case data[0] == 0x80 && data[1] == 1:
		return FormatType1PFB, nil
	case string(data[:4]) == "OTTO":
		return FormatOpenTypeCFF, nil
	case string(data[:4]) == "ttcf":
		return FormatTrueTypeCollection, nil
	case string(data[:4]) == "typ1":
		return FormatTrueType, nil
	case data[0] == 0 && data[1] == 1 && data[2] == 0 && data[3] == 0:
		return FormatTrueType, nil
	case data[0] == '%' && data[1] == '!':
		return FormatType1PFA, nil
	default:
		return 0, fmt.Errorf("font: unrecognized font program header % x", data[:4])
	}
}

// Format identifies an embedded font program's container type.
type Format int

const (
	FormatCFF Format = iota
	FormatType1PFB
	FormatType1PFA
	FormatTrueType
	FormatOpenTypeCFF
	FormatTrueTypeCollection
)

func (f Format) String() string {
	switch f {
	case FormatCFF:
		return "CFF"
	case FormatType1PFB:
		return "Type1/PFB"
	case FormatType1PFA:
		return "Type1/PFA"
	case FormatTrueType:
		return "TrueType"
	case FormatOpenTypeCFF:
		return "OpenType/CFF"
	case FormatTrueTypeCollection:
		return "TrueTypeCollection"
	default:
		return "unknown"
	}
}
