// Package pdfenc holds the built-in single-byte code->glyph-name tables a
// simple PDF font falls back to when its /Encoding entry doesn't fully
// override the font's own encoding. The tables are Adobe's standardized
// appendix-D data, identical across every PDF implementation.
package pdfenc

// Encoding maps single byte character codes to Adobe glyph names.
type Encoding struct {
	Table [256]string
	Has   map[string]bool
}

func newEncoding(table [256]string) Encoding {
	has := make(map[string]bool)
	for _, name := range table {
		if name != "" && name != ".notdef" {
			has[name] = true
		}
	}
	return Encoding{Table: table, Has: has}
}

// Standard is the Adobe Standard Encoding for Latin text (PDF 32000-1:2008
// Appendix D.2), the default built-in encoding for a non-symbolic Type 1
// font with no explicit /Encoding.
var Standard = newEncoding(standardTable)

// WinAnsi is the PDF rendition of the Windows ANSI code page for Latin
// text (Appendix D.2).
var WinAnsi = newEncoding(winAnsiTable)

// MacRoman is the PDF rendition of the classic Mac OS Roman encoding for
// Latin text (Appendix D.2).
var MacRoman = newEncoding(macRomanTable)

// Symbol is the built-in encoding of the Symbol font (Appendix D.5).
var Symbol = newEncoding(symbolTable)

// ZapfDingbats is the built-in encoding of the ZapfDingbats font
// (Appendix D.6).
var ZapfDingbats = newEncoding(zapfDingbatsTable)

// ByName looks up a base encoding by the /Encoding base-encoding name used
// in a PDF font dictionary: StandardEncoding, WinAnsiEncoding and
// MacRomanEncoding, with MacExpertEncoding answered by Standard. Symbol and
// ZapfDingbats are not found by name.
func ByName(name string) (Encoding, bool) {
	switch name {
	case "StandardEncoding":
		return Standard, true
	case "WinAnsiEncoding":
		return WinAnsi, true
	case "MacRomanEncoding":
		return MacRoman, true
	case "MacExpertEncoding":
		// Not carried: the expert-set glyph complement is never emitted
		// by the content-stream and color-space work this package
		// supports, so we fall back to StandardEncoding's Latin set.
		return Standard, true
	default:
		return Encoding{}, false
	}
}
