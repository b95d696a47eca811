// Package filter implements the PDF stream filter codecs: the ASCII
// transport encodings, LZW, Flate plus PNG/TIFF predictors, and run-length
// encoding. Of the image-only codecs, DCT and CCITT are decoded in image.go,
// which defers to the standard library's image/jpeg and golang.org/x/image;
// JPX and JBIG2 have no decoder here.
package filter

import "fmt"

// DecodeASCIIHex implements ASCIIHexDecode: pairs of hex nibbles, ignoring
// whitespace, terminated by '>'.
func DecodeASCIIHex(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var nibbles []byte
	for _, b := range data {
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		v, ok := hexVal(b)
		if !ok {
			return nil, fmt.Errorf("ASCIIHexDecode: invalid hex digit 0x%02x", b)
		}
		nibbles = append(nibbles, v)
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	for i := 0; i < len(nibbles); i += 2 {
		out = append(out, nibbles[i]<<4|nibbles[i+1])
	}
	return out, nil
}

// EncodeASCIIHex implements the inverse of DecodeASCIIHex.
func EncodeASCIIHex(data []byte) []byte {
	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, 0, len(data)*2+1)
	for _, b := range data {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
	}
	out = append(out, '>')
	return out
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}
