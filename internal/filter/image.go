package filter

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/ccitt"
)

// CCITTParams mirrors the /DecodeParms entries relevant to CCITTFaxDecode.
type CCITTParams struct {
	K                      int
	Columns                int
	Rows                   int
	BlackIs1               bool
	EncodedByteAlign       bool
	EndOfBlockAbsentOK     bool
	EndOfLinePresentInData bool
}

// DecodeDCT decodes a baseline or progressive JPEG stream to an image.Image
// using the standard library decoder. Nothing in this module calls it:
// File.DecodeStream leaves DCT-encoded bodies intact, and pixels are only
// decoded when a caller passes such a body here.
func DecodeDCT(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("DCTDecode: %w", err)
	}
	return img, nil
}

// DecodeCCITTFax decodes Group 3 (1-D/2-D) or Group 4 fax data into a
// bilevel image.Gray via golang.org/x/image/ccitt. ccitt.Reader
// yields decoded rows as plain bytes (one byte per pixel, 0x00 or 0xFF)
// rather than an encoded container format, so the result is assembled
// directly rather than routed through image.Decode's format sniffing.
func DecodeCCITTFax(data []byte, p CCITTParams) (image.Image, error) {
	mode := ccitt.Group4
	switch {
	case p.K < 0:
		mode = ccitt.Group4
	case p.K == 0:
		mode = ccitt.Group3_1D
	default:
		mode = ccitt.Group3_2D
	}
	opts := &ccitt.Options{
		Invert:    p.BlackIs1,
		Align:     p.EncodedByteAlign,
		EndOfLine: p.EndOfLinePresentInData,
	}
	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, mode, p.Columns, p.Rows, opts)

	img := image.NewGray(image.Rect(0, 0, p.Columns, p.Rows))
	n, err := readFull(r, img.Pix)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("CCITTFaxDecode: %w", err)
	}
	return img, nil
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
