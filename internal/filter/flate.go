package filter

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
)

// PredictorParams mirrors the /DecodeParms entries that govern the
// PNG/TIFF predictor postfilter applied after Flate or LZW decompression.
type PredictorParams struct {
	Predictor int // 1 = none, 2 = TIFF, 10-15 = PNG (per-row tag byte)
	Colors    int
	BPC       int // bits per component
	Columns   int
}

func (p PredictorParams) normalized() PredictorParams {
	if p.Colors == 0 {
		p.Colors = 1
	}
	if p.BPC == 0 {
		p.BPC = 8
	}
	if p.Columns == 0 {
		p.Columns = 1
	}
	if p.Predictor == 0 {
		p.Predictor = 1
	}
	return p
}

func (p PredictorParams) bytesPerPixel() int {
	bits := p.Colors * p.BPC
	return (bits + 7) / 8
}

func (p PredictorParams) rowBytes() int {
	bits := p.Colors * p.BPC * p.Columns
	return (bits + 7) / 8
}

// DecodeFlate inflates a zlib stream (falling back to raw deflate when the
// zlib header is malformed, matching real-world PDF producers that omit
// it), then applies the predictor postfilter if Predictor > 1.
func DecodeFlate(data []byte, params PredictorParams) ([]byte, error) {
	raw, err := inflate(data)
	if err != nil {
		return nil, err
	}
	return ApplyPredictor(raw, params)
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err == nil {
		defer zr.Close()
		out, rerr := io.ReadAll(zr)
		if rerr == nil {
			return out, nil
		}
	}
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("FlateDecode: %w", err)
	}
	return out, nil
}

// EncodeFlate zlib-compresses data with no predictor.
func EncodeFlate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// ApplyPredictor reverses the PNG (per-row tag byte, types 0-4) or TIFF
// (type 2) predictor that many PDF producers apply before Flate/LZW
// compression to improve the compression ratio of image-like data.
func ApplyPredictor(data []byte, params PredictorParams) ([]byte, error) {
	p := params.normalized()
	switch {
	case p.Predictor <= 1:
		return data, nil
	case p.Predictor == 2:
		return applyTIFFPredictor(data, p)
	case p.Predictor >= 10:
		return applyPNGPredictor(data, p)
	default:
		return nil, fmt.Errorf("FlateDecode: unsupported predictor %d", p.Predictor)
	}
}

func applyTIFFPredictor(data []byte, p PredictorParams) ([]byte, error) {
	rowLen := p.rowBytes()
	if rowLen == 0 {
		return data, nil
	}
	bpp := p.bytesPerPixel()
	out := make([]byte, len(data))
	copy(out, data)
	for rowStart := 0; rowStart+rowLen <= len(out); rowStart += rowLen {
		row := out[rowStart : rowStart+rowLen]
		if p.BPC == 8 {
			for i := bpp; i < len(row); i++ {
				row[i] += row[i-bpp]
			}
		}
		// Sub-byte-sample TIFF predictors (1/2/4 bpc) are rare in the
		// wild; PDF producers overwhelmingly use 8-bit components with
		// predictor 2, so that is the path implemented here.
	}
	return out, nil
}

const (
	pngNone byte = iota
	pngSub
	pngUp
	pngAverage
	pngPaeth
)

func applyPNGPredictor(data []byte, p PredictorParams) ([]byte, error) {
	rowLen := p.rowBytes()
	bpp := p.bytesPerPixel()
	if rowLen == 0 {
		return nil, fmt.Errorf("FlateDecode: predictor row length is zero")
	}
	stride := rowLen + 1 // tag byte prefix
	numRows := len(data) / stride
	out := make([]byte, 0, numRows*rowLen)
	prevRow := make([]byte, rowLen)

	for r := 0; r < numRows; r++ {
		rowStart := r * stride
		tag := data[rowStart]
		enc := data[rowStart+1 : rowStart+stride]
		row := make([]byte, rowLen)

		for i := 0; i < rowLen; i++ {
			var a, b, c byte
			if i >= bpp {
				a = row[i-bpp]
				c = prevRow[i-bpp]
			}
			b = prevRow[i]

			switch tag {
			case pngNone:
				row[i] = enc[i]
			case pngSub:
				row[i] = enc[i] + a
			case pngUp:
				row[i] = enc[i] + b
			case pngAverage:
				row[i] = enc[i] + byte((int(a)+int(b))/2)
			case pngPaeth:
				row[i] = enc[i] + paeth(a, b, c)
			default:
				return nil, fmt.Errorf("FlateDecode: unknown PNG predictor tag %d", tag)
			}
		}
		out = append(out, row...)
		prevRow = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	pa := abs(int(b) - int(c))
	pb := abs(int(a) - int(c))
	pc := abs(int(a) + int(b) - 2*int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
