package filter

import "fmt"

const (
	lzwClearCode = 256
	lzwEODCode   = 257
	lzwFirstCode = 258
)

// DecodeLZW implements the PDF variant of LZW: 9-bit starting code width,
// MSB-first bit packing, growing to 10/11/12 bits as the table fills, with
// an explicit clear code (256) and end-of-data code (257). earlyChange
// matches the /EarlyChange parameter (default true): when set, the code
// width grows one code index earlier than the strict table-full point.
func DecodeLZW(data []byte, earlyChange bool) ([]byte, error) {
	br := &bitReader{data: data}
	var table [][]byte
	resetTable := func() {
		table = make([][]byte, lzwFirstCode, 4096)
		for i := 0; i < 256; i++ {
			table[i] = []byte{byte(i)}
		}
		table[lzwClearCode] = nil
		table[lzwEODCode] = nil
	}
	resetTable()

	codeWidth := uint(9)
	var out []byte
	var prev []byte

	nextWidth := func() uint {
		n := len(table)
		if earlyChange {
			n++
		}
		switch {
		case n >= 2048:
			return 12
		case n >= 1024:
			return 11
		case n >= 512:
			return 10
		default:
			return 9
		}
	}

	for {
		code, ok := br.read(codeWidth)
		if !ok {
			break
		}
		switch {
		case code == lzwClearCode:
			resetTable()
			codeWidth = 9
			prev = nil
			continue
		case code == lzwEODCode:
			return out, nil
		}

		var entry []byte
		switch {
		case int(code) < len(table) && table[code] != nil:
			entry = table[code]
		case int(code) == len(table) && prev != nil:
			entry = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, fmt.Errorf("LZWDecode: invalid code %d (table size %d)", code, len(table))
		}

		out = append(out, entry...)

		if prev != nil && len(table) < 4096 {
			newEntry := append(append([]byte{}, prev...), entry[0])
			table = append(table, newEntry)
		}
		prev = entry
		codeWidth = nextWidth()
	}
	return out, nil
}

type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) read(width uint) (uint32, bool) {
	var v uint32
	for i := uint(0); i < width; i++ {
		byteIdx := r.pos / 8
		if byteIdx >= len(r.data) {
			return 0, false
		}
		bitIdx := 7 - uint(r.pos%8)
		bit := (r.data[byteIdx] >> bitIdx) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}
	return v, true
}
