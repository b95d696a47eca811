// Package cff decodes Compact Font Format programs — bare CFF tables as
// found in a PDF /FontFile3 stream, or the CFF table extracted from an
// OpenType/CFF ("OTTO") wrapper — into font.Font values.
package cff

import "fmt"

// index is a CFF INDEX: an ordered sequence of binary blobs, the basic
// container CFF uses for Name, TopDict, String, GlobalSubr, CharStrings
// and local Subrs data.
type index [][]byte

// readIndex reads one INDEX structure starting at data[pos] and returns
// the blobs plus the offset of the first byte past the INDEX.
func readIndex(data []byte, pos int) (index, int, error) {
	if pos+2 > len(data) {
		return nil, 0, fmt.Errorf("cff: truncated INDEX count")
	}
	count := int(data[pos])<<8 | int(data[pos+1])
	pos += 2
	if count == 0 {
		return nil, pos, nil
	}

	if pos >= len(data) {
		return nil, 0, fmt.Errorf("cff: truncated INDEX")
	}
	offSize := int(data[pos])
	pos++
	if offSize < 1 || offSize > 4 {
		return nil, 0, fmt.Errorf("cff: invalid INDEX offSize %d", offSize)
	}

	offsets := make([]uint32, count+1)
	for i := range offsets {
		if pos+offSize > len(data) {
			return nil, 0, fmt.Errorf("cff: truncated INDEX offsets")
		}
		var v uint32
		for j := 0; j < offSize; j++ {
			v = v<<8 | uint32(data[pos+j])
		}
		offsets[i] = v
		pos += offSize
	}
	dataStart := pos - 1 // offsets are 1-based from the byte after the offset array
	res := make(index, count)
	for i := 0; i < count; i++ {
		lo, hi := dataStart+int(offsets[i]), dataStart+int(offsets[i+1])
		if lo < 0 || hi < lo || hi > len(data) {
			return nil, 0, fmt.Errorf("cff: invalid INDEX entry %d", i)
		}
		res[i] = data[lo:hi]
	}
	return res, dataStart + int(offsets[count]), nil
}
