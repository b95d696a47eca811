package filter

// DecodeRunLength implements RunLengthDecode's PackBits-style encoding: a
// length byte 0-127 means "copy the next length+1 literal bytes", a length
// byte 129-255 means "repeat the following byte (257-length) times", and
// 128 is the EOD marker.
func DecodeRunLength(data []byte) []byte {
	var out []byte
	i := 0
	for i < len(data) {
		length := data[i]
		i++
		switch {
		case length == 128:
			return out
		case length < 128:
			n := int(length) + 1
			end := i + n
			if end > len(data) {
				end = len(data)
			}
			out = append(out, data[i:end]...)
			i = end
		default:
			if i >= len(data) {
				return out
			}
			n := 257 - int(length)
			b := data[i]
			i++
			for k := 0; k < n; k++ {
				out = append(out, b)
			}
		}
	}
	return out
}

// EncodeRunLength is a minimal (non-optimal) inverse of DecodeRunLength:
// every byte is emitted as its own one-byte literal run.
func EncodeRunLength(data []byte) []byte {
	out := make([]byte, 0, len(data)*2+1)
	for _, b := range data {
		out = append(out, 0, b)
	}
	out = append(out, 128)
	return out
}
