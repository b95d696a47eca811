package filter

import "fmt"

// DecodeASCII85 implements ASCII85Decode: groups of 5 base-85 symbols
// decode to 4 bytes; 'z' is shorthand for four zero bytes; the final
// partial group of n symbols (2..=5) is padded with 'u' (the highest base-85
// digit) to a full group and the output is truncated by (5-n) bytes; the
// stream is terminated by "~>" (or plain EOF, tolerated).
func DecodeASCII85(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*4/5+4)
	var group [5]byte
	n := 0

	flush := func(count int) error {
		if count == 0 {
			return nil
		}
		for i := count; i < 5; i++ {
			group[i] = 'u'
		}
		var v uint32
		for i := 0; i < 5; i++ {
			d := group[i] - '!'
			if group[i] < '!' || group[i] > 'u' {
				return fmt.Errorf("ASCII85Decode: invalid symbol 0x%02x", group[i])
			}
			v = v*85 + uint32(d)
		}
		var buf [4]byte
		buf[0] = byte(v >> 24)
		buf[1] = byte(v >> 16)
		buf[2] = byte(v >> 8)
		buf[3] = byte(v)
		out = append(out, buf[:count-1]...)
		return nil
	}

	i := 0
	for i < len(data) {
		b := data[i]
		if b == '~' {
			break
		}
		if isWhitespace(b) {
			i++
			continue
		}
		if b == 'z' {
			if n != 0 {
				return nil, fmt.Errorf("ASCII85Decode: 'z' inside a group")
			}
			out = append(out, 0, 0, 0, 0)
			i++
			continue
		}
		group[n] = b
		n++
		if n == 5 {
			if err := flush(5); err != nil {
				return nil, err
			}
			n = 0
		}
		i++
	}
	if n > 0 {
		if err := flush(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeASCII85 implements the inverse of DecodeASCII85.
func EncodeASCII85(data []byte) []byte {
	out := make([]byte, 0, len(data)*5/4+2)
	i := 0
	for i < len(data) {
		remaining := len(data) - i
		n := remaining
		if n > 4 {
			n = 4
		}
		var buf [4]byte
		copy(buf[:], data[i:i+n])
		v := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		if n == 4 && v == 0 {
			out = append(out, 'z')
		} else {
			var enc [5]byte
			for j := 4; j >= 0; j-- {
				enc[j] = byte(v%85) + '!'
				v /= 85
			}
			out = append(out, enc[:n+1]...)
		}
		i += n
	}
	out = append(out, '~', '>')
	return out
}
