package pdf

import (
	"fmt"
	"strconv"
	"time"

	"seehuhn.de/go/xmp"
)

// DocumentInfo mirrors the trailer's /Info dictionary.
type DocumentInfo struct {
	Title, Author, Subject, Keywords string
	Creator, Producer               string
	CreationDate, ModDate           time.Time
}

// Info decodes the trailer's /Info dictionary, if present.
func (f *File) Info() (*DocumentInfo, error) {
	infoObj, ok := f.trailer["Info"]
	if !ok {
		return nil, nil
	}
	d, ok := GetDict(f, infoObj)
	if !ok {
		return nil, errf(KindWrongDictionaryType, -1, "/Info does not resolve to a dictionary")
	}
	info := &DocumentInfo{}
	if s, ok := GetString(f, d["Title"]); ok {
		info.Title = decodeTextString(s)
	}
	if s, ok := GetString(f, d["Author"]); ok {
		info.Author = decodeTextString(s)
	}
	if s, ok := GetString(f, d["Subject"]); ok {
		info.Subject = decodeTextString(s)
	}
	if s, ok := GetString(f, d["Keywords"]); ok {
		info.Keywords = decodeTextString(s)
	}
	if s, ok := GetString(f, d["Creator"]); ok {
		info.Creator = decodeTextString(s)
	}
	if s, ok := GetString(f, d["Producer"]); ok {
		info.Producer = decodeTextString(s)
	}
	if s, ok := GetString(f, d["CreationDate"]); ok {
		info.CreationDate, _ = parsePDFDate(decodeTextString(s))
	}
	if s, ok := GetString(f, d["ModDate"]); ok {
		info.ModDate, _ = parsePDFDate(decodeTextString(s))
	}
	return info, nil
}

// decodeTextString interprets a PDF text string: UTF-16BE when it starts
// with the byte-order mark 0xFE 0xFF, otherwise PDFDocEncoding (treated
// here as Latin-1, which covers the common subset well enough for display
// purposes — a full PDFDocEncoding table is out of scope).
func decodeTextString(s String) string {
	if len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF {
		return utf16BEToString(s[2:])
	}
	return latin1ToString(s)
}

func utf16BEToString(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16Decode(units))
}

func utf16Decode(units []uint16) []rune {
	var out []rune
	for i := 0; i < len(units); i++ {
		r := units[i]
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(units) {
			r2 := units[i+1]
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				out = append(out, ((rune(r)-0xD800)<<10|(rune(r2)-0xDC00))+0x10000)
				i++
				continue
			}
		}
		out = append(out, rune(r))
	}
	return out
}

func latin1ToString(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// parsePDFDate parses the PDF date string format D:YYYYMMDDHHmmSSOHH'mm.
// Every component past the year is optional; a missing timezone is treated
// as UTC.
func parsePDFDate(s string) (time.Time, error) {
	if len(s) >= 2 && s[:2] == "D:" {
		s = s[2:]
	}
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("pdf: date string too short: %q", s)
	}
	get := func(start, n int, def int) int {
		if start+n > len(s) {
			return def
		}
		v, err := strconv.Atoi(s[start : start+n])
		if err != nil {
			return def
		}
		return v
	}
	year := get(0, 4, 0)
	month := get(4, 2, 1)
	day := get(6, 2, 1)
	hour := get(8, 2, 0)
	minute := get(10, 2, 0)
	second := get(12, 2, 0)

	loc := time.UTC
	if len(s) > 14 {
		sign := s[14]
		if sign == '+' || sign == '-' {
			tzHour := get(15, 2, 0)
			tzMin := get(18, 2, 0)
			offset := tzHour*3600 + tzMin*60
			if sign == '-' {
				offset = -offset
			}
			loc = time.FixedZone("", offset)
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

// Metadata decodes the catalog's /Metadata XMP packet, if present. A nil
// result with a nil error means the document simply has no XMP metadata,
// which is optional per the PDF specification.
func (f *File) Metadata() (*xmp.Packet, error) {
	cat, err := f.Catalog()
	if err != nil {
		return nil, err
	}
	mdObj, ok := cat["Metadata"]
	if !ok {
		return nil, nil
	}
	st, ok := GetStream(f, mdObj)
	if !ok {
		return nil, nil
	}
	raw, err := f.DecodeStream(st)
	if err != nil {
		return nil, wrapf(KindOther, -1, err, "failed to decode /Metadata stream")
	}
	pkt, err := xmp.Read(raw)
	if err != nil {
		f.opts.logger().Warn("failed to parse XMP metadata packet", "err", err)
		return nil, nil
	}
	return pkt, nil
}
