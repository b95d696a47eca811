package pdf

import (
	"log/slog"
)

// XRefEntryKind tags the variants of XRefEntry.
type XRefEntryKind int

const (
	XRefFree XRefEntryKind = iota
	XRefRaw
	XRefStream
	XRefPromised
	XRefInvalid
)

// XRefEntry records where one object's current revision lives.
type XRefEntry struct {
	Kind XRefEntryKind
	Gen  uint16

	// Free
	NextFree uint32

	// Raw
	Offset int64

	// Stream
	Container uint32
	Index     int
}

// XRefTable maps object number to its current XRefEntry.
type XRefTable struct {
	entries map[uint32]XRefEntry
}

func newXRefTable() *XRefTable {
	return &XRefTable{entries: make(map[uint32]XRefEntry)}
}

// Lookup returns the entry for num, or XRefInvalid if unknown.
func (t *XRefTable) Lookup(num uint32) XRefEntry {
	if e, ok := t.entries[num]; ok {
		return e
	}
	return XRefEntry{Kind: XRefInvalid}
}

// mergeEntry installs e for num unless the entry already held for num has
// a generation at least as high: the higher generation wins, and since xref
// chains are walked newest-first via /Prev, between equal generations the
// newest section's entry wins.
func (t *XRefTable) mergeEntry(num uint32, e XRefEntry) {
	if old, exists := t.entries[num]; exists && old.Gen >= e.Gen {
		return
	}
	t.entries[num] = e
}

// xrefParser walks the chain of xref sections starting at the trailer's
// startxref offset, following /Prev, guarding against loops with a
// seen-set of visited byte offsets.
type xrefParser struct {
	buf     []byte
	opts    *ParseOptions
	log     *slog.Logger
	table   *XRefTable
	trailer Dict
	seen    map[int64]bool
}

// LocateStartOffset scans the first 1 KB of buf for the "%PDF-" header and
// returns the version declared there.
func LocateStartOffset(buf []byte) (Version, bool) {
	window := buf
	if len(window) > 1024 {
		window = window[:1024]
	}
	idx := indexOf(window, []byte("%PDF-"))
	if idx < 0 {
		return Version{}, false
	}
	rest := window[idx+len("%PDF-"):]
	if len(rest) < 3 || rest[1] != '.' {
		return Version{}, false
	}
	major := int(rest[0] - '0')
	minor := int(rest[2] - '0')
	return Version{major, minor}, true
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}

// LocateXRefOffset reverse-scans the file tail for "startxref" and returns
// the offset it points to.
func LocateXRefOffset(buf []byte) (int64, error) {
	pos, ok := SeekSubstrBack(buf, "startxref", 1024)
	if !ok {
		return 0, errf(KindParse, int64(len(buf)), "could not locate startxref")
	}
	lx := NewLexer(buf)
	lx.Seek(pos + int64(len("startxref")))
	tok, err := lx.Next()
	if err != nil {
		return 0, err
	}
	if tok.kind != tokInteger {
		return 0, errf(KindParse, tok.pos, "startxref not followed by an integer")
	}
	return tok.i, nil
}

// readXRefChain builds the full XRefTable and merged trailer dict by
// walking /Prev links from startOffset.
func readXRefChain(buf []byte, startOffset int64, opts *ParseOptions) (*XRefTable, Dict, error) {
	xp := &xrefParser{
		buf:     buf,
		opts:    opts,
		log:     opts.logger(),
		table:   newXRefTable(),
		trailer: Dict{},
		seen:    map[int64]bool{},
	}
	next := startOffset
	for next >= 0 {
		if xp.seen[next] {
			return nil, nil, errf(KindOther, next, "xref offsets loop")
		}
		xp.seen[next] = true
		prev, err := xp.readSection(next)
		if err != nil {
			if opts.AllowXRefError {
				xp.log.Warn("corrupt xref section, stopping chain walk", "offset", next, "err", err)
				break
			}
			return nil, nil, err
		}
		if prev < 0 {
			break
		}
		next = prev
	}
	if len(xp.table.entries) == 0 {
		rebuilt, terr := rebuildXRefByScanning(buf)
		if terr != nil {
			return nil, nil, terr
		}
		xp.table = rebuilt
	}
	return xp.table, xp.trailer, nil
}

// readSection parses one xref section (classic or stream) at offset and
// returns the /Prev offset, or -1 if there is none.
func (xp *xrefParser) readSection(offset int64) (int64, error) {
	lx := NewLexer(xp.buf)
	lx.Seek(offset)
	save := lx.Pos()
	tok, err := lx.Next()
	if err != nil {
		return -1, err
	}
	if tok.kind == tokKeyword && tok.kw == "xref" {
		return xp.readClassicSection(lx)
	}
	lx.Seek(save)
	return xp.readStreamSection(lx)
}

func (xp *xrefParser) readClassicSection(lx *Lexer) (int64, error) {
	for {
		save := lx.Pos()
		tok, err := lx.Next()
		if err != nil {
			return -1, err
		}
		if tok.kind == tokKeyword && tok.kw == "trailer" {
			p := NewParser(lx, nil, xp.opts)
			obj, err := p.ParseObject()
			if err != nil {
				return -1, err
			}
			d, ok := obj.(Dict)
			if !ok {
				return -1, errf(KindWrongDictionaryType, save, "trailer is not a dictionary")
			}
			xp.mergeTrailer(d)
			if prevObj, ok := d["Prev"]; ok {
				if iv, ok := prevObj.(Integer); ok {
					return int64(iv), nil
				}
			}
			if xrefStmObj, ok := d["XRefStm"]; ok {
				if iv, ok := xrefStmObj.(Integer); ok {
					// Hybrid-reference file: merge the cross-reference
					// stream too, but it has no further /Prev of its own
					// that we haven't already captured via this classic
					// section's /Prev.
					lx2 := NewLexer(xp.buf)
					lx2.Seek(int64(iv))
					if _, err := xp.readStreamSection(lx2); err != nil {
						xp.log.Warn("failed to read hybrid XRefStm", "err", err)
					}
				}
			}
			if prevObj, ok := d["Prev"]; ok {
				if iv, ok := prevObj.(Integer); ok {
					return int64(iv), nil
				}
			}
			return -1, nil
		}
		if tok.kind != tokInteger {
			return -1, errf(KindUnexpectedLexeme, tok.pos, "expected subsection start or 'trailer'")
		}
		startNum := tok.i
		tok2, err := lx.Next()
		if err != nil {
			return -1, err
		}
		if tok2.kind != tokInteger {
			return -1, errf(KindUnexpectedLexeme, tok2.pos, "expected subsection count")
		}
		count := tok2.i
		for i := int64(0); i < count; i++ {
			entry, err := xp.readClassicEntry(lx)
			if err != nil {
				return -1, err
			}
			xp.table.mergeEntry(uint32(startNum+i), entry)
		}
	}
}

func (xp *xrefParser) readClassicEntry(lx *Lexer) (XRefEntry, error) {
	t1, err := lx.Next()
	if err != nil {
		return XRefEntry{}, err
	}
	if t1.kind != tokInteger {
		return XRefEntry{}, errf(KindUnexpectedLexeme, t1.pos, "expected xref entry offset/next-free")
	}
	t2, err := lx.Next()
	if err != nil {
		return XRefEntry{}, err
	}
	if t2.kind != tokInteger {
		return XRefEntry{}, errf(KindUnexpectedLexeme, t2.pos, "expected xref entry generation")
	}
	t3, err := lx.Next()
	if err != nil {
		return XRefEntry{}, err
	}
	if t3.kind != tokKeyword || (t3.kw != "n" && t3.kw != "f") {
		return XRefEntry{}, errf(KindUnexpectedLexeme, t3.pos, "expected 'n' or 'f'")
	}
	if t3.kw == "f" {
		return XRefEntry{Kind: XRefFree, NextFree: uint32(t1.i), Gen: uint16(t2.i)}, nil
	}
	return XRefEntry{Kind: XRefRaw, Offset: t1.i, Gen: uint16(t2.i)}, nil
}

func (xp *xrefParser) mergeTrailer(d Dict) {
	for k, v := range d {
		if _, exists := xp.trailer[k]; !exists {
			xp.trailer[k] = v
		}
	}
}

// readStreamSection parses a cross-reference stream object: "N G obj <<...
// /Type /XRef ...>> stream ... endstream".
func (xp *xrefParser) readStreamSection(lx *Lexer) (int64, error) {
	p := NewParser(lx, constLengthResolver{}, xp.opts)
	_, obj, err := p.ParseIndirectObject()
	if err != nil {
		return -1, err
	}
	st, ok := obj.(*Stream)
	if !ok {
		return -1, errf(KindXRefStreamType, lx.Pos(), "xref entry is not a stream")
	}
	if tname, _ := st.Dict["Type"].(Name); tname != "XRef" {
		return -1, errf(KindXRefStreamType, lx.Pos(), "stream /Type is not /XRef")
	}
	xp.mergeTrailer(st.Dict)

	wArr, ok := st.Dict["W"].(Array)
	if !ok || len(wArr) != 3 {
		return -1, errf(KindMissingEntry, lx.Pos(), "xref stream missing valid /W")
	}
	w := [3]int{}
	for i := 0; i < 3; i++ {
		iv, ok := wArr[i].(Integer)
		if !ok {
			return -1, errf(KindUnexpectedPrimitive, lx.Pos(), "/W entries must be integers")
		}
		w[i] = int(iv)
	}

	size, _ := st.Dict["Size"].(Integer)
	var index []int64
	if idxArr, ok := st.Dict["Index"].(Array); ok {
		for _, o := range idxArr {
			if iv, ok := o.(Integer); ok {
				index = append(index, int64(iv))
			}
		}
	} else {
		index = []int64{0, int64(size)}
	}

	raw := xp.buf[st.Offset : st.Offset+st.Length]
	data, err := decodeStreamBytes(raw, st.Dict, xp.opts)
	if err != nil {
		return -1, err
	}

	rowWidth := w[0] + w[1] + w[2]
	if rowWidth == 0 {
		return -1, errf(KindParse, lx.Pos(), "xref stream has zero-width rows")
	}
	rowPos := 0
	for i := 0; i+1 < len(index); i += 2 {
		startNum := index[i]
		count := index[i+1]
		for j := int64(0); j < count; j++ {
			if (rowPos+1)*rowWidth > len(data) {
				break
			}
			row := data[rowPos*rowWidth : (rowPos+1)*rowWidth]
			rowPos++
			typ := int64(1)
			if w[0] > 0 {
				typ = beInt(row[:w[0]])
			}
			f2 := beInt(row[w[0] : w[0]+w[1]])
			f3 := beInt(row[w[0]+w[1] : rowWidth])
			num := uint32(startNum + j)
			switch typ {
			case 0:
				xp.table.mergeEntry(num, XRefEntry{Kind: XRefFree, NextFree: uint32(f2), Gen: uint16(f3)})
			case 1:
				xp.table.mergeEntry(num, XRefEntry{Kind: XRefRaw, Offset: f2, Gen: uint16(f3)})
			case 2:
				xp.table.mergeEntry(num, XRefEntry{Kind: XRefStream, Container: uint32(f2), Index: int(f3)})
			default:
				xp.table.mergeEntry(num, XRefEntry{Kind: XRefInvalid})
			}
		}
	}

	if prevObj, ok := st.Dict["Prev"]; ok {
		if iv, ok := prevObj.(Integer); ok {
			return int64(iv), nil
		}
	}
	return -1, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// constLengthResolver rejects indirect /Length inside the xref stream
// itself: per spec the xref stream's own /Length must not be indirect,
// since resolving it would require the very xref table being built.
type constLengthResolver struct{}

func (constLengthResolver) ResolveLength(Reference) (int64, error) {
	return 0, errf(KindReference, -1, "xref stream /Length must not be an indirect reference")
}

// rebuildXRefByScanning linear-scans buf for "N G obj" patterns to
// reconstruct an approximate xref table when the declared chain is
// unreadable. This is the tolerant-mode recovery path.
func rebuildXRefByScanning(buf []byte) (*XRefTable, error) {
	t := newXRefTable()
	lx := NewLexer(buf)
	pos := int64(0)
	for pos < int64(len(buf)) {
		idx := indexOf(buf[pos:], []byte(" obj"))
		if idx < 0 {
			break
		}
		objKwPos := pos + int64(idx)
		// Walk backward from objKwPos to find "N G" before it.
		back := objKwPos
		for back > 0 && isSpace(buf[back-1]) {
			back--
		}
		genEnd := back
		for back > 0 && buf[back-1] >= '0' && buf[back-1] <= '9' {
			back--
		}
		genStart := back
		for back > 0 && isSpace(buf[back-1]) {
			back--
		}
		numEnd := back
		for back > 0 && buf[back-1] >= '0' && buf[back-1] <= '9' {
			back--
		}
		numStart := back
		if numStart < numEnd && genStart < genEnd {
			lx.Seek(numStart)
			num, _ := parseIntBytes(buf[numStart:numEnd])
			gen, _ := parseIntBytes(buf[genStart:genEnd])
			if num >= 0 && num <= MaxObjectNumber {
				t.entries[uint32(num)] = XRefEntry{Kind: XRefRaw, Offset: numStart, Gen: uint16(gen)}
			}
		}
		pos = objKwPos + 4
	}
	if len(t.entries) == 0 {
		return nil, errf(KindOther, 0, "could not recover any objects by scanning")
	}
	return t, nil
}
