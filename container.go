package pdf

import (
	"sync"
)

const maxResolveDepth = 16

// Getter is the capability higher layers need from the object graph: turn
// a Reference into its resolved Native value. File is the only production
// implementation; tests can substitute a map-backed stub.
type Getter interface {
	Resolve(obj Object) (Native, error)
	GetVersion() Version
}

// Reader owns the raw byte buffer a File was opened from, plus the
// decryption state needed to recover plaintext strings and stream bodies.
// Splitting this out from File mirrors the teacher's separation between the
// byte-owning layer and the object-cache layer, and lets Stream values hold
// a back-reference without the whole File needing exporting.
type Reader struct {
	buf     []byte
	encrypt *EncryptInfo
}

func (r *Reader) rawStreamBytes(s *Stream) []byte {
	return r.buf[s.Offset : s.Offset+s.Length]
}

// File represents one open PDF document: the byte buffer, the xref table,
// the object cache, and (if the document is encrypted) the decryption
// state.
type File struct {
	reader  *Reader
	xref    *XRefTable
	trailer Dict
	version Version
	opts    *ParseOptions

	mu    sync.RWMutex
	cache map[PlainRef]Native

	objStmCache map[uint32]*objStmContents
}

type objStmContents struct {
	offsets []int64
	data    []byte
}

// Open parses buf as a PDF document: locates the header version, walks the
// xref chain from the trailer's startxref, and (if the trailer names an
// /Encrypt dictionary) derives the file encryption key from the supplied
// password.
func Open(buf []byte, opts ...Option) (*File, error) {
	o := NewParseOptions(opts...)
	version, ok := LocateStartOffset(buf)
	if !ok {
		version = V1_7
		o.logger().Warn("could not locate %PDF- header, assuming 1.7")
	}

	startOffset, err := LocateXRefOffset(buf)
	if err != nil {
		if !o.AllowXRefError {
			return nil, err
		}
		rebuilt, rerr := rebuildXRefByScanning(buf)
		if rerr != nil {
			return nil, rerr
		}
		f := &File{
			reader:      &Reader{buf: buf},
			xref:        rebuilt,
			trailer:     Dict{},
			version:     version,
			opts:        o,
			cache:       map[PlainRef]Native{},
			objStmCache: map[uint32]*objStmContents{},
		}
		return f, nil
	}

	xref, trailer, err := readXRefChain(buf, startOffset, o)
	if err != nil {
		return nil, err
	}

	f := &File{
		reader:      &Reader{buf: buf},
		xref:        xref,
		trailer:     trailer,
		version:     version,
		opts:        o,
		cache:       map[PlainRef]Native{},
		objStmCache: map[uint32]*objStmContents{},
	}

	if encObj, ok := trailer["Encrypt"]; ok {
		if err := f.setupEncryption(encObj); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func (f *File) setupEncryption(encObj Object) error {
	var encDict Dict
	switch v := encObj.(type) {
	case Dict:
		encDict = v
	case Reference:
		// The /Encrypt dictionary itself is never encrypted, so resolve it
		// without going through the normal (decrypting) resolve path.
		raw, err := f.resolveRaw(v.PlainRef())
		if err != nil {
			return err
		}
		d, ok := raw.(Dict)
		if !ok {
			return errf(KindWrongDictionaryType, -1, "/Encrypt does not resolve to a dictionary")
		}
		encDict = d
	default:
		return errf(KindUnexpectedPrimitive, -1, "/Encrypt has unexpected type %T", v)
	}

	var id0 []byte
	if idArr, ok := f.trailer["ID"].(Array); ok && len(idArr) > 0 {
		if s, ok := idArr[0].(String); ok {
			id0 = []byte(s)
		}
	}
	info, err := ParseEncryptDict(encDict, id0)
	if err != nil {
		return err
	}
	key, err := info.Authenticate(f.opts.Password)
	if err != nil {
		return err
	}
	info.FileKey = key
	f.reader.encrypt = info
	return nil
}

// GetVersion implements Getter.
func (f *File) GetVersion() Version { return f.version }

// Trailer returns the merged trailer dictionary.
func (f *File) Trailer() Dict { return f.trailer }

// ResolveLength implements lengthResolver for the object parser: resolving
// an indirect /Length must not itself require decrypting a stream (the
// length is always a plain Integer object).
func (f *File) ResolveLength(ref Reference) (int64, error) {
	v, err := f.Resolve(ref)
	if err != nil {
		return 0, err
	}
	iv, ok := v.(Integer)
	if !ok {
		return 0, errf(KindUnexpectedPrimitive, -1, "/Length does not resolve to an integer")
	}
	return int64(iv), nil
}

// Resolve dereferences obj if it is a Reference and returns the Native
// value the referenced indirect object holds, with its strings decrypted.
// Direct Native values pass through unchanged. Results are cached. Only one
// level of reference is followed: an indirect object whose body is itself
// a reference is reported as a KindInvalid error.
func (f *File) Resolve(obj Object) (Native, error) {
	return f.resolve(obj, maxResolveDepth)
}

func (f *File) resolve(obj Object, depth int) (Native, error) {
	ref, isRef := obj.(Reference)
	if !isRef {
		n, ok := obj.(Native)
		if !ok {
			return nil, errf(KindInvalid, -1, "object is neither Native nor Reference")
		}
		return n, nil
	}
	if depth <= 0 {
		return nil, errf(KindMaxDepth, -1, "exceeded max reference depth %d resolving %s", maxResolveDepth, ref)
	}

	pr := ref.PlainRef()
	f.mu.RLock()
	if v, ok := f.cache[pr]; ok {
		f.mu.RUnlock()
		return v, nil
	}
	f.mu.RUnlock()

	entry := f.xref.Lookup(pr.Num)
	var decrypted Native
	var err error
	switch entry.Kind {
	case XRefRaw:
		raw, rerr := f.resolveRawObject(pr, entry.Offset)
		if rerr != nil {
			return nil, rerr
		}
		decrypted, err = f.decryptNative(raw, pr)
	case XRefStream:
		// Objects inside a compressed object stream are never separately
		// encrypted: the container stream's body was already decrypted as
		// a whole before being filter-decoded and split into entries.
		decrypted, err = f.resolveCompressedObject(entry.Container, entry.Index)
	case XRefFree:
		return nil, errf(KindFreeObject, -1, "object %d is free", pr.Num)
	default:
		return nil, errf(KindNullRef, -1, "object %d has no xref entry", pr.Num)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[pr] = decrypted
	f.mu.Unlock()
	return decrypted, nil
}

// resolveRaw resolves pr without applying decryption, used only for the
// /Encrypt dictionary itself.
func (f *File) resolveRaw(pr PlainRef) (Native, error) {
	entry := f.xref.Lookup(pr.Num)
	if entry.Kind != XRefRaw {
		return nil, errf(KindReference, -1, "/Encrypt must be a directly-offset object")
	}
	return f.resolveRawObject(pr, entry.Offset)
}

func (f *File) resolveRawObject(pr PlainRef, offset int64) (Native, error) {
	lx := NewLexer(f.reader.buf)
	lx.Seek(offset)
	p := NewParser(lx, f, f.opts)
	gotRef, obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if gotRef.Num != pr.Num {
		f.opts.logger().Warn("xref offset object number mismatch", "expected", pr.Num, "got", gotRef.Num)
	}
	n, ok := obj.(Native)
	if !ok {
		return nil, errf(KindInvalid, offset, "parsed indirect object is not a Native value")
	}
	if s, ok := n.(*Stream); ok {
		s.R = f.reader
		s.Ref = pr
	}
	return n, nil
}

func (f *File) resolveCompressedObject(container uint32, index int) (Native, error) {
	contents, err := f.loadObjStm(container)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(contents.offsets) {
		return nil, errf(KindObjStmOutOfBounds, -1, "object stream index %d out of bounds (have %d)", index, len(contents.offsets))
	}
	lx := NewLexer(contents.data)
	lx.Seek(contents.offsets[index])
	p := NewParser(lx, f, f.opts)
	obj, err := p.ParseObject()
	if err != nil {
		return nil, err
	}
	n, ok := obj.(Native)
	if !ok {
		return nil, errf(KindInvalid, -1, "object stream entry is not a Native value")
	}
	return n, nil
}

func (f *File) loadObjStm(container uint32) (*objStmContents, error) {
	f.mu.RLock()
	if c, ok := f.objStmCache[container]; ok {
		f.mu.RUnlock()
		return c, nil
	}
	f.mu.RUnlock()

	stmNative, err := f.resolve(Reference{Num: container}, maxResolveDepth)
	if err != nil {
		return nil, err
	}
	stm, ok := stmNative.(*Stream)
	if !ok {
		return nil, errf(KindWrongDictionaryType, -1, "object stream container %d is not a stream", container)
	}
	decoded, err := f.DecodeStream(stm)
	if err != nil {
		return nil, err
	}
	n, _ := stm.Dict["N"].(Integer)
	first, _ := stm.Dict["First"].(Integer)

	lx := NewLexer(decoded)
	offsets := make([]int64, 0, n)
	for i := int64(0); i < int64(n); i++ {
		t1, err := lx.Next()
		if err != nil || t1.kind != tokInteger {
			return nil, errf(KindParse, -1, "malformed object stream header entry %d", i)
		}
		t2, err := lx.Next()
		if err != nil || t2.kind != tokInteger {
			return nil, errf(KindParse, -1, "malformed object stream header entry %d", i)
		}
		offsets = append(offsets, int64(first)+t2.i)
	}
	c := &objStmContents{offsets: offsets, data: decoded}
	f.mu.Lock()
	f.objStmCache[container] = c
	f.mu.Unlock()
	return c, nil
}

// DecodeStream returns s's fully decoded bytes: decryption (if the
// document is encrypted and s did not come from an object stream, whose
// contents are already plaintext after the container itself was
// decrypted) followed by the filter chain.
func (f *File) DecodeStream(s *Stream) ([]byte, error) {
	raw := s.R.rawStreamBytes(s)
	if s.R.encrypt != nil {
		dec, err := s.R.encrypt.DecryptBytes(raw, s.Ref.Num, s.Ref.Gen)
		if err != nil {
			return nil, err
		}
		raw = dec
	}
	return decodeStreamBytes(raw, s.Dict, f.opts)
}

// decryptNative decrypts the strings in n with pr's per-object key,
// descending into dictionaries, arrays and a stream's dictionary. A
// stream's body is not decrypted here; DecodeStream decrypts it each time
// it is called, using the Ref recorded on the *Stream.
func (f *File) decryptNative(n Native, pr PlainRef) (Native, error) {
	if f.reader.encrypt == nil {
		return n, nil
	}
	switch v := n.(type) {
	case String:
		dec, err := f.reader.encrypt.DecryptBytes([]byte(v), pr.Num, pr.Gen)
		if err != nil {
			return nil, err
		}
		return String(dec), nil
	case Dict:
		return f.decryptDict(v, pr)
	case Array:
		return f.decryptArray(v, pr)
	case *Stream:
		nd, err := f.decryptDict(v.Dict, pr)
		if err != nil {
			return nil, err
		}
		v.Dict = nd
		return v, nil
	default:
		return n, nil
	}
}

func (f *File) decryptDict(d Dict, pr PlainRef) (Dict, error) {
	out := make(Dict, len(d))
	for k, val := range d {
		switch vv := val.(type) {
		case String:
			dec, err := f.reader.encrypt.DecryptBytes([]byte(vv), pr.Num, pr.Gen)
			if err != nil {
				return nil, err
			}
			out[k] = String(dec)
		case Dict:
			nd, err := f.decryptDict(vv, pr)
			if err != nil {
				return nil, err
			}
			out[k] = nd
		case Array:
			na, err := f.decryptArray(vv, pr)
			if err != nil {
				return nil, err
			}
			out[k] = na
		default:
			out[k] = val
		}
	}
	return out, nil
}

func (f *File) decryptArray(a Array, pr PlainRef) (Array, error) {
	out := make(Array, len(a))
	for i, val := range a {
		switch vv := val.(type) {
		case String:
			dec, err := f.reader.encrypt.DecryptBytes([]byte(vv), pr.Num, pr.Gen)
			if err != nil {
				return nil, err
			}
			out[i] = String(dec)
		case Dict:
			nd, err := f.decryptDict(vv, pr)
			if err != nil {
				return nil, err
			}
			out[i] = nd
		case Array:
			na, err := f.decryptArray(vv, pr)
			if err != nil {
				return nil, err
			}
			out[i] = na
		default:
			out[i] = val
		}
	}
	return out, nil
}
