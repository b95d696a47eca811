package pdf

import (
	"log/slog"
)

// maxParseDepth bounds recursive descent through nested arrays/dicts, per
// the object-parser design: hostile input cannot force unbounded recursion.
const maxParseDepth = 20

// Parser builds Primitive values from Lexer tokens. It needs a Resolver so
// that a stream's /Length, when given as an indirect reference, can be
// resolved before the raw stream body is read.
type Parser struct {
	lx       *Lexer
	resolver lengthResolver
	opts     *ParseOptions
	log      *slog.Logger
}

// lengthResolver is the minimal capability the object parser needs from the
// xref/object layer: resolving a reference to an Integer. File implements
// it; tests can supply a stub.
type lengthResolver interface {
	ResolveLength(ref Reference) (int64, error)
}

// NewParser creates a Parser reading from lx. resolver may be nil if the
// input is known not to contain indirect /Length references (e.g. when
// parsing a standalone primitive in a test).
func NewParser(lx *Lexer, resolver lengthResolver, opts *ParseOptions) *Parser {
	if opts == nil {
		opts = DefaultParseOptions()
	}
	return &Parser{lx: lx, resolver: resolver, opts: opts, log: opts.logger()}
}

// ParseObject parses one Primitive starting at the lexer's current
// position, not consuming a trailing indirect-object wrapper.
func (p *Parser) ParseObject() (Object, error) {
	return p.parseObject(0)
}

func (p *Parser) parseObject(depth int) (Object, error) {
	if depth > maxParseDepth {
		return nil, errf(KindMaxDepth, p.lx.Pos(), "exceeded max object nesting depth %d", maxParseDepth)
	}
	tok, err := p.lx.Next()
	if err != nil {
		return nil, err
	}
	switch tok.kind {
	case tokEOF:
		return nil, errf(KindEOF, tok.pos, "unexpected end of input while parsing object")
	case tokInteger:
		return p.finishMaybeReference(tok, depth)
	case tokReal:
		return Real(tok.f), nil
	case tokName:
		return tok.name, nil
	case tokString:
		return tok.str, nil
	case tokHexString:
		return tok.str, nil
	case tokArrayStart:
		return p.parseArray(depth)
	case tokDictStart:
		return p.parseDictOrStream(depth)
	case tokKeyword:
		switch tok.kw {
		case "true":
			return Boolean(true), nil
		case "false":
			return Boolean(false), nil
		case "null":
			return Null{}, nil
		default:
			if p.opts.Tolerant {
				p.log.Warn("unexpected keyword while parsing object, treating as null", "keyword", tok.kw, "pos", tok.pos)
				return Null{}, nil
			}
			return nil, errf(KindUnexpectedLexeme, tok.pos, "unexpected keyword %q", tok.kw)
		}
	default:
		return nil, errf(KindUnexpectedLexeme, tok.pos, "unexpected token")
	}
}

// finishMaybeReference implements the three-token speculative lookahead
// that disambiguates a bare integer from an "N G R" reference. The
// "N G obj" wrapper is not handled here; ParseIndirectObject reads it.
func (p *Parser) finishMaybeReference(first token, depth int) (Object, error) {
	save := p.lx.Pos()
	tok2, err := p.lx.Next()
	if err != nil || tok2.kind != tokInteger || tok2.i < 0 {
		p.lx.Seek(save)
		return Integer(first.i), nil
	}
	save2 := p.lx.Pos()
	tok3, err := p.lx.Next()
	if err != nil || tok3.kind != tokKeyword || tok3.kw != "R" {
		p.lx.Seek(save2)
		p.lx.Seek(save)
		return Integer(first.i), nil
	}
	if first.i < 0 || first.i > MaxObjectNumber {
		return nil, errf(KindParse, first.pos, "object number %d out of range", first.i)
	}
	return Reference{Num: uint32(first.i), Gen: uint16(tok2.i)}, nil
}

func (p *Parser) parseArray(depth int) (Object, error) {
	var arr Array
	for {
		save := p.lx.Pos()
		tok, err := p.lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokArrayEnd {
			return arr, nil
		}
		if tok.kind == tokEOF {
			return nil, errf(KindEOF, tok.pos, "unterminated array")
		}
		p.lx.Seek(save)
		obj, err := p.parseObject(depth + 1)
		if err != nil {
			if p.opts.Tolerant {
				p.log.Warn("skipping malformed array element", "err", err)
				// Advance at least one token to guarantee progress.
				if _, nerr := p.lx.Next(); nerr != nil {
					return nil, nerr
				}
				continue
			}
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDictOrStream(depth int) (Object, error) {
	d := Dict{}
	for {
		tok, err := p.lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokDictEnd {
			break
		}
		if tok.kind != tokName {
			if p.opts.Tolerant {
				p.log.Warn("expected dictionary key, skipping token", "pos", tok.pos)
				continue
			}
			return nil, errf(KindUnexpectedLexeme, tok.pos, "expected dictionary key name")
		}
		val, err := p.parseObject(depth + 1)
		if err != nil {
			return nil, err
		}
		d[tok.name] = val
	}

	// Look for a following "stream" keyword without consuming non-stream
	// trailing tokens on failure.
	save := p.lx.Pos()
	tok, err := p.lx.Next()
	if err != nil {
		return nil, err
	}
	if tok.kind != tokKeyword || tok.kw != "stream" {
		p.lx.Seek(save)
		return d, nil
	}

	return p.parseStreamBody(d)
}

func (p *Parser) parseStreamBody(d Dict) (Object, error) {
	// One end-of-line follows the "stream" keyword: LF or CRLF, and a lone
	// CR is accepted as well.
	b0, ok := p.lx.byteAt(p.lx.Pos())
	switch {
	case ok && b0 == '\n':
		p.lx.Seek(p.lx.Pos() + 1)
	case ok && b0 == '\r':
		b1, ok1 := p.lx.byteAt(p.lx.Pos() + 1)
		if ok1 && b1 == '\n' {
			p.lx.Seek(p.lx.Pos() + 2)
		} else {
			p.lx.Seek(p.lx.Pos() + 1)
		}
	default:
		return nil, errf(KindUnexpectedLexeme, p.lx.Pos(), "expected end-of-line after 'stream' keyword")
	}

	length, err := p.streamLength(d)
	if err != nil {
		return nil, err
	}
	bodyStart := p.lx.Pos()
	bodyEnd := bodyStart + length
	if bodyEnd < bodyStart || bodyEnd > int64(len(p.lx.buf)) {
		return nil, errf(KindContentReadPastBoundary, bodyStart, "stream body of length %d runs past end of file", length)
	}
	p.lx.Seek(bodyEnd)

	// Tolerate whitespace before "endstream".
	save := p.lx.Pos()
	tok, err := p.lx.Next()
	if err != nil {
		return nil, err
	}
	if tok.kind != tokKeyword || tok.kw != "endstream" {
		if !p.opts.AllowMissingEndobj {
			return nil, errf(KindUnexpectedLexeme, save, "expected 'endstream' keyword")
		}
		p.log.Warn("missing endstream keyword, tolerating", "pos", save)
		p.lx.Seek(save)
	}

	return &Stream{Dict: d, Offset: bodyStart, Length: length}, nil
}

func (p *Parser) streamLength(d Dict) (int64, error) {
	lenObj, ok := d["Length"]
	if !ok {
		return 0, errf(KindMissingEntry, p.lx.Pos(), "stream dictionary missing /Length")
	}
	switch v := lenObj.(type) {
	case Integer:
		return int64(v), nil
	case Reference:
		if p.resolver == nil {
			return 0, errf(KindReference, p.lx.Pos(), "cannot resolve indirect /Length without a resolver")
		}
		return p.resolver.ResolveLength(v)
	default:
		return 0, errf(KindUnexpectedPrimitive, p.lx.Pos(), "/Length has unexpected type %T", v)
	}
}

// ParseIndirectObject parses the "N G obj ... endobj" wrapper starting at
// the lexer's current position and returns the interior object.
func (p *Parser) ParseIndirectObject() (PlainRef, Object, error) {
	tok1, err := p.lx.Next()
	if err != nil {
		return PlainRef{}, nil, err
	}
	if tok1.kind != tokInteger {
		return PlainRef{}, nil, errf(KindUnexpectedLexeme, tok1.pos, "expected object number")
	}
	tok2, err := p.lx.Next()
	if err != nil {
		return PlainRef{}, nil, err
	}
	if tok2.kind != tokInteger {
		return PlainRef{}, nil, errf(KindUnexpectedLexeme, tok2.pos, "expected generation number")
	}
	tok3, err := p.lx.Next()
	if err != nil {
		return PlainRef{}, nil, err
	}
	if tok3.kind != tokKeyword || tok3.kw != "obj" {
		return PlainRef{}, nil, errf(KindUnexpectedLexeme, tok3.pos, "expected 'obj' keyword")
	}

	obj, err := p.parseObject(0)
	if err != nil {
		return PlainRef{}, nil, err
	}

	save := p.lx.Pos()
	tok4, err := p.lx.Next()
	if err != nil {
		return PlainRef{}, nil, err
	}
	if tok4.kind != tokKeyword || tok4.kw != "endobj" {
		if !p.opts.AllowMissingEndobj {
			return PlainRef{}, nil, errf(KindUnexpectedLexeme, save, "expected 'endobj' keyword")
		}
		p.log.Warn("missing endobj keyword, tolerating", "pos", save)
		p.lx.Seek(save)
	}

	ref := PlainRef{Num: uint32(tok1.i), Gen: uint16(tok2.i)}
	return ref, obj, nil
}
