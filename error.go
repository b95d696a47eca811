// Package pdf parses PDF documents, the font programs they embed, and the
// page content streams that describe what marks appear where.
package pdf

import (
	"errors"
	"fmt"
)

// Kind classifies the failure modes that can occur while reading a PDF
// document or the font programs and content streams it embeds.
type Kind int

const (
	KindOther Kind = iota
	KindIO
	KindInvalid

	// Syntax
	KindEOF
	KindUnexpectedLexeme
	KindUnknownType
	KindUnknownVariant
	KindParse
	KindMaxDepth

	// Reference
	KindFreeObject
	KindNullRef
	KindUnspecifiedXRefEntry
	KindContentReadPastBoundary
	KindReference

	// Typing
	KindUnexpectedPrimitive
	KindMissingEntry
	KindKeyValueMismatch
	KindWrongDictionaryType
	KindFromPrimitive

	// Encoding/decoding
	KindHexDecode
	KindAscii85Tail
	KindIncorrectPredictorType
	KindUTF8Decode
	KindUTF16Decode
	KindCIDDecode
	KindJPEG

	// Encryption
	KindInvalidPassword
	KindDecryptionFailure

	// Semantic bounds
	KindBounds
	KindObjStmOutOfBounds
	KindPageOutOfBounds
	KindPageNotFound
	KindXRefStreamType

	// PostScript mini-VM
	KindPostScriptParse
	KindPostScriptExec
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindInvalid:
		return "invalid"
	case KindEOF:
		return "eof"
	case KindUnexpectedLexeme:
		return "unexpected lexeme"
	case KindUnknownType:
		return "unknown type"
	case KindUnknownVariant:
		return "unknown variant"
	case KindParse:
		return "parse"
	case KindMaxDepth:
		return "max depth exceeded"
	case KindFreeObject:
		return "free object"
	case KindNullRef:
		return "null reference"
	case KindUnspecifiedXRefEntry:
		return "unspecified xref entry"
	case KindContentReadPastBoundary:
		return "content read past boundary"
	case KindReference:
		return "reference"
	case KindUnexpectedPrimitive:
		return "unexpected primitive"
	case KindMissingEntry:
		return "missing entry"
	case KindKeyValueMismatch:
		return "key/value mismatch"
	case KindWrongDictionaryType:
		return "wrong dictionary type"
	case KindFromPrimitive:
		return "from primitive"
	case KindHexDecode:
		return "hex decode"
	case KindAscii85Tail:
		return "ascii85 tail"
	case KindIncorrectPredictorType:
		return "incorrect predictor type"
	case KindUTF8Decode:
		return "utf8 decode"
	case KindUTF16Decode:
		return "utf16 decode"
	case KindCIDDecode:
		return "cid decode"
	case KindJPEG:
		return "jpeg"
	case KindInvalidPassword:
		return "invalid password"
	case KindDecryptionFailure:
		return "decryption failure"
	case KindBounds:
		return "out of bounds"
	case KindObjStmOutOfBounds:
		return "object stream index out of bounds"
	case KindPageOutOfBounds:
		return "page out of bounds"
	case KindPageNotFound:
		return "page not found"
	case KindXRefStreamType:
		return "bad xref stream type"
	case KindPostScriptParse:
		return "postscript parse"
	case KindPostScriptExec:
		return "postscript exec"
	default:
		return "other"
	}
}

// Error is the concrete error type returned throughout the package. It
// carries a Kind for programmatic matching via errors.Is, an optional byte
// offset where the failure was detected, and a wrapped cause.
type Error struct {
	Kind Kind
	Pos  int64 // -1 if not applicable
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	pos := ""
	if e.Pos >= 0 {
		pos = fmt.Sprintf(" at byte %d", e.Pos)
	}
	if e.Err != nil {
		return fmt.Sprintf("pdf: %s%s: %s: %v", e.Kind, pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("pdf: %s%s: %s", e.Kind, pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, &pdf.Error{Kind: pdf.KindEOF}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newError(kind Kind, pos int64, msg string, cause error) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: msg, Err: cause}
}

func errf(kind Kind, pos int64, format string, args ...any) *Error {
	return newError(kind, pos, fmt.Sprintf(format, args...), nil)
}

func wrapf(kind Kind, pos int64, cause error, format string, args ...any) *Error {
	return newError(kind, pos, fmt.Sprintf(format, args...), cause)
}

// AuthenticationError reports that the supplied password did not unlock an
// encrypted document.
type AuthenticationError struct {
	ID []byte
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("pdf: invalid password for document with ID %x", e.ID)
}

// MalformedFileError wraps a lower-level error with the byte offset at
// which the malformed data was encountered.
type MalformedFileError struct {
	Err error
	Pos int64
}

func (e *MalformedFileError) Error() string {
	return fmt.Sprintf("pdf: malformed file at byte %d: %v", e.Pos, e.Err)
}

func (e *MalformedFileError) Unwrap() error { return e.Err }

// VersionError reports that an operation requires a newer PDF version than
// the document declares.
type VersionError struct {
	Operation string
	Earliest  Version
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("pdf: %s requires PDF version %s or newer", e.Operation, e.Earliest)
}
