package evecache

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTruncatedInput         = errors.New("truncated input")
	ErrUnknownTypeTag         = errors.New("unknown type tag")
	ErrMissingStreamDelimiter = errors.New("missing stream delimiter")
	ErrUnknownStreamType      = errors.New("unknown stream type")
	ErrStreamParseFailure     = errors.New("stream parse failure")
	ErrShareIndexOutOfRange   = errors.New("share index out of range")
	ErrShareNotFound          = errors.New("shared object not found")
	ErrShareIdOutOfRange      = errors.New("share id out of range")
	ErrShareCursorOutOfRange  = errors.New("share cursor out of range")
	ErrDescriptorNotFound     = errors.New("descriptor not found")
	ErrBadDescriptorName      = errors.New("bad descriptor name")
	ErrInvalidRowSize         = errors.New("invalid row size")
	ErrInvalidRowFields       = errors.New("invalid row fields")
	ErrInvalidRowFieldType    = errors.New("invalid row field type")
	ErrUnknownAdoType         = errors.New("unknown ADO type")
	ErrCannotOpenFile         = errors.New("cannot open file")
	ErrCannotOpenBuffer       = errors.New("cannot open buffer")
	ErrCacheReadError         = errors.New("cache read error")
)

// noTag marks a DecodeError raised outside of any tag.
const noTag = -1

// DecodeError describes a failure at a specific offset of an artifact.
//
// Context holds a copy of the bytes around Off, starting at ContextOff, so
// the error stays printable after the artifact buffer is unmapped.
type DecodeError struct {
	Size       int
	Off        int
	Tag        int
	Err        error
	Msg        string
	Context    []byte
	ContextOff int
}

const (
	contextBefore = 16
	contextAfter  = 16
)

func decodeErrf(data []byte, off int, tag int, err error, format string, args ...any) error {
	e := &DecodeError{Size: len(data), Off: off, Tag: tag, Err: err, Msg: fmt.Sprintf(format, args...)}
	if off >= 0 && off <= len(data) {
		start, end := max(off-contextBefore, 0), min(off+contextAfter, len(data))
		e.Context = bytes.Clone(data[start:end])
		e.ContextOff = start
	}
	return e
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "at %d", e.Off)
	if e.Tag != noTag {
		fmt.Fprintf(&buf, " (tag 0x%02x)", e.Tag)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}

	if e.Size > 0 && e.Context != nil {
		split := e.Off - e.ContextOff
		fmt.Fprintf(&buf, ": [%d..%d of %d] %x|%x", e.ContextOff, e.ContextOff+len(e.Context), e.Size, e.Context[:split], e.Context[split:])
	}
	return buf.String()
}

// RowError describes a failure to materialize a row against a descriptor.
type RowError struct {
	Descriptor string
	Column     string
	Err        error
	Msg        string
}

func rowErrf(desc string, column string, err error, format string, args ...any) error {
	return &RowError{desc, column, err, fmt.Sprintf(format, args...)}
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func (e *RowError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Descriptor)
	if e.Column != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Column)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// CacheReadError is returned when an artifact cannot be decoded as a whole.
type CacheReadError struct {
	Path string
	Off  int
	Tag  int
	Err  error
}

func (e *CacheReadError) Unwrap() []error {
	return []error{ErrCacheReadError, e.Err}
}

func (e *CacheReadError) Error() string {
	var buf strings.Builder
	buf.WriteString("cannot read ")
	if e.Path != "" {
		buf.WriteString(e.Path)
	} else {
		buf.WriteString("cache buffer")
	}
	if e.Off >= 0 {
		fmt.Fprintf(&buf, " at offset %d", e.Off)
	}
	if e.Tag != noTag {
		fmt.Fprintf(&buf, " (tag 0x%02x)", e.Tag)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

func newCacheReadError(path string, err error) *CacheReadError {
	cre := &CacheReadError{Path: path, Off: -1, Tag: noTag, Err: err}
	// report the innermost position, it is the one that points at the bad bytes
	walkErrors(err, func(e error) {
		if de, ok := e.(*DecodeError); ok {
			cre.Off = de.Off
			if de.Tag != noTag {
				cre.Tag = de.Tag
			}
		}
	})
	return cre
}

// walkErrors visits err and everything it wraps, outermost first.
func walkErrors(err error, f func(error)) {
	for err != nil {
		f(err)
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walkErrors(inner, f)
			}
			return
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return
		}
	}
}
