package evecache

import (
	"encoding/binary"
	"math"
)

// ByteCursor reads little-endian primitives from an immutable buffer.
//
// Every read that would run past the end (or past the limit set by Limit)
// fails with ErrTruncatedInput. The position after a failed read is
// unspecified; callers must abort.
type ByteCursor struct {
	data  []byte
	off   int
	limit int
}

func NewByteCursor(data []byte) *ByteCursor {
	return &ByteCursor{data: data, limit: len(data)}
}

func (c *ByteCursor) Position() int  { return c.off }
func (c *ByteCursor) Remaining() int { return c.limit - c.off }
func (c *ByteCursor) Data() []byte   { return c.data }

// Limit makes the last n bytes of the buffer unreadable, e.g. to set aside
// a trailer that was parsed separately.
func (c *ByteCursor) Limit(n int) error {
	if n < 0 || n > c.Remaining() {
		return c.truncated(n)
	}
	c.limit -= n
	return nil
}

func (c *ByteCursor) truncated(wanted int) error {
	return decodeErrf(c.data, c.off, noTag, ErrTruncatedInput, "%d bytes remaining, %d wanted", c.Remaining(), wanted)
}

func (c *ByteCursor) take(n int) ([]byte, error) {
	if n < 0 || c.limit-c.off < n {
		return nil, c.truncated(n)
	}
	v := c.data[c.off : c.off+n : c.off+n]
	c.off += n
	return v, nil
}

// Peek returns the next n bytes without advancing.
func (c *ByteCursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.limit-c.off < n {
		return nil, c.truncated(n)
	}
	return c.data[c.off : c.off+n : c.off+n], nil
}

func (c *ByteCursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

// Bytes returns the next n bytes. The result aliases the underlying buffer.
func (c *ByteCursor) Bytes(n int) ([]byte, error) {
	return c.take(n)
}

func (c *ByteCursor) U8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *ByteCursor) U16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *ByteCursor) U32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *ByteCursor) U64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *ByteCursor) I8() (int8, error) {
	v, err := c.U8()
	return int8(v), err
}

func (c *ByteCursor) I16() (int16, error) {
	v, err := c.U16()
	return int16(v), err
}

func (c *ByteCursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

func (c *ByteCursor) I64() (int64, error) {
	v, err := c.U64()
	return int64(v), err
}

func (c *ByteCursor) F32() (float32, error) {
	v, err := c.U32()
	return math.Float32frombits(v), err
}

func (c *ByteCursor) F64() (float64, error) {
	v, err := c.U64()
	return math.Float64frombits(v), err
}

func (c *ByteCursor) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(c.data[c.off:c.limit])
	if n == 0 {
		return 0, c.truncated(1)
	} else if n < 0 {
		return 0, decodeErrf(c.data, c.off, noTag, nil, "invalid uvarint")
	}
	c.off += n
	return v, nil
}

// Count reads a uvarint element count or byte length. Anything that
// cannot possibly fit in the remaining input is reported as truncation,
// so that corrupt counts never turn into huge allocations.
func (c *ByteCursor) Count(minElemSize int) (int, error) {
	start := c.off
	v, err := c.Uvarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v*uint64(minElemSize) > uint64(c.Remaining()) {
		return 0, decodeErrf(c.data, start, noTag, ErrTruncatedInput, "count %d exceeds %d remaining bytes", v, c.Remaining())
	}
	return int(v), nil
}

// LengthPrefixedString reads a string preceded by its byte length encoded
// in width bytes (1, 2 or 4), or as a uvarint when width is 0.
func (c *ByteCursor) LengthPrefixedString(width int) (string, error) {
	var n int
	switch width {
	case 0:
		v, err := c.Count(1)
		if err != nil {
			return "", err
		}
		n = v
	case 1:
		v, err := c.U8()
		if err != nil {
			return "", err
		}
		n = int(v)
	case 2:
		v, err := c.U16()
		if err != nil {
			return "", err
		}
		n = int(v)
	case 4:
		v, err := c.U32()
		if err != nil {
			return "", err
		}
		if uint64(v) > math.MaxInt32 {
			return "", c.truncated(math.MaxInt32)
		}
		n = int(v)
	default:
		panic("LengthPrefixedString: invalid width")
	}
	b, err := c.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
