package evecache

import (
	"unicode/utf16"
)

// maxNesting bounds container recursion so that hostile input cannot
// exhaust the stack.
const maxNesting = 512

// Decoder reads tagged values from one artifact. A Decoder and its
// ShareTable belong to a single decode pass and are not safe for
// concurrent use.
type Decoder struct {
	cur    *ByteCursor
	shares *ShareTable
	rows   *RowDecoder
	stats  *DecodeStats
	depth  int
}

func NewDecoder(cur *ByteCursor, shares *ShareTable, rows *RowDecoder) *Decoder {
	return &Decoder{cur: cur, shares: shares, rows: rows}
}

func (d *Decoder) Cursor() *ByteCursor     { return d.cur }
func (d *Decoder) Shares() *ShareTable     { return d.shares }
func (d *Decoder) Rows() *RowDecoder       { return d.rows }
func (d *Decoder) withStats(s *DecodeStats) { d.stats = s }

// Decode reads the next value. On failure no partial value is returned and
// the decoder must not be used further.
func (d *Decoder) Decode() (Value, error) {
	return d.decodeValue()
}

func (d *Decoder) decodeValue() (Value, error) {
	start := d.cur.Position()
	tag, err := d.cur.U8()
	if err != nil {
		return Value{}, err
	}
	kind := tag & tagKindMask
	shared := tag&flagShared != 0
	if tag&^(tagKindMask|flagShared) != 0 || (shared && !isShareable(kind)) {
		return Value{}, d.errf(start, tag, ErrUnknownTypeTag, "%s", TagName(tag))
	}

	d.depth++
	defer func() { d.depth-- }()
	if d.depth > maxNesting {
		return Value{}, d.errf(start, tag, nil, "nesting deeper than %d", maxNesting)
	}

	idx := -1
	if shared {
		idx, err = d.shares.Reserve()
		if err != nil {
			return Value{}, d.errf(start, tag, err, "")
		}
	}

	v, err := d.decodeBody(start, tag, kind)
	if err != nil {
		return Value{}, err
	}
	if d.stats != nil {
		d.stats.Values++
	}
	if shared {
		d.shares.Fill(idx, v)
		if d.stats != nil {
			d.stats.Shared++
		}
	}
	return v, nil
}

func (d *Decoder) decodeBody(start int, tag, kind byte) (Value, error) {
	c := d.cur
	switch kind {
	case tagNone:
		return None(), nil
	case tagInt64:
		v, err := c.I64()
		return Int(v), err
	case tagInt32:
		v, err := c.I32()
		return Int(int64(v)), err
	case tagInt16:
		v, err := c.I16()
		return Int(int64(v)), err
	case tagInt8:
		v, err := c.I8()
		return Int(int64(v)), err
	case tagMinusOne:
		return Int(-1), nil
	case tagZero:
		return Int(0), nil
	case tagOne:
		return Int(1), nil
	case tagVarInt:
		return d.decodeVarInt(start, tag)
	case tagFloat64:
		v, err := c.F64()
		return Float(v), err
	case tagFloatZero:
		return Float(0), nil
	case tagTrue:
		return Bool(true), nil
	case tagFalse:
		return Bool(false), nil

	case tagBytes:
		n, err := c.Count(1)
		if err != nil {
			return Value{}, err
		}
		b, err := c.Bytes(n)
		return Bytes(b), err
	case tagChar:
		b, err := c.Bytes(1)
		if err != nil {
			return Value{}, err
		}
		return Str(string(b)), nil
	case tagStr, tagUTF8:
		s, err := c.LengthPrefixedString(0)
		return Str(s), err
	case tagEmptyStr:
		return Str(""), nil
	case tagUTF16:
		return d.decodeUTF16(start, tag)

	case tagTuple0:
		return Tuple(), nil
	case tagTuple1, tagTuple2, tagList1:
		n := 1
		if kind == tagTuple2 {
			n = 2
		}
		items, err := d.decodeItems(n)
		if err != nil {
			return Value{}, err
		}
		if kind == tagList1 {
			return List(items...), nil
		}
		return Tuple(items...), nil
	case tagList0:
		return List(), nil
	case tagTuple, tagList:
		n, err := c.Count(1)
		if err != nil {
			return Value{}, err
		}
		items, err := d.decodeItems(n)
		if err != nil {
			return Value{}, err
		}
		if kind == tagList {
			return List(items...), nil
		}
		return Tuple(items...), nil
	case tagDict:
		return d.decodeDict()

	case tagObject:
		return d.decodeObject(start, tag)
	case tagSharedRef:
		return d.decodeSharedRef(start, tag)
	case tagStream:
		return d.decodeStream(start, tag)
	case tagSubstream:
		return d.decodeSubstream(start, tag)
	case tagMarker:
		return Value{}, d.errf(start, tag, ErrUnknownTypeTag, "stream marker outside of a stream")
	default:
		return Value{}, d.errf(start, tag, ErrUnknownTypeTag, "%s", TagName(tag))
	}
}

func (d *Decoder) decodeItems(n int) ([]Value, error) {
	items := make([]Value, n)
	for i := range items {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

func (d *Decoder) decodeDict() (Value, error) {
	n, err := d.cur.Count(2)
	if err != nil {
		return Value{}, err
	}
	pairs := make([]DictEntry, n)
	for i := range pairs {
		k, err := d.decodeValue()
		if err != nil {
			return Value{}, err
		}
		v, err := d.decodeValue()
		if err != nil {
			return Value{}, err
		}
		pairs[i] = DictEntry{Key: k, Value: v}
	}
	return Dict(pairs...), nil
}

func (d *Decoder) decodeVarInt(start int, tag byte) (Value, error) {
	n, err := d.cur.U8()
	if err != nil {
		return Value{}, err
	}
	if n > 8 {
		return Value{}, d.errf(start, tag, nil, "varint of %d bytes, max 8", n)
	}
	b, err := d.cur.Bytes(int(n))
	if err != nil {
		return Value{}, err
	}
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	// sign-extend from the top bit of the last byte
	if n > 0 && n < 8 && b[n-1]&0x80 != 0 {
		u |= ^uint64(0) << (8 * n)
	}
	return Int(int64(u)), nil
}

func (d *Decoder) decodeUTF16(start int, tag byte) (Value, error) {
	n, err := d.cur.Count(1)
	if err != nil {
		return Value{}, err
	}
	if n%2 != 0 {
		return Value{}, d.errf(start, tag, nil, "odd UTF-16 byte length %d", n)
	}
	b, err := d.cur.Bytes(n)
	if err != nil {
		return Value{}, err
	}
	units := make([]uint16, n/2)
	for i := range units {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return Str(string(utf16.Decode(units))), nil
}

func (d *Decoder) decodeSharedRef(start int, tag byte) (Value, error) {
	id, err := d.cur.Uvarint()
	if err != nil {
		return Value{}, err
	}
	if id == 0 || id > uint64(d.shares.Cap())+1 {
		return Value{}, d.errf(start, tag, ErrShareIdOutOfRange, "ref id %d, %d slots", id, d.shares.Cap())
	}
	idx := int(id - 1)
	if _, err := d.shares.Resolve(idx); err != nil {
		return Value{}, d.errf(start, tag, err, "")
	}
	if d.stats != nil {
		d.stats.Refs++
	}
	return SharedRef(idx), nil
}

// decodeName reads a descriptor name, which is an ordinary string value.
func (d *Decoder) decodeName(start int, tag byte) (string, error) {
	v, err := d.decodeValue()
	if err != nil {
		return "", err
	}
	v, err = d.shares.Deref(v)
	if err != nil {
		return "", d.errf(start, tag, err, "")
	}
	if v.kind != KindStr {
		return "", d.errf(start, tag, ErrBadDescriptorName, "descriptor name is a %v", v.kind)
	}
	return v.str, nil
}

func (d *Decoder) decodeObject(start int, tag byte) (Value, error) {
	name, err := d.decodeName(start, tag)
	if err != nil {
		return Value{}, err
	}
	fields, err := d.decodeValue()
	if err != nil {
		return Value{}, err
	}
	fields, err = d.shares.Deref(fields)
	if err != nil {
		return Value{}, d.errf(start, tag, err, "")
	}
	row, err := d.rows.DecodeRow(fields, name)
	if err != nil {
		return Value{}, d.errf(start, tag, err, "object %q", name)
	}
	if d.stats != nil {
		d.stats.Rows++
	}
	return Object(row), nil
}

// decodeSubstream decodes a nested artifact with its own share table. The
// nested artifact must hold exactly one value.
func (d *Decoder) decodeSubstream(start int, tag byte) (Value, error) {
	n, err := d.cur.Count(1)
	if err != nil {
		return Value{}, err
	}
	body, err := d.cur.Bytes(n)
	if err != nil {
		return Value{}, err
	}
	doc, err := decodeArtifact(body, d.rows, d.stats)
	if err != nil {
		return Value{}, d.errf(start, tag, err, "substream of %d bytes", n)
	}
	if len(doc.Values) != 1 {
		return Value{}, d.errf(start, tag, nil, "substream holds %d values, wanted 1", len(doc.Values))
	}
	return doc.Values[0], nil
}

func (d *Decoder) errf(off int, tag byte, err error, format string, args ...any) error {
	return decodeErrf(d.cur.Data(), off, int(tag), err, format, args...)
}
