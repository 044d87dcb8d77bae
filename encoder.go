package evecache

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// Encoder writes artifacts in the format read by DecodeBytes. It exists to
// build fixtures and test data; the game client is the only real producer.
//
// Values are written in order. Containers are written as a header (Tuple,
// List, Dict, Object) followed by the caller writing the items.
type Encoder struct {
	body     bytesBuilder
	shareMap []uint32
	override []uint32
	shared   bool
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Shared marks the next container, object or stream as a new shared
// object, assigning it the next slot id.
func (e *Encoder) Shared() *Encoder {
	return e.SharedAs(uint32(len(e.shareMap) + 1))
}

// SharedAs is like Shared but records an explicit slot id in the share map.
func (e *Encoder) SharedAs(id uint32) *Encoder {
	e.shareMap = append(e.shareMap, id)
	e.shared = true
	return e
}

// ShareMap replaces the share map written to the trailer; the header count
// follows its length.
func (e *Encoder) ShareMap(ids ...uint32) *Encoder {
	e.override = append([]uint32{}, ids...)
	return e
}

func (e *Encoder) tag(t byte) {
	if e.shared {
		if !isShareable(t) {
			panic(fmt.Errorf("cannot share %s", TagName(t)))
		}
		t |= flagShared
		e.shared = false
	}
	e.body.AppendByte(t)
}

// Raw appends bytes as is.
func (e *Encoder) Raw(b ...byte) *Encoder {
	e.body.Write(b)
	return e
}

func (e *Encoder) None() *Encoder {
	e.tag(tagNone)
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		e.tag(tagTrue)
	} else {
		e.tag(tagFalse)
	}
	return e
}

// Int writes v using the shortest fixed-width tag.
func (e *Encoder) Int(v int64) *Encoder {
	switch {
	case v == -1:
		e.tag(tagMinusOne)
	case v == 0:
		e.tag(tagZero)
	case v == 1:
		e.tag(tagOne)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		e.tag(tagInt8)
		e.body.AppendByte(byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		e.tag(tagInt16)
		e.body.AppendUint16(uint16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		e.tag(tagInt32)
		e.body.AppendUint32(uint32(v))
	default:
		e.tag(tagInt64)
		e.body.AppendUint64(uint64(v))
	}
	return e
}

// VarInt writes v as a variable-length integer of the fewest bytes that
// preserve its sign.
func (e *Encoder) VarInt(v int64) *Encoder {
	n := 8
	if v == 0 {
		n = 0
	} else {
		for k := 1; k < 8; k++ {
			lo := int64(-1) << (8*k - 1)
			if v >= lo && v <= ^lo {
				n = k
				break
			}
		}
	}
	e.tag(tagVarInt)
	e.body.AppendByte(byte(n))
	for i := 0; i < n; i++ {
		e.body.AppendByte(byte(uint64(v) >> (8 * i)))
	}
	return e
}

func (e *Encoder) Float(v float64) *Encoder {
	if math.Float64bits(v) == 0 {
		e.tag(tagFloatZero)
	} else {
		e.tag(tagFloat64)
		e.body.AppendUint64(math.Float64bits(v))
	}
	return e
}

func (e *Encoder) Str(s string) *Encoder {
	switch len(s) {
	case 0:
		e.tag(tagEmptyStr)
	case 1:
		e.tag(tagChar)
		e.body.AppendByte(s[0])
	default:
		e.tag(tagStr)
		e.body.AppendVarBytes([]byte(s))
	}
	return e
}

func (e *Encoder) UTF8(s string) *Encoder {
	e.tag(tagUTF8)
	e.body.AppendVarBytes([]byte(s))
	return e
}

func (e *Encoder) UTF16(s string) *Encoder {
	units := utf16.Encode([]rune(s))
	e.tag(tagUTF16)
	e.body.AppendUvarint(uint64(2 * len(units)))
	for _, u := range units {
		e.body.AppendUint16(u)
	}
	return e
}

func (e *Encoder) Bytes(b []byte) *Encoder {
	e.tag(tagBytes)
	e.body.AppendVarBytes(b)
	return e
}

// Tuple writes the header of an n-item tuple.
func (e *Encoder) Tuple(n int) *Encoder {
	switch n {
	case 0:
		e.tag(tagTuple0)
	case 1:
		e.tag(tagTuple1)
	case 2:
		e.tag(tagTuple2)
	default:
		e.tag(tagTuple)
		e.body.AppendUvarint(uint64(n))
	}
	return e
}

// List writes the header of an n-item list.
func (e *Encoder) List(n int) *Encoder {
	switch n {
	case 0:
		e.tag(tagList0)
	case 1:
		e.tag(tagList1)
	default:
		e.tag(tagList)
		e.body.AppendUvarint(uint64(n))
	}
	return e
}

// Dict writes the header of an n-pair dict; keys and values follow in turn.
func (e *Encoder) Dict(n int) *Encoder {
	e.tag(tagDict)
	e.body.AppendUvarint(uint64(n))
	return e
}

// Object writes an object header; the fields follow as a tuple.
func (e *Encoder) Object(descriptor string) *Encoder {
	e.tag(tagObject)
	return e.Str(descriptor)
}

// Ref writes a reference to the shared object at slot index idx.
func (e *Encoder) Ref(idx int) *Encoder {
	e.tag(tagSharedRef)
	e.body.AppendUvarint(uint64(idx) + 1)
	return e
}

// Substream writes another encoder's artifact as a nested value.
func (e *Encoder) Substream(inner *Encoder) *Encoder {
	e.tag(tagSubstream)
	e.body.AppendVarBytes(inner.Encode())
	return e
}

// Value writes a whole value tree. Objects are written as object headers
// followed by a tuple of their fields.
func (e *Encoder) Value(v Value) *Encoder {
	switch v.kind {
	case KindNone:
		e.None()
	case KindBool:
		e.Bool(v.num != 0)
	case KindInt:
		e.Int(int64(v.num))
	case KindFloat:
		e.Float(math.Float64frombits(v.num))
	case KindStr:
		e.Str(v.str)
	case KindBytes:
		e.Bytes([]byte(v.str))
	case KindTuple:
		e.Tuple(len(v.items))
		e.values(v.items)
	case KindList:
		e.List(len(v.items))
		e.values(v.items)
	case KindDict:
		e.Dict(len(v.pairs))
		for _, p := range v.pairs {
			e.Value(p.Key)
			e.Value(p.Value)
		}
	case KindObject:
		e.Object(v.row.desc.name)
		e.Tuple(len(v.row.fields))
		e.values(v.row.fields)
	case KindSharedRef:
		e.Ref(int(v.num))
	}
	return e
}

func (e *Encoder) values(items []Value) {
	for _, item := range items {
		e.Value(item)
	}
}

func (e *Encoder) streamHeader(kind byte, name string, count int) {
	e.tag(tagStream)
	e.body.AppendByte(kind)
	e.Str(name)
	e.body.AppendUvarint(uint64(count))
	e.body.AppendByte(tagMarker)
	e.body.AppendByte(tagMarker)
}

// TupleStream writes a rowset whose rows are plain tuples.
func (e *Encoder) TupleStream(descriptor string, rows ...[]Value) *Encoder {
	e.streamHeader(streamTupleRows, descriptor, len(rows))
	for _, fields := range rows {
		e.Value(Tuple(fields...))
	}
	return e
}

// PackedStream writes a rowset in packed form. Fields must fit their
// columns; None is stored as zero in fixed-width columns.
func (e *Encoder) PackedStream(desc *Descriptor, rows ...[]Value) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	layout := layoutOf(desc)
	e.streamHeader(streamPackedRows, desc.name, len(rows))

	var packed []byte
	for _, fields := range rows {
		if len(fields) != desc.Len() {
			return rowErrf(desc.name, "", ErrInvalidRowSize, "got %d fields, wanted %d", len(fields), desc.Len())
		}
		conformed := make([]Value, len(fields))
		for i, col := range desc.columns {
			v, ok, _ := col.Type.conform(fields[i])
			if !ok {
				return rowErrf(desc.name, col.Name, ErrInvalidRowFieldType, "%v does not fit %v", fields[i], col.Type)
			}
			conformed[i] = v
		}

		buf := takeRowScratch(layout.width)
		for _, f := range layout.fixed {
			writeFixed(desc.columns[f.col].Type, buf[f.off:], conformed[f.col])
		}
		for j, i := range layout.bools {
			if conformed[i].num != 0 {
				buf[layout.boolOff+j/8] |= 1 << (j % 8)
			}
		}
		packed = packZeroRuns(packed[:0], buf)
		releaseRowScratch(buf)

		e.body.AppendVarBytes(packed)
		for _, i := range layout.vars {
			e.Value(conformed[i])
		}
	}
	return nil
}

// Encode returns the complete artifact: header, values, share map trailer.
func (e *Encoder) Encode() []byte {
	shareMap := e.shareMap
	if e.override != nil {
		shareMap = e.override
	}
	var out bytesBuilder
	out.Buf = make([]byte, 0, 5+len(e.body.Buf)+4*len(shareMap))
	out.AppendByte(artifactStart)
	out.AppendUint32(uint32(len(shareMap)))
	out.Write(e.body.Buf)
	for _, id := range shareMap {
		out.AppendUint32(id)
	}
	return out.Buf
}
