package evecache

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindBytes
	KindTuple
	KindList
	KindDict
	KindObject
	KindSharedRef
)

var kindNames = [...]string{
	KindNone:      "none",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindStr:       "str",
	KindBytes:     "bytes",
	KindTuple:     "tuple",
	KindList:      "list",
	KindDict:      "dict",
	KindObject:    "object",
	KindSharedRef: "ref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsContainer reports whether values of this kind hold other values.
func (k Kind) IsContainer() bool {
	return k == KindTuple || k == KindList || k == KindDict || k == KindObject
}

// Value is a decoded node of the object graph. The zero Value is None.
type Value struct {
	kind  Kind
	num   uint64
	str   string
	items []Value
	pairs []DictEntry
	row   *Row
}

type DictEntry struct {
	Key   Value
	Value Value
}

func None() Value                { return Value{} }
func Int(v int64) Value          { return Value{kind: KindInt, num: uint64(v)} }
func Float(v float64) Value      { return Value{kind: KindFloat, num: math.Float64bits(v)} }
func Str(v string) Value         { return Value{kind: KindStr, str: v} }
func Bytes(v []byte) Value       { return Value{kind: KindBytes, str: string(v)} }
func Tuple(items ...Value) Value { return Value{kind: KindTuple, items: items} }
func List(items ...Value) Value  { return Value{kind: KindList, items: items} }
func Dict(pairs ...DictEntry) Value {
	return Value{kind: KindDict, pairs: pairs}
}
func Object(row *Row) Value  { return Value{kind: KindObject, row: row} }
func SharedRef(idx int) Value { return Value{kind: KindSharedRef, num: uint64(idx)} }

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNone() bool   { return v.kind == KindNone }
func (v Value) Len() int       { return max(len(v.items), len(v.pairs)) }
func (v Value) Items() []Value { return v.items }

// Entries returns the pairs of a Dict in insertion order.
func (v Value) Entries() []DictEntry { return v.pairs }

func (v Value) AsBool() (bool, bool) {
	return v.num != 0, v.kind == KindBool
}

func (v Value) AsInt() (int64, bool) {
	return int64(v.num), v.kind == KindInt
}

func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return math.Float64frombits(v.num), true
	case KindInt:
		return float64(int64(v.num)), true
	default:
		return 0, false
	}
}

func (v Value) AsStr() (string, bool) {
	return v.str, v.kind == KindStr
}

func (v Value) AsBytes() ([]byte, bool) {
	if v.kind == KindBytes || v.kind == KindStr {
		return []byte(v.str), true
	}
	return nil, false
}

func (v Value) AsRow() (*Row, bool) {
	return v.row, v.kind == KindObject
}

// RefIndex returns the share table index of a SharedRef.
func (v Value) RefIndex() (int, bool) {
	return int(v.num), v.kind == KindSharedRef
}

// Item returns the i-th element of a Tuple or List, or None.
func (v Value) Item(i int) Value {
	if i < 0 || i >= len(v.items) {
		return Value{}
	}
	return v.items[i]
}

// Lookup finds a Dict entry by a Str key.
func (v Value) Lookup(key string) (Value, bool) {
	for _, e := range v.pairs {
		if s, ok := e.Key.AsStr(); ok && s == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether a and b are structurally identical. SharedRefs are
// compared by index, objects by descriptor name and fields.
func (v Value) Equal(another Value) bool {
	if v.kind != another.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBool, KindInt, KindSharedRef, KindFloat:
		return v.num == another.num
	case KindStr, KindBytes:
		return v.str == another.str
	case KindTuple, KindList:
		return valuesEqual(v.items, another.items)
	case KindDict:
		if len(v.pairs) != len(another.pairs) {
			return false
		}
		for i, e := range v.pairs {
			if !e.Key.Equal(another.pairs[i].Key) || !e.Value.Equal(another.pairs[i].Value) {
				return false
			}
		}
		return true
	case KindObject:
		return v.row.Equal(another.row)
	default:
		panic("unreachable")
	}
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if !v.Equal(b[i]) {
			return false
		}
	}
	return true
}

// Interface converts the value into plain Go values: nil, bool, int64,
// float64, string, []byte, []any (tuples and lists), map[string]any
// (dicts, keys formatted with String unless already strings, and rows).
// SharedRefs become map[string]any{"$ref": index}.
func (v Value) Interface() any {
	switch v.kind {
	case KindNone:
		return nil
	case KindBool:
		return v.num != 0
	case KindInt:
		return int64(v.num)
	case KindFloat:
		return math.Float64frombits(v.num)
	case KindStr:
		return v.str
	case KindBytes:
		return []byte(v.str)
	case KindTuple, KindList:
		result := make([]any, len(v.items))
		for i, item := range v.items {
			result[i] = item.Interface()
		}
		return result
	case KindDict:
		result := make(map[string]any, len(v.pairs))
		for _, e := range v.pairs {
			k, ok := e.Key.AsStr()
			if !ok {
				k = e.Key.String()
			}
			result[k] = e.Value.Interface()
		}
		return result
	case KindObject:
		return v.row.Map()
	case KindSharedRef:
		return map[string]any{"$ref": int64(v.num)}
	default:
		panic("unreachable")
	}
}

func (v Value) String() string {
	var buf strings.Builder
	v.format(&buf)
	return buf.String()
}

func (v Value) format(w *strings.Builder) {
	switch v.kind {
	case KindNone:
		w.WriteString("None")
	case KindBool:
		if v.num != 0 {
			w.WriteString("True")
		} else {
			w.WriteString("False")
		}
	case KindInt:
		w.WriteString(strconv.FormatInt(int64(v.num), 10))
	case KindFloat:
		w.WriteString(strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64))
	case KindStr:
		w.WriteString(strconv.Quote(v.str))
	case KindBytes:
		w.WriteString("b'")
		w.WriteString(hex.EncodeToString([]byte(v.str)))
		w.WriteByte('\'')
	case KindTuple:
		w.WriteByte('(')
		formatItems(w, v.items)
		if len(v.items) == 1 {
			w.WriteByte(',')
		}
		w.WriteByte(')')
	case KindList:
		w.WriteByte('[')
		formatItems(w, v.items)
		w.WriteByte(']')
	case KindDict:
		w.WriteByte('{')
		for i, e := range v.pairs {
			if i > 0 {
				w.WriteString(", ")
			}
			e.Key.format(w)
			w.WriteString(": ")
			e.Value.format(w)
		}
		w.WriteByte('}')
	case KindObject:
		w.WriteString(v.row.String())
	case KindSharedRef:
		fmt.Fprintf(w, "<ref %d>", v.num)
	}
}

func formatItems(w *strings.Builder, items []Value) {
	for i, item := range items {
		if i > 0 {
			w.WriteString(", ")
		}
		item.format(w)
	}
}
