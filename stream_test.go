package evecache

import (
	"errors"
	"testing"
)

func itemRows() [][]Value {
	return [][]Value{
		{Int(1), Str("sword"), Int(2), Bool(true), Int(15000), Int(3)},
		{Int(1 << 40), Str(""), Int(-7), Bool(false), Int(-1), Int(255)},
		{Int(0), None(), Int(0), Bool(false), Int(0), Int(0)},
	}
}

func expectedRows(t testing.TB, desc *Descriptor, rows [][]Value) []Value {
	var result []Value
	for _, fields := range rows {
		row, err := MaterializeRow(Tuple(fields...), desc)
		if err != nil {
			t.Fatalf("MaterializeRow(%v): %v", fields, err)
		}
		result = append(result, Object(row))
	}
	return result
}

func TestStream_TupleRows(t *testing.T) {
	e := NewEncoder()
	e.TupleStream("item", itemRows()...)
	doc := decode(t, e.Encode())
	valuesEq(t, doc.Values, List(expectedRows(t, testItem, itemRows())...))
	if doc.Stats.Streams != 1 || doc.Stats.Rows != 3 {
		t.Errorf("Stats streams, rows = %d, %d, wanted 1, 3", doc.Stats.Streams, doc.Stats.Rows)
	}
}

func TestStream_PackedRows(t *testing.T) {
	e := NewEncoder()
	ensure(e.PackedStream(testItem, itemRows()...))
	doc := decode(t, e.Encode())
	valuesEq(t, doc.Values, List(expectedRows(t, testItem, itemRows())...))
}

func TestStream_PackedNoneBecomesZero(t *testing.T) {
	e := NewEncoder()
	ensure(e.PackedStream(testItem, []Value{None(), Str("x"), None(), None(), None(), None()}))
	doc := decode(t, e.Encode())
	row, _ := doc.Values[0].Item(0).AsRow()
	want := []Value{Int(0), Str("x"), Int(0), Bool(false), Int(0), Int(0)}
	valuesEq(t, row.Fields(), want...)
}

func TestStream_PackedAllTypes(t *testing.T) {
	desc := NewDescriptor("all",
		Column{Name: "i1", Type: AdoI1},
		Column{Name: "ui1", Type: AdoUI1},
		Column{Name: "i2", Type: AdoI2},
		Column{Name: "ui2", Type: AdoUI2},
		Column{Name: "i4", Type: AdoI4},
		Column{Name: "ui4", Type: AdoUI4},
		Column{Name: "r4", Type: AdoR4},
		Column{Name: "r8", Type: AdoR8},
		Column{Name: "date", Type: AdoDate},
		Column{Name: "i8", Type: AdoI8},
		Column{Name: "ft", Type: AdoFileTime},
		Column{Name: "b1", Type: AdoBool},
		Column{Name: "b2", Type: AdoBool},
		Column{Name: "bytes", Type: AdoBytes},
		Column{Name: "w", Type: AdoWStr},
	)
	rows := [][]Value{
		{Int(-1), Int(200), Int(-2), Int(60000), Int(-3), Int(4000000000), Float(0.5), Float(1e-9), Float(45000.5), Int(-4), Int(133000000000000000), Bool(false), Bool(true), Bytes([]byte{0, 1}), Str("ж")},
	}
	e := NewEncoder()
	ensure(e.PackedStream(desc, rows...))

	opt := testOptions(t)
	opt.Rows = testRows(desc)
	doc, err := DecodeBytes(e.Encode(), opt)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	valuesEq(t, doc.Values, List(expectedRows(t, desc, rows)...))
}

func TestStream_SharedAndReferenced(t *testing.T) {
	e := NewEncoder()
	e.Shared().TupleStream("item", itemRows()[:1]...)
	e.Ref(0)
	doc := decode(t, e.Encode())
	v := must(doc.Resolve(doc.Values[1]))
	if !v.Equal(doc.Values[0]) || v.Len() != 1 {
		t.Fatalf("Resolve = %v, wanted %v", v, doc.Values[0])
	}
}

func TestStream_CorruptDelimiter(t *testing.T) {
	data := hx("7e =0 2a 01 13 #4 'item #0 2d 00")
	cre := decodeFail(t, data, ErrMissingStreamDelimiter)
	if cre.Off != 14 {
		t.Fatalf("Off = %d, wanted 14 (start of the delimiter)", cre.Off)
	}

	decodeFail(t, hx("7e =0 2a 01 13 #4 'item #0 2d"), ErrMissingStreamDelimiter)
}

func TestStream_UnknownSubKind(t *testing.T) {
	cre := decodeFail(t, hx("7e =0 2a 03 13 #4 'item #0 2d 2d"), ErrUnknownStreamType)
	if cre.Off != 6 || cre.Tag != tagStream {
		t.Fatalf("Off, Tag = %d, 0x%02x, wanted 6, 0x%02x", cre.Off, cre.Tag, tagStream)
	}
}

func TestStream_RowFailures(t *testing.T) {
	t.Run("unknown descriptor", func(t *testing.T) {
		e := NewEncoder()
		e.TupleStream("nope")
		decodeFail(t, e.Encode(), ErrStreamParseFailure)
		decodeFail(t, e.Encode(), ErrDescriptorNotFound)
	})
	t.Run("bad field type", func(t *testing.T) {
		rows := itemRows()
		rows[1][2] = Str("many")
		e := NewEncoder()
		e.TupleStream("item", rows...)
		decodeFail(t, e.Encode(), ErrStreamParseFailure)
		cre := decodeFail(t, e.Encode(), ErrInvalidRowFieldType)

		var re *RowError
		if !errors.As(cre, &re) || re.Column != "quantity" {
			t.Fatalf("err = %v, wanted a RowError for quantity", cre)
		}
	})
	t.Run("bad row size", func(t *testing.T) {
		e := NewEncoder()
		e.TupleStream("item", []Value{Int(1)})
		decodeFail(t, e.Encode(), ErrInvalidRowSize)
	})
	t.Run("truncated packed row", func(t *testing.T) {
		e := NewEncoder()
		ensure(e.PackedStream(testItem, itemRows()...))
		data := e.Encode()
		decodeFail(t, data[:len(data)-1], ErrTruncatedInput)
	})
	t.Run("packed row overflow", func(t *testing.T) {
		// item rows unpack to 22 bytes; three 8-zero runs overflow
		data := hx("7e =0 2a 02 13 #4 'item #1 2d 2d #2 ff 0f 28")
		decodeFail(t, data, ErrInvalidRowSize)
	})
}

func TestEncoder_PackedStreamRejectsBadRows(t *testing.T) {
	e := NewEncoder()
	if err := e.PackedStream(testItem, []Value{Int(1)}); !errors.Is(err, ErrInvalidRowSize) {
		t.Fatalf("short row: err = %v, wanted ErrInvalidRowSize", err)
	}
	rows := itemRows()
	rows[0][5] = Int(256)
	if err := NewEncoder().PackedStream(testItem, rows...); !errors.Is(err, ErrInvalidRowFieldType) {
		t.Fatalf("out of range ui1: err = %v, wanted ErrInvalidRowFieldType", err)
	}
	bad := NewDescriptor("bad", Column{Name: "x", Type: AdoType(999)})
	if err := NewEncoder().PackedStream(bad); !errors.Is(err, ErrUnknownAdoType) {
		t.Fatalf("bad descriptor: err = %v, wanted ErrUnknownAdoType", err)
	}
}
