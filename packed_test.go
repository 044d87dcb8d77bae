package evecache

import (
	"bytes"
	"errors"
	"testing"
)

func TestZeroRuns_Unpack(t *testing.T) {
	tests := []struct {
		name  string
		src   []byte
		width int
		want  []byte
	}{
		{"empty", nil, 4, []byte{0, 0, 0, 0}},
		{"literal", []byte{0x01, 0xaa, 0xbb}, 3, []byte{0xaa, 0xbb, 0}},
		{"zeros then literal", []byte{0x0a, 0xcc}, 5, []byte{0, 0, 0, 0xcc, 0}},
		{"high nibble ignored at end", []byte{0xf0, 0x11}, 2, []byte{0x11, 0}},
		{"two max runs", []byte{0xff, 0x00, 0x07}, 17, append(make([]byte, 16), 0x07)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, tt.width)
			if err := unpackZeroRuns(dst, tt.src); err != nil {
				t.Fatalf("unpackZeroRuns: %v", err)
			}
			if !bytes.Equal(dst, tt.want) {
				t.Fatalf("unpackZeroRuns = %x, wanted %x", dst, tt.want)
			}
		})
	}
}

func TestZeroRuns_UnpackErrors(t *testing.T) {
	if err := unpackZeroRuns(make([]byte, 2), []byte{0x0f}); !errors.Is(err, ErrInvalidRowSize) {
		t.Fatalf("zero run overflow: err = %v, wanted ErrInvalidRowSize", err)
	}
	if err := unpackZeroRuns(make([]byte, 1), []byte{0x01, 1, 2}); !errors.Is(err, ErrInvalidRowSize) {
		t.Fatalf("literal overflow: err = %v, wanted ErrInvalidRowSize", err)
	}
	if err := unpackZeroRuns(make([]byte, 8), []byte{0x03, 1}); !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("short literal: err = %v, wanted ErrTruncatedInput", err)
	}
}

func TestZeroRuns_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0, 0, 0},
		{1},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 7},
		{5, 0, 6, 0, 0, 7, 0, 0, 0, 0},
		{0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0x80},
	}
	for _, src := range inputs {
		packed := packZeroRuns(nil, src)
		dst := make([]byte, len(src))
		if err := unpackZeroRuns(dst, packed); err != nil {
			t.Fatalf("unpackZeroRuns(packZeroRuns(%x) = %x): %v", src, packed, err)
		}
		if !bytes.Equal(dst, src) {
			t.Fatalf("round trip of %x via %x = %x", src, packed, dst)
		}
	}
	if packed := packZeroRuns(nil, []byte{7, 0, 0}); !bytes.Equal(packed, []byte{0x00, 7}) {
		t.Fatalf("packZeroRuns(070000) = %x, wanted 0007 (trailing zeros dropped)", packed)
	}
}

func TestLayoutOf(t *testing.T) {
	desc := NewDescriptor("mixed",
		Column{"a", AdoI2},
		Column{"b", AdoBool},
		Column{"c", AdoR8},
		Column{"d", AdoStr},
		Column{"e", AdoI4},
		Column{"f", AdoBool},
		Column{"g", AdoI8},
	)
	l := layoutOf(desc)
	want := []packedField{{col: 2, off: 0}, {col: 6, off: 8}, {col: 4, off: 16}, {col: 0, off: 20}}
	if len(l.fixed) != len(want) {
		t.Fatalf("fixed = %v, wanted %v", l.fixed, want)
	}
	for i := range want {
		if l.fixed[i] != want[i] {
			t.Fatalf("fixed = %v, wanted %v", l.fixed, want)
		}
	}
	if l.boolOff != 22 || l.width != 23 {
		t.Fatalf("boolOff, width = %d, %d, wanted 22, 23", l.boolOff, l.width)
	}
	if len(l.bools) != 2 || l.bools[0] != 1 || l.bools[1] != 5 {
		t.Fatalf("bools = %v, wanted [1 5]", l.bools)
	}
	if len(l.vars) != 1 || l.vars[0] != 3 {
		t.Fatalf("vars = %v, wanted [3]", l.vars)
	}
}

func TestDecodeRowBytes(t *testing.T) {
	desc := NewDescriptor("pair",
		Column{"id", AdoI4},
		Column{"on", AdoBool},
		Column{"name", AdoStr},
	)
	rd := NewRowDecoder(NewDescriptorStore(DescriptorMap{}.Add(desc)))

	// id = 0x0102 (4 bytes), then bool byte 0x01
	packed := packZeroRuns(nil, []byte{0x02, 0x01, 0, 0, 0x01})
	row := must(rd.DecodeRowBytes("pair", packed, []Value{Str("x")}))
	if id, _ := row.Int("id"); id != 0x0102 {
		t.Fatalf("id = %x, wanted 0102", id)
	}
	if on, _ := row.Bool("on"); !on {
		t.Fatalf("on = false, wanted true")
	}
	if name, _ := row.Str("name"); name != "x" {
		t.Fatalf("name = %q, wanted x", name)
	}

	if _, err := rd.DecodeRowBytes("pair", packed, nil); !errors.Is(err, ErrInvalidRowSize) {
		t.Fatalf("missing variable field: err = %v, wanted ErrInvalidRowSize", err)
	}
	if _, err := rd.DecodeRowBytes("pair", packed, []Value{Int(1)}); !errors.Is(err, ErrInvalidRowFieldType) {
		t.Fatalf("int in str column: err = %v, wanted ErrInvalidRowFieldType", err)
	}
	if _, err := rd.DecodeRowBytes("pair", []byte{0x0f}, []Value{Str("x")}); !errors.Is(err, ErrInvalidRowSize) {
		t.Fatalf("overlong packed row: err = %v, wanted ErrInvalidRowSize", err)
	}
}

func TestFixedRoundTrip(t *testing.T) {
	tests := []struct {
		typ AdoType
		v   Value
	}{
		{AdoI1, Int(-5)},
		{AdoUI1, Int(250)},
		{AdoI2, Int(-30000)},
		{AdoUI2, Int(65000)},
		{AdoI4, Int(-2000000000)},
		{AdoUI4, Int(4000000000)},
		{AdoR4, Float(1.5)},
		{AdoR8, Float(-1e100)},
		{AdoDate, Float(45000.25)},
		{AdoI8, Int(-1 << 62)},
		{AdoCurrency, Int(123456)},
		{AdoFileTime, Int(133000000000000000)},
	}
	for _, tt := range tests {
		b := make([]byte, 8)
		writeFixed(tt.typ, b, tt.v)
		if got := readFixed(tt.typ, b); !got.Equal(tt.v) {
			t.Fatalf("%v: readFixed(writeFixed(%v)) = %v", tt.typ, tt.v, got)
		}
	}
}
