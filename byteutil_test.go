package evecache

import (
	"reflect"
	"testing"
)

func TestBytesBuilder_Basics(t *testing.T) {
	var bb bytesBuilder
	off := bb.Grow(3)
	copy(bb.Buf[off:], []byte{1, 2, 3})
	bb.AppendByte(4)
	bb.AppendUint16(0x0605)
	bb.AppendUint32(0x0a090807)
	bb.AppendUint64(0x1211100f0e0d0c0b)
	bb.AppendUvarint(0x42)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 0x42}
	if !reflect.DeepEqual(bb.Buf, want) {
		t.Fatalf("bb.Buf = %x, wanted %x", bb.Buf, want)
	}

	bb.Trim(2)
	if !reflect.DeepEqual(bb.Buf, []byte{1, 2}) {
		t.Fatalf("after Trim: bb.Buf = %x, wanted 0102", bb.Buf)
	}

	_, _ = bb.Write([]byte{9, 8})
	if !reflect.DeepEqual(bb.Buf, []byte{1, 2, 9, 8}) {
		t.Fatalf("after Write: bb.Buf = %x, wanted 01020908", bb.Buf)
	}

	_ = bb.WriteByte(7)
	if !reflect.DeepEqual(bb.Buf, []byte{1, 2, 9, 8, 7}) {
		t.Fatalf("after WriteByte: bb.Buf = %x, wanted 0102090807", bb.Buf)
	}
}

func TestBytesBuilder_VarBytes(t *testing.T) {
	var bb bytesBuilder
	bb.AppendVarBytes([]byte("hi"))
	bb.AppendUvarint(300)
	if !reflect.DeepEqual(bb.Buf, []byte{2, 'h', 'i', 0xac, 0x02}) {
		t.Fatalf("bb.Buf = %x, wanted 026869ac02", bb.Buf)
	}

	c := NewByteCursor(bb.Buf)
	s := must(c.LengthPrefixedString(0))
	n := must(c.Uvarint())
	if s != "hi" || n != 300 || c.Remaining() != 0 {
		t.Fatalf("read back (%q, %d), remaining %d, wanted (\"hi\", 300), remaining 0", s, n, c.Remaining())
	}
}

func TestEnsureCapacity(t *testing.T) {
	buf := ensureCapacity([]byte{1}, 3)
	if cap(buf) != 16 || !reflect.DeepEqual(buf, []byte{1}) {
		t.Fatalf("ensureCapacity = %x (cap %d), wanted 01 (cap 16)", buf, cap(buf))
	}
	buf = ensureCapacity(buf, 40)
	if cap(buf) != 64 {
		t.Fatalf("cap = %d, wanted 64", cap(buf))
	}
	if got := appendRaw(nil, []byte{0xAA, 0xBB}); !reflect.DeepEqual(got, []byte{0xAA, 0xBB}) {
		t.Fatalf("appendRaw = %x, wanted aabb", got)
	}
}
