package evecache

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// packedLayout places the columns of a descriptor inside a packed row.
// Fixed-width columns come first, widest first, then one bit per Bool
// column. Variable-width columns are stored as separate values after the
// packed bytes.
type packedLayout struct {
	fixed   []packedField
	bools   []int
	vars    []int
	boolOff int
	width   int
}

type packedField struct {
	col int
	off int
}

func layoutOf(desc *Descriptor) *packedLayout {
	l := &packedLayout{}
	var fixed []int
	for i, col := range desc.columns {
		switch {
		case col.Type.Width() > 0:
			fixed = append(fixed, i)
		case col.Type == AdoBool:
			l.bools = append(l.bools, i)
		case col.Type.IsVariable():
			l.vars = append(l.vars, i)
		}
	}
	slices.SortStableFunc(fixed, func(a, b int) int {
		return cmp.Compare(desc.columns[b].Type.Width(), desc.columns[a].Type.Width())
	})

	off := 0
	for _, i := range fixed {
		l.fixed = append(l.fixed, packedField{col: i, off: off})
		off += desc.columns[i].Type.Width()
	}
	l.boolOff = off
	l.width = off + (len(l.bools)+7)/8
	return l
}

// unpackZeroRuns expands zero-run-length packed bytes into dst, which must
// be zeroed. Each opcode byte holds two nibbles, low nibble first: n < 8
// copies the next n+1 input bytes, n >= 8 skips n-7 zero bytes. The high
// nibble is ignored once the input is exhausted.
func unpackZeroRuns(dst, src []byte) error {
	out, in := 0, 0
	for in < len(src) {
		op := src[in]
		in++
		for half := 0; half < 2; half++ {
			if half == 1 && in == len(src) {
				break
			}
			nib := int(op>>(4*half)) & 0x0f
			if nib >= 8 {
				n := nib - 7
				if out+n > len(dst) {
					return fmt.Errorf("%w: zero run of %d at %d overflows %d byte row", ErrInvalidRowSize, n, out, len(dst))
				}
				out += n
				continue
			}
			n := nib + 1
			if in+n > len(src) {
				return fmt.Errorf("%w: literal of %d bytes at %d, %d bytes remaining", ErrTruncatedInput, n, in, len(src)-in)
			}
			if out+n > len(dst) {
				return fmt.Errorf("%w: literal of %d at %d overflows %d byte row", ErrInvalidRowSize, n, out, len(dst))
			}
			copy(dst[out:], src[in:in+n])
			in += n
			out += n
		}
	}
	return nil
}

// packZeroRuns is the inverse of unpackZeroRuns. Trailing zeros are dropped.
func packZeroRuns(buf, src []byte) []byte {
	end := len(src)
	for end > 0 && src[end-1] == 0 {
		end--
	}
	src = src[:end]

	var opOff, half int
	for i := 0; i < len(src); {
		var nib byte
		j := i
		if src[i] == 0 {
			for j < len(src) && j-i < 8 && src[j] == 0 {
				j++
			}
			nib = byte(j-i) + 7
		} else {
			for j < len(src) && j-i < 8 && src[j] != 0 {
				j++
			}
			nib = byte(j-i) - 1
		}
		if half == 0 {
			opOff = len(buf)
			buf = append(buf, nib)
		} else {
			buf[opOff] |= nib << 4
		}
		if src[i] != 0 {
			buf = append(buf, src[i:j]...)
		}
		half ^= 1
		i = j
	}
	return buf
}

func (rd *RowDecoder) decodePacked(desc *Descriptor, layout *packedLayout, packed []byte, vars []Value) (*Row, error) {
	if len(vars) != len(layout.vars) {
		return nil, rowErrf(desc.name, "", ErrInvalidRowSize, "got %d variable fields, wanted %d", len(vars), len(layout.vars))
	}
	buf := takeRowScratch(layout.width)
	defer releaseRowScratch(buf)

	if err := unpackZeroRuns(buf, packed); err != nil {
		return nil, rowErrf(desc.name, "", err, "packed row")
	}

	fields := make([]Value, desc.Len())
	for _, f := range layout.fixed {
		fields[f.col] = readFixed(desc.columns[f.col].Type, buf[f.off:])
	}
	for j, i := range layout.bools {
		bit := buf[layout.boolOff+j/8] >> (j % 8) & 1
		fields[i] = Bool(bit == 1)
	}
	for j, i := range layout.vars {
		col := desc.columns[i]
		v, ok, shapeErr := col.Type.conform(vars[j])
		if shapeErr {
			return nil, rowErrf(desc.name, col.Name, ErrInvalidRowFields, "variable field %d is a %v", j, vars[j].kind)
		} else if !ok {
			return nil, rowErrf(desc.name, col.Name, ErrInvalidRowFieldType, "variable field %d: %v does not fit %v", j, vars[j], col.Type)
		}
		fields[i] = v
	}
	return &Row{desc: desc, fields: fields}, nil
}

// DecodeRowBytes builds a Row from packed fixed-width bytes plus the values
// of the variable-width columns, in column order.
func (rd *RowDecoder) DecodeRowBytes(descriptorName string, packed []byte, vars []Value) (*Row, error) {
	desc, err := rd.Descriptor(descriptorName)
	if err != nil {
		return nil, err
	}
	return rd.decodePacked(desc, layoutOf(desc), packed, vars)
}

func readFixed(t AdoType, b []byte) Value {
	switch t {
	case AdoI1:
		return Int(int64(int8(b[0])))
	case AdoUI1:
		return Int(int64(b[0]))
	case AdoI2:
		return Int(int64(int16(binary.LittleEndian.Uint16(b))))
	case AdoUI2:
		return Int(int64(binary.LittleEndian.Uint16(b)))
	case AdoI4:
		return Int(int64(int32(binary.LittleEndian.Uint32(b))))
	case AdoUI4:
		return Int(int64(binary.LittleEndian.Uint32(b)))
	case AdoR4:
		return Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case AdoR8, AdoDate:
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case AdoI8, AdoUI8, AdoCurrency, AdoFileTime:
		return Int(int64(binary.LittleEndian.Uint64(b)))
	default:
		panic(fmt.Errorf("readFixed: %v is not a fixed-width type", t))
	}
}

// writeFixed stores a conformed field value; None is stored as zero.
func writeFixed(t AdoType, b []byte, v Value) {
	switch t.Width() {
	case 1:
		b[0] = byte(v.num)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v.num))
	case 4:
		if t == AdoR4 {
			f, _ := v.AsFloat()
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
		} else {
			binary.LittleEndian.PutUint32(b, uint32(v.num))
		}
	case 8:
		binary.LittleEndian.PutUint64(b, v.num)
	}
}
