package evecache

import (
	"fmt"
)

// decodeStream reads a rowset: sub-kind, descriptor name, row count, the
// two-byte delimiter, then the rows themselves.
func (d *Decoder) decodeStream(start int, tag byte) (Value, error) {
	c := d.cur
	kindOff := c.Position()
	kind, err := c.U8()
	if err != nil {
		return Value{}, err
	}
	if kind != streamTupleRows && kind != streamPackedRows {
		return Value{}, decodeErrf(c.Data(), kindOff, int(tag), ErrUnknownStreamType, "sub-kind 0x%02x", kind)
	}

	name, err := d.decodeName(start, tag)
	if err != nil {
		return Value{}, err
	}
	count, err := c.Count(1)
	if err != nil {
		return Value{}, err
	}

	delimOff := c.Position()
	if mark, err := c.Peek(2); err != nil || mark[0] != tagMarker || mark[1] != tagMarker {
		return Value{}, decodeErrf(c.Data(), delimOff, int(tag), ErrMissingStreamDelimiter, "stream %q", name)
	}
	ensure(c.Skip(2))

	fail := func(row int, err error) error {
		return decodeErrf(c.Data(), start, int(tag), fmt.Errorf("%w: row %d of %d: %w", ErrStreamParseFailure, row, count, err), "stream %q", name)
	}

	desc, err := d.rows.Descriptor(name)
	if err != nil {
		return Value{}, fail(0, err)
	}
	var layout *packedLayout
	if kind == streamPackedRows {
		layout = layoutOf(desc)
	}

	rows := make([]Value, 0, count)
	for i := 0; i < count; i++ {
		var row *Row
		if layout != nil {
			row, err = d.decodePackedRow(desc, layout)
		} else {
			row, err = d.decodeTupleRow(desc)
		}
		if err != nil {
			return Value{}, fail(i, err)
		}
		rows = append(rows, Object(row))
	}
	if d.stats != nil {
		d.stats.Streams++
		d.stats.Rows += count
	}
	return List(rows...), nil
}

func (d *Decoder) decodeTupleRow(desc *Descriptor) (*Row, error) {
	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	v, err = d.shares.Deref(v)
	if err != nil {
		return nil, err
	}
	return MaterializeRow(v, desc)
}

func (d *Decoder) decodePackedRow(desc *Descriptor, layout *packedLayout) (*Row, error) {
	n, err := d.cur.Count(1)
	if err != nil {
		return nil, err
	}
	packed, err := d.cur.Bytes(n)
	if err != nil {
		return nil, err
	}
	vars, err := d.decodeItems(len(layout.vars))
	if err != nil {
		return nil, err
	}
	return d.rows.decodePacked(desc, layout, packed, vars)
}
