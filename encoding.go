package evecache

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Records stored in a DescriptorDB. Field names are kept short because they
// are repeated in every record.
type descriptorRecord struct {
	Columns []columnRecord `msgpack:"c"`
}

type columnRecord struct {
	Name string `msgpack:"n"`
	Type uint16 `msgpack:"t"`
}

func encodeRecord(buf []byte, v any) []byte {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode %T using MsgPack: %w", v, err))
	}
	return bb.Buf
}

func decodeRecord(buf []byte, v any) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return decodeErrf(buf, 0, noTag, err, "failed to decode msgpack into %T", v)
	}
	return nil
}

func descriptorToRecord(desc *Descriptor) *descriptorRecord {
	rec := &descriptorRecord{Columns: make([]columnRecord, len(desc.columns))}
	for i, col := range desc.columns {
		rec.Columns[i] = columnRecord{Name: col.Name, Type: uint16(col.Type)}
	}
	return rec
}

func (rec *descriptorRecord) descriptor(name string) *Descriptor {
	cols := make([]Column, len(rec.Columns))
	for i, c := range rec.Columns {
		cols[i] = Column{Name: c.Name, Type: AdoType(c.Type)}
	}
	return NewDescriptor(name, cols...)
}
