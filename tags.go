package evecache

import "strconv"

// Type tags of the object stream. The low six bits select the kind of
// value; flagShared marks a value that is stored in the share table.
const (
	tagNone       = 0x01
	tagInt64      = 0x03
	tagInt32      = 0x04
	tagInt16      = 0x05
	tagInt8       = 0x06
	tagMinusOne   = 0x07
	tagZero       = 0x08
	tagOne        = 0x09
	tagFloat64    = 0x0a
	tagFloatZero  = 0x0b
	tagBytes      = 0x10
	tagChar       = 0x12
	tagStr        = 0x13
	tagTuple      = 0x14
	tagList       = 0x15
	tagDict       = 0x16
	tagObject     = 0x17
	tagSharedRef  = 0x1b
	tagTrue       = 0x1f
	tagFalse      = 0x20
	tagTuple0     = 0x24
	tagTuple1     = 0x25
	tagList0      = 0x26
	tagList1      = 0x27
	tagEmptyStr   = 0x28
	tagUTF16      = 0x29
	tagStream     = 0x2a
	tagSubstream  = 0x2b
	tagTuple2     = 0x2c
	tagMarker     = 0x2d
	tagUTF8       = 0x2e
	tagVarInt     = 0x2f
	tagKindMask   = 0x3f
	flagShared    = 0x40
	artifactStart = 0x7e
)

// Stream sub-kinds following tagStream.
const (
	streamTupleRows  = 0x01
	streamPackedRows = 0x02
)

var tagNames = map[byte]string{
	tagNone:      "none",
	tagInt64:     "int64",
	tagInt32:     "int32",
	tagInt16:     "int16",
	tagInt8:      "int8",
	tagMinusOne:  "int(-1)",
	tagZero:      "int(0)",
	tagOne:       "int(1)",
	tagFloat64:   "float64",
	tagFloatZero: "float(0)",
	tagBytes:     "bytes",
	tagChar:      "char",
	tagStr:       "str",
	tagTuple:     "tuple",
	tagList:      "list",
	tagDict:      "dict",
	tagObject:    "object",
	tagSharedRef: "ref",
	tagTrue:      "true",
	tagFalse:     "false",
	tagTuple0:    "tuple(0)",
	tagTuple1:    "tuple(1)",
	tagList0:     "list(0)",
	tagList1:     "list(1)",
	tagEmptyStr:  "str(0)",
	tagUTF16:     "utf16",
	tagStream:    "stream",
	tagSubstream: "substream",
	tagTuple2:    "tuple(2)",
	tagMarker:    "marker",
	tagUTF8:      "utf8",
	tagVarInt:    "varint",
}

// TagName describes a tag byte for diagnostics.
func TagName(tag byte) string {
	name, ok := tagNames[tag&tagKindMask]
	if !ok || tag&^(tagKindMask|flagShared) != 0 {
		return "unknown(0x" + strconv.FormatUint(uint64(tag), 16) + ")"
	}
	if tag&flagShared != 0 {
		return "shared " + name
	}
	return name
}

// isShareable reports whether a value of this kind may carry flagShared.
func isShareable(kind byte) bool {
	switch kind {
	case tagTuple, tagTuple0, tagTuple1, tagTuple2, tagList, tagList0, tagList1, tagDict, tagObject, tagStream, tagSubstream:
		return true
	default:
		return false
	}
}
