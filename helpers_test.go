package evecache

import (
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"testing"
)

var testItem = NewDescriptor("item",
	Column{Name: "itemID", Type: AdoI8},
	Column{Name: "name", Type: AdoStr},
	Column{Name: "quantity", Type: AdoI4},
	Column{Name: "singleton", Type: AdoBool},
	Column{Name: "price", Type: AdoCurrency},
	Column{Name: "flag", Type: AdoUI1},
)

func testLogger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testRows(descs ...*Descriptor) *RowDecoder {
	m := DescriptorMap{}.Add(testItem)
	for _, desc := range descs {
		m.Add(desc)
	}
	return NewRowDecoder(NewDescriptorStore(m))
}

func testOptions(t testing.TB) Options {
	return Options{Logger: testLogger(t), Rows: testRows()}
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	c.t.Log(strings.TrimSuffix(string(buf), "\n"))
	return len(buf), nil
}

// hx builds bytes from hex digits, 'text, #uvarint and =uint32 elements.
func hx(specs ...string) []byte {
	var b []byte
	for _, spec := range specs {
		for _, elem := range strings.Fields(spec) {
			switch elem[0] {
			case '\'':
				b = append(b, elem[1:]...)
			case '#':
				b = binary.AppendUvarint(b, must(strconv.ParseUint(elem[1:], 10, 64)))
			case '=':
				b = binary.LittleEndian.AppendUint32(b, uint32(must(strconv.ParseUint(elem[1:], 10, 32))))
			default:
				b = append(b, must(hex.DecodeString(elem))...)
			}
		}
	}
	return b
}
