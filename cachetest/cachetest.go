// Package cachetest builds cache artifacts and machoNet folder trees for tests.
package cachetest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/andreyvit/evecache"
)

var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Item is a small descriptor covering fixed, bool and variable columns.
var Item = evecache.NewDescriptor("item",
	evecache.Column{Name: "itemID", Type: evecache.AdoI8},
	evecache.Column{Name: "name", Type: evecache.AdoStr},
	evecache.Column{Name: "quantity", Type: evecache.AdoI4},
	evecache.Column{Name: "singleton", Type: evecache.AdoBool},
	evecache.Column{Name: "price", Type: evecache.AdoCurrency},
	evecache.Column{Name: "flag", Type: evecache.AdoUI1},
)

// Logger returns a logger that writes to the test log.
func Logger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}))
}

// Rows returns a RowDecoder that knows Item plus the given descriptors.
func Rows(descs ...*evecache.Descriptor) *evecache.RowDecoder {
	m := evecache.DescriptorMap{}
	m.Add(Item)
	for _, desc := range descs {
		m.Add(desc)
	}
	return evecache.NewRowDecoder(evecache.NewDescriptorStore(m))
}

// Options returns decode options logging to t.
func Options(t testing.TB, descs ...*evecache.Descriptor) evecache.Options {
	return evecache.Options{Logger: Logger(t), Rows: Rows(descs...)}
}

// Call starts the usual artifact of a cached remote call: a 2-tuple of the
// (service, method) key and the payload, which write must produce.
func Call(service, method string, write func(e *evecache.Encoder)) *evecache.Encoder {
	e := evecache.NewEncoder()
	e.Tuple(2)
	e.Tuple(2).Str(service).Str(method)
	write(e)
	return e
}

// MachoNet is a temporary cache folder tree.
type MachoNet struct {
	T   testing.TB
	Dir string

	now time.Time
}

func New(t testing.TB) *MachoNet {
	return &MachoNet{
		T:   t,
		Dir: filepath.Join(t.TempDir(), "machoNet"),
		now: Start,
	}
}

// Advance moves the clock used as the mtime of files written later.
func (m *MachoNet) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Put writes an artifact as folder/name under the tree and returns its path.
func (m *MachoNet) Put(folder, name string, data []byte) string {
	m.T.Helper()
	path := filepath.Join(m.Dir, folder, name)
	ensure(os.MkdirAll(filepath.Dir(path), 0o755))
	ensure(os.WriteFile(path, data, 0o644))
	ensure(os.Chtimes(path, m.now, m.now))
	return path
}

// PutCall writes the artifact of enc.
func (m *MachoNet) PutCall(folder, name string, enc *evecache.Encoder) string {
	return m.Put(folder, name, enc.Encode())
}

// Path returns the full path of folder/name.
func (m *MachoNet) Path(folder, name string) string {
	return filepath.Join(m.Dir, folder, name)
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	msg := string(buf)
	origLen := len(msg)
	msg = strings.TrimSuffix(msg, "\n")
	c.t.Log(msg)
	return origLen, nil
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

// Hex builds bytes from whitespace-separated elements: hex digits (with
// optional _ separators), 'text for raw ASCII, #123 for a uvarint, and
// =123 for a little-endian uint32.
func Hex(specs ...string) []byte {
	var b []byte
	for _, spec := range specs {
		for _, elem := range strings.Fields(spec) {
			switch elem[0] {
			case '\'':
				b = append(b, elem[1:]...)
			case '#':
				v, err := strconv.ParseUint(elem[1:], 10, 64)
				if err != nil {
					panic(fmt.Errorf("invalid uvarint in element %q: %w", elem, err))
				}
				b = binary.AppendUvarint(b, v)
			case '=':
				v, err := strconv.ParseUint(elem[1:], 10, 32)
				if err != nil {
					panic(fmt.Errorf("invalid uint32 in element %q: %w", elem, err))
				}
				b = binary.LittleEndian.AppendUint32(b, uint32(v))
			default:
				digits := strings.ReplaceAll(elem, "_", "")
				if len(digits)%2 != 0 {
					panic(fmt.Errorf("odd number of hex digits in element %q", elem))
				}
				for i := 0; i < len(digits); i += 2 {
					v, err := strconv.ParseUint(digits[i:i+2], 16, 8)
					if err != nil {
						panic(fmt.Errorf("invalid hex in element %q: %w", elem, err))
					}
					b = append(b, byte(v))
				}
			}
		}
	}
	return b
}

// HexDump formats b 16 bytes per line, marking the byte at highlightOff.
func HexDump(b []byte, highlightOff int) string {
	var buf strings.Builder
	for off := 0; off < len(b) || off == 0; off += 16 {
		fmt.Fprintf(&buf, "%06x ", off)
		for i := off; i < off+16; i++ {
			switch {
			case i >= len(b):
				buf.WriteString("   ")
			case i == highlightOff:
				fmt.Fprintf(&buf, ">%02x", b[i])
			default:
				fmt.Fprintf(&buf, " %02x", b[i])
			}
		}
		buf.WriteString("  |")
		for i := off; i < min(off+16, len(b)); i++ {
			if b[i] >= 32 && b[i] <= 126 {
				buf.WriteByte(b[i])
			} else {
				buf.WriteByte('.')
			}
		}
		buf.WriteString("|\n")
	}
	return buf.String()
}

func BytesEq(t testing.TB, a, e []byte) bool {
	if !bytes.Equal(a, e) {
		off := min(len(a), len(e))
		for i := range off {
			if a[i] != e[i] {
				off = i
				break
			}
		}

		t.Helper()
		t.Errorf("** got:\n%v\nwanted:\n%v\nfirst difference offset: 0x%x (%d)", HexDump(a, off), HexDump(e, off), off, off)
		return false
	}
	return true
}
