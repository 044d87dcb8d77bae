package evecache

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/andreyvit/evecache/mmap"
	"github.com/cespare/xxhash/v2"
)

type Options struct {
	// Logger receives debug records per artifact. Defaults to slog.Default().
	Logger *slog.Logger

	// Rows materializes objects and streams. Without it, any object or
	// stream fails with ErrDescriptorNotFound.
	Rows *RowDecoder

	// NoMmap reads files into memory instead of mapping them.
	NoMmap bool

	MmapOptions mmap.Options
}

func (opt *Options) logger() *slog.Logger {
	if opt.Logger == nil {
		return slog.Default()
	}
	return opt.Logger
}

// CacheFile is an opened cache artifact on disk.
type CacheFile struct {
	path string
	f    *os.File
	size int64
}

func OpenCacheFile(path string) (*CacheFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrCannotOpenFile, path, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s: not a regular file", ErrCannotOpenFile, path)
	}
	return &CacheFile{path: path, f: f, size: fi.Size()}, nil
}

func (cf *CacheFile) Path() string { return cf.path }
func (cf *CacheFile) Size() int64  { return cf.size }

func (cf *CacheFile) Close() error {
	return cf.f.Close()
}

// CacheBuffer holds the full contents of an artifact, memory-mapped when
// possible. Decoded values never alias the buffer, so a Document stays
// valid after Close.
type CacheBuffer struct {
	path   string
	data   []byte
	mapped bool
	opt    Options
}

func NewCacheBuffer(file *CacheFile, opt Options) (*CacheBuffer, error) {
	logger := opt.logger()
	if file.size > int64(mmap.MaxSize) {
		return nil, fmt.Errorf("%w: %s: %d bytes", ErrCannotOpenBuffer, file.path, file.size)
	}
	size := int(file.size)

	cb := &CacheBuffer{path: file.path, opt: opt}
	if !opt.NoMmap && size > 0 {
		data, err := mmap.Map(file.f, size, opt.MmapOptions)
		if err == nil {
			cb.data, cb.mapped = data, true
			return cb, nil
		}
		logger.Debug("evecache: mmap failed, reading instead", "path", file.path, "err", err)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(file.f, 0, file.size), data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCannotOpenBuffer, file.path, err)
	}
	cb.data = data
	return cb, nil
}

// NewCacheBufferBytes wraps an in-memory artifact.
func NewCacheBufferBytes(data []byte, opt Options) *CacheBuffer {
	return &CacheBuffer{data: data, opt: opt}
}

func (cb *CacheBuffer) Path() string  { return cb.path }
func (cb *CacheBuffer) Bytes() []byte { return cb.data }
func (cb *CacheBuffer) Mapped() bool  { return cb.mapped }

// Fingerprint is the xxhash64 of the artifact contents.
func (cb *CacheBuffer) Fingerprint() uint64 {
	return xxhash.Sum64(cb.data)
}

func (cb *CacheBuffer) Close() error {
	data, mapped := cb.data, cb.mapped
	cb.data, cb.mapped = nil, false
	if mapped {
		return mmap.Unmap(data)
	}
	return nil
}

// DecodeAll decodes every top-level value of the artifact. Any failure is
// reported as a *CacheReadError.
func (cb *CacheBuffer) DecodeAll() (*Document, error) {
	stats := DecodeStats{Bytes: len(cb.data)}
	doc, err := decodeArtifact(cb.data, cb.opt.Rows, &stats)
	if err != nil {
		cre := newCacheReadError(cb.path, err)
		cb.opt.logger().Debug("evecache: cannot decode artifact", "path", cb.path, "off", cre.Off, hexAttr("head", cb.data[:min(len(cb.data), 16)]))
		return nil, cre
	}
	doc.Stats = stats
	cb.opt.logger().Debug("evecache: decoded artifact", "path", cb.path, "mapped", cb.mapped, "stats", stats)
	return doc, nil
}

// DecodeBytes decodes an in-memory artifact.
func DecodeBytes(data []byte, opt Options) (*Document, error) {
	return NewCacheBufferBytes(data, opt).DecodeAll()
}

// Document is the result of decoding one artifact.
type Document struct {
	Values []Value
	Shares *ShareTable
	Stats  DecodeStats
}

// Resolve follows a SharedRef to its value.
func (doc *Document) Resolve(v Value) (Value, error) {
	return doc.Shares.Deref(v)
}

// Inline returns v with every SharedRef replaced by its value, recursively.
// Shared values are inlined once and then reused.
func (doc *Document) Inline(v Value) (Value, error) {
	return doc.inline(v, make(map[int]Value))
}

func (doc *Document) inline(v Value, memo map[int]Value) (Value, error) {
	switch v.kind {
	case KindSharedRef:
		idx := int(v.num)
		if r, ok := memo[idx]; ok {
			return r, nil
		}
		target, err := doc.Shares.Resolve(idx)
		if err != nil {
			return Value{}, err
		}
		// a slot only refers to slots filled before it, so this terminates
		r, err := doc.inline(target, memo)
		if err != nil {
			return Value{}, err
		}
		memo[idx] = r
		return r, nil
	case KindTuple, KindList:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			r, err := doc.inline(item, memo)
			if err != nil {
				return Value{}, err
			}
			items[i] = r
		}
		return Value{kind: v.kind, items: items}, nil
	case KindDict:
		pairs := make([]DictEntry, len(v.pairs))
		for i, p := range v.pairs {
			k, err := doc.inline(p.Key, memo)
			if err != nil {
				return Value{}, err
			}
			val, err := doc.inline(p.Value, memo)
			if err != nil {
				return Value{}, err
			}
			pairs[i] = DictEntry{k, val}
		}
		return Dict(pairs...), nil
	default:
		return v, nil
	}
}

// decodeArtifact parses the artifact header, its share map trailer, and
// then every value in between.
func decodeArtifact(data []byte, rows *RowDecoder, stats *DecodeStats) (*Document, error) {
	c := NewByteCursor(data)
	head, err := c.U8()
	if err != nil {
		return nil, err
	}
	if head != artifactStart {
		return nil, decodeErrf(data, 0, int(head), ErrUnknownStreamType, "artifact starts with 0x%02x, wanted 0x%02x", head, artifactStart)
	}
	n, err := c.U32()
	if err != nil {
		return nil, err
	}
	if uint64(n)*4 > uint64(c.Remaining()) {
		return nil, decodeErrf(data, 1, noTag, ErrTruncatedInput, "share map of %d entries, %d bytes remaining", n, c.Remaining())
	}
	count := int(n)
	trailer := data[len(data)-4*count:]
	ensure(c.Limit(4 * count))

	shareMap := make([]uint32, count)
	for i := range shareMap {
		shareMap[i] = binary.LittleEndian.Uint32(trailer[4*i:])
	}
	shares := NewShareTable(count, shareMap)

	dec := NewDecoder(c, shares, rows)
	dec.withStats(stats)
	var values []Value
	for c.Remaining() > 0 {
		v, err := dec.Decode()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &Document{Values: values, Shares: shares}, nil
}
