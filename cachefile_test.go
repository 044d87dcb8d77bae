package evecache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
)

func writeArtifact(t testing.TB, data []byte) string {
	path := filepath.Join(t.TempDir(), "a.cache")
	ensure(os.WriteFile(path, data, 0666))
	return path
}

func TestCacheFile_Open(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenCacheFile(filepath.Join(dir, "missing.cache")); !errors.Is(err, ErrCannotOpenFile) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: err = %v, wanted ErrCannotOpenFile wrapping ErrNotExist", err)
	}
	if _, err := OpenCacheFile(dir); !errors.Is(err, ErrCannotOpenFile) {
		t.Fatalf("directory: err = %v, wanted ErrCannotOpenFile", err)
	}
}

func TestCacheBuffer_DecodeFile(t *testing.T) {
	e := NewEncoder()
	e.Shared().List(1).Str("shared")
	e.Ref(0)
	data := e.Encode()
	path := writeArtifact(t, data)

	for _, noMmap := range []bool{false, true} {
		f := must(OpenCacheFile(path))
		if f.Size() != int64(len(data)) || f.Path() != path {
			t.Fatalf("Size, Path = %d, %s", f.Size(), f.Path())
		}
		opt := testOptions(t)
		opt.NoMmap = noMmap
		cb := must(NewCacheBuffer(f, opt))
		ensure(f.Close())

		if noMmap && cb.Mapped() {
			t.Errorf("Mapped() = true with NoMmap")
		}
		if fp := cb.Fingerprint(); fp != xxhash.Sum64(data) {
			t.Errorf("Fingerprint = %x, wanted %x", fp, xxhash.Sum64(data))
		}
		doc := must(cb.DecodeAll())
		ensure(cb.Close())
		if cb.Bytes() != nil || cb.Mapped() {
			t.Errorf("buffer still holds data after Close")
		}

		// the document must not alias the released buffer
		valuesEq(t, doc.Values, List(Str("shared")), SharedRef(0))
		if v := must(doc.Resolve(doc.Values[1])); !v.Equal(List(Str("shared"))) {
			t.Errorf("Resolve = %v", v)
		}
		if doc.Stats.Bytes != len(data) {
			t.Errorf("Stats.Bytes = %d, wanted %d", doc.Stats.Bytes, len(data))
		}
	}
}

func TestCacheBuffer_EmptyFile(t *testing.T) {
	f := must(OpenCacheFile(writeArtifact(t, nil)))
	defer f.Close()
	cb := must(NewCacheBuffer(f, testOptions(t)))
	if _, err := cb.DecodeAll(); !errors.Is(err, ErrCacheReadError) || !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("err = %v, wanted ErrCacheReadError and ErrTruncatedInput", err)
	}
}

func TestCacheBuffer_ErrorCarriesPath(t *testing.T) {
	path := writeArtifact(t, hx("7e =0 3f"))
	f := must(OpenCacheFile(path))
	defer f.Close()
	cb := must(NewCacheBuffer(f, testOptions(t)))
	defer cb.Close()

	_, err := cb.DecodeAll()
	var cre *CacheReadError
	if !errors.As(err, &cre) || cre.Path != path || cre.Off != 5 || !errors.Is(err, ErrUnknownTypeTag) {
		t.Fatalf("err = %v, wanted a CacheReadError for %s at 5", err, path)
	}
}

func TestCacheBuffer_ErrorOutlivesBuffer(t *testing.T) {
	data := hx("7e =0 09 09 09 3f 09 09")
	path := writeArtifact(t, data)

	for _, noMmap := range []bool{false, true} {
		f := must(OpenCacheFile(path))
		opt := testOptions(t)
		opt.NoMmap = noMmap
		cb := must(NewCacheBuffer(f, opt))
		_, err := cb.DecodeAll()
		ensure(cb.Close())
		ensure(f.Close())

		if err == nil {
			t.Fatalf("DecodeAll succeeded on a corrupt artifact")
		}
		want := "[0..11 of 11] 7e00000000090909|3f0909"
		if s := err.Error(); !strings.Contains(s, want) {
			t.Fatalf("err.Error() = %q, wanted it to contain %q", s, want)
		}
	}
}

func TestEncoder_RejectsSharedScalar(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Shared().Str() did not panic")
		}
	}()
	NewEncoder().Shared().Str("x")
}
