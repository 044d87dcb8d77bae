package evecache_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/andreyvit/evecache"
	"github.com/andreyvit/evecache/cachetest"
)

func newManager(t *testing.T, mn *cachetest.MachoNet, reg evecache.Registry) *evecache.Manager {
	return evecache.NewManager([]string{mn.Dir}, evecache.ManagerOptions{
		Options:  cachetest.Options(t),
		Workers:  3,
		Registry: reg,
	})
}

func intPayload(n int64) func(e *evecache.Encoder) {
	return func(e *evecache.Encoder) { e.Int(n) }
}

func scan(t *testing.T, m *evecache.Manager) []*evecache.Entry {
	t.Helper()
	entries, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return entries
}

func paths(entries []*evecache.Entry) []string {
	var result []string
	for _, e := range entries {
		result = append(result, filepath.Base(filepath.Dir(e.Path))+"/"+filepath.Base(e.Path))
	}
	return result
}

func TestManager_Scan(t *testing.T) {
	mn := cachetest.New(t)
	mn.PutCall("CachedMethodCalls", "b.cache", cachetest.Call("marketProxy", "GetOrders", intPayload(2)))
	mn.PutCall("CachedMethodCalls", "a.CACHE", cachetest.Call("charMgr", "GetPublicInfo", intPayload(1)))
	mn.PutCall("CachedObjects", "c.cache", cachetest.Call("config", "GetMap", intPayload(3)))
	mn.Put("CachedObjects", "notes.txt", []byte("not an artifact"))

	m := newManager(t, mn, nil)
	entries := scan(t, m)
	if got, want := paths(entries), []string{"CachedMethodCalls/a.CACHE", "CachedMethodCalls/b.cache", "CachedObjects/c.cache"}; !slices.Equal(got, want) {
		t.Fatalf("entries = %v, wanted %v", got, want)
	}

	e := entries[1]
	if e.Err != nil || e.Method != "GetOrders" || !e.Payload.Equal(evecache.Int(2)) {
		t.Fatalf("entry = %+v", e)
	}
	if !e.ModTime.Equal(cachetest.Start) || e.Size == 0 || e.Fingerprint == 0 {
		t.Fatalf("entry ModTime, Size, Fingerprint = %v, %d, %x", e.ModTime, e.Size, e.Fingerprint)
	}
	if len(m.Streams()) != 3 {
		t.Fatalf("Streams() = %d entries, wanted 3", len(m.Streams()))
	}
}

func TestManager_Filters(t *testing.T) {
	mn := cachetest.New(t)
	mn.PutCall("CachedMethodCalls", "a.cache", cachetest.Call("charMgr", "GetPublicInfo", intPayload(1)))
	mn.PutCall("CachedMethodCalls", "b.cache", cachetest.Call("marketProxy", "GetOrders", intPayload(2)))
	mn.PutCall("CachedObjects", "c.cache", cachetest.Call("marketProxy", "GetOrders", intPayload(3)))

	m := newManager(t, mn, nil)
	m.AddCacheFolderFilter("CachedMethodCalls")
	if got, want := paths(scan(t, m)), []string{"CachedMethodCalls/a.cache", "CachedMethodCalls/b.cache"}; !slices.Equal(got, want) {
		t.Fatalf("folder filter: entries = %v, wanted %v", got, want)
	}

	m.AddMethodFilter("GetOrders")
	if got, want := paths(scan(t, m)), []string{"CachedMethodCalls/b.cache"}; !slices.Equal(got, want) {
		t.Fatalf("folder and method filter: entries = %v, wanted %v", got, want)
	}
}

func TestManager_ErrorEntries(t *testing.T) {
	mn := cachetest.New(t)
	mn.PutCall("CachedMethodCalls", "good.cache", cachetest.Call("s", "m", intPayload(1)))
	bad := mn.Put("CachedMethodCalls", "bad.cache", cachetest.Hex("7e =0 3f"))

	entries := scan(t, newManager(t, mn, nil))
	if len(entries) != 2 {
		t.Fatalf("entries = %v, wanted 2", paths(entries))
	}
	e := entries[0]
	var cre *evecache.CacheReadError
	if e.Path != bad || !errors.As(e.Err, &cre) || cre.Off != 5 || cre.Path != bad {
		t.Fatalf("bad entry = %+v, wanted a CacheReadError at 5", e)
	}
	if e.Document != nil || e.Size != 6 {
		t.Fatalf("bad entry Document, Size = %v, %d", e.Document, e.Size)
	}
	if entries[1].Err != nil {
		t.Fatalf("good entry failed: %v", entries[1].Err)
	}
}

func TestManager_MissingRoot(t *testing.T) {
	mn := cachetest.New(t)
	mn.PutCall("CachedMethodCalls", "a.cache", cachetest.Call("s", "m", intPayload(1)))

	m := evecache.NewManager([]string{mn.Path("nowhere", ""), mn.Dir}, evecache.ManagerOptions{Options: cachetest.Options(t)})
	if got := paths(scan(t, m)); len(got) != 1 {
		t.Fatalf("entries = %v, wanted only a.cache", got)
	}
}

func TestManager_SkipUnchanged(t *testing.T) {
	mn := cachetest.New(t)
	mn.PutCall("CachedMethodCalls", "a.cache", cachetest.Call("s", "m", intPayload(1)))
	mn.PutCall("CachedMethodCalls", "b.cache", cachetest.Call("s", "m", intPayload(2)))

	db := evecache.NewMemDescriptorDB(evecache.DescriptorDBOptions{Logger: cachetest.Logger(t)})
	defer db.Close()
	m := newManager(t, mn, db)

	if n := len(scan(t, m)); n != 2 {
		t.Fatalf("first scan: %d entries, wanted 2", n)
	}
	rec, found, err := db.Artifact(mn.Path("CachedMethodCalls", "a.cache"))
	if err != nil || !found || !rec.Time.Equal(cachetest.Start) {
		t.Fatalf("Artifact = %+v, %v, %v", rec, found, err)
	}

	// without SkipUnchanged, the registry is only written
	if n := len(scan(t, m)); n != 2 {
		t.Fatalf("second scan: %d entries, wanted 2", n)
	}

	m = evecache.NewManager([]string{mn.Dir}, evecache.ManagerOptions{
		Options:       cachetest.Options(t),
		Registry:      db,
		SkipUnchanged: true,
	})
	if got := paths(scan(t, m)); len(got) != 0 {
		t.Fatalf("unchanged scan: entries = %v, wanted none", got)
	}

	mn.Advance(time.Hour)
	mn.PutCall("CachedMethodCalls", "b.cache", cachetest.Call("s", "m", intPayload(3)))
	entries := scan(t, m)
	if got, want := paths(entries), []string{"CachedMethodCalls/b.cache"}; !slices.Equal(got, want) {
		t.Fatalf("changed scan: entries = %v, wanted %v", got, want)
	}
	if n, _ := db.ArtifactCount(); n != 2 {
		t.Fatalf("ArtifactCount = %d, wanted 2", n)
	}
}

func TestManager_Canceled(t *testing.T) {
	mn := cachetest.New(t)
	for _, name := range []string{"a.cache", "b.cache", "c.cache", "d.cache"} {
		mn.PutCall("CachedMethodCalls", name, cachetest.Call("s", "m", intPayload(1)))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries, err := newManager(t, mn, nil).Scan(ctx)
	if !errors.Is(err, context.Canceled) || entries != nil {
		t.Fatalf("Scan = %v, %v, wanted context.Canceled", entries, err)
	}
}

func TestSplitArtifact(t *testing.T) {
	decode := func(e *evecache.Encoder) *evecache.Document {
		doc, err := evecache.DecodeBytes(e.Encode(), cachetest.Options(t))
		if err != nil {
			t.Fatalf("DecodeBytes: %v", err)
		}
		return doc
	}

	// the key is shared and the method is followed by a non-string
	e := evecache.NewEncoder()
	e.Tuple(2)
	e.Shared().Tuple(3).Str("marketProxy").Str("GetOrders").Int(10000002)
	e.List(1).Int(5)
	key, payload, method := evecache.SplitArtifact(decode(e))
	if method != "GetOrders" || key.Len() != 3 || !payload.Equal(evecache.List(evecache.Int(5))) {
		t.Fatalf("SplitArtifact = %v, %v, %q", key, payload, method)
	}

	e = evecache.NewEncoder()
	e.List(1).Int(5)
	key, payload, method = evecache.SplitArtifact(decode(e))
	if !key.IsNone() || method != "" || payload.Len() != 1 {
		t.Fatalf("SplitArtifact(list) = %v, %v, %q", key, payload, method)
	}

	key, payload, method = evecache.SplitArtifact(decode(evecache.NewEncoder()))
	if !key.IsNone() || !payload.IsNone() || method != "" {
		t.Fatalf("SplitArtifact(empty) = %v, %v, %q", key, payload, method)
	}
}
