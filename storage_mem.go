package evecache

import (
	"maps"
	"slices"
	"sync"
)

// memStorage keeps buckets in maps. Writers are serialized and work on a
// copy that replaces the committed state; readers see the state as of
// BeginTx.
type memStorage struct {
	writer sync.Mutex

	mu      sync.RWMutex
	buckets map[string]memBucket
	closed  bool
}

type memBucket map[string][]byte

func newMemStorage() storage {
	return &memStorage{buckets: make(map[string]memBucket)}
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		s.writer.Lock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		if writable {
			s.writer.Unlock()
		}
		return nil, errStorageClosed
	}

	tx := &memTx{s: s, writable: writable, buckets: s.buckets}
	if writable {
		// buckets are copied on first write, see memTx.own
		tx.buckets = maps.Clone(s.buckets)
		tx.owned = make(map[string]bool)
	}
	return tx, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	return nil
}

type memTx struct {
	s        *memStorage
	writable bool
	done     bool
	buckets  map[string]memBucket
	owned    map[string]bool
}

func (tx *memTx) Bucket(name string) storageBucket {
	if _, ok := tx.buckets[name]; !ok {
		return nil
	}
	return &memBucketHandle{tx: tx, name: name}
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if !tx.writable {
		return nil, errStorageTxReadOnly
	}
	if _, ok := tx.buckets[name]; !ok {
		tx.buckets[name] = make(memBucket)
		tx.owned[name] = true
	}
	return &memBucketHandle{tx: tx, name: name}, nil
}

// own returns a bucket the transaction may modify.
func (tx *memTx) own(name string) memBucket {
	b := tx.buckets[name]
	if !tx.owned[name] {
		b = maps.Clone(b)
		tx.buckets[name] = b
		tx.owned[name] = true
	}
	return b
}

func (tx *memTx) Commit() error {
	if tx.done {
		return nil
	}
	if !tx.writable {
		return errStorageTxReadOnly
	}
	tx.done = true
	defer tx.s.writer.Unlock()

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.s.closed {
		return errStorageClosed
	}
	tx.s.buckets = tx.buckets
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	if tx.writable {
		tx.s.writer.Unlock()
	}
	return nil
}

type memBucketHandle struct {
	tx   *memTx
	name string
}

func (h *memBucketHandle) Get(key []byte) []byte {
	return h.tx.buckets[h.name][string(key)]
}

func (h *memBucketHandle) Put(key, value []byte) error {
	if !h.tx.writable {
		return errStorageTxReadOnly
	}
	h.tx.own(h.name)[string(key)] = slices.Clone(value)
	return nil
}

func (h *memBucketHandle) Delete(key []byte) error {
	if !h.tx.writable {
		return errStorageTxReadOnly
	}
	delete(h.tx.own(h.name), string(key))
	return nil
}

func (h *memBucketHandle) KeyCount() int {
	return len(h.tx.buckets[h.name])
}

func (h *memBucketHandle) Cursor() storageCursor {
	b := h.tx.buckets[h.name]
	return &memCursor{b: b, keys: slices.Sorted(maps.Keys(b)), pos: -1}
}

// memCursor walks the keys present when it was created.
type memCursor struct {
	b    memBucket
	keys []string
	pos  int
}

func (c *memCursor) at(i int) ([]byte, []byte) {
	c.pos = i
	if i >= len(c.keys) {
		return nil, nil
	}
	k := c.keys[i]
	return []byte(k), c.b[k]
}

func (c *memCursor) First() ([]byte, []byte) { return c.at(0) }
func (c *memCursor) Next() ([]byte, []byte)  { return c.at(c.pos + 1) }
