package evecache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
)

const cacheFileExt = ".cache"

type ManagerOptions struct {
	Options

	// Workers is the number of artifacts decoded in parallel. Defaults to
	// GOMAXPROCS.
	Workers int

	// Registry records the fingerprint of every decoded artifact.
	Registry Registry

	// SkipUnchanged omits artifacts whose fingerprint matches the Registry.
	SkipUnchanged bool
}

// Manager finds and decodes cache artifacts under a set of machoNet folders.
type Manager struct {
	paths   []string
	opt     ManagerOptions
	folders map[string]bool
	methods map[string]bool

	mu      sync.Mutex
	entries []*Entry
}

// Entry is one artifact found by a Scan. Err is set when the artifact
// could not be read; the other fields are then partially filled.
type Entry struct {
	Path        string
	Size        int64
	ModTime     time.Time
	Fingerprint uint64

	Document *Document
	Key      Value
	Payload  Value
	Method   string

	Err error
}

func NewManager(paths []string, opt ManagerOptions) *Manager {
	if opt.Workers <= 0 {
		opt.Workers = runtime.GOMAXPROCS(0)
	}
	return &Manager{
		paths:   slices.Clone(paths),
		opt:     opt,
		folders: make(map[string]bool),
		methods: make(map[string]bool),
	}
}

// AddCacheFolderFilter restricts scanning to artifacts whose parent folder
// has the given name. Without folder filters every folder is scanned.
func (m *Manager) AddCacheFolderFilter(name string) {
	m.folders[name] = true
}

// AddMethodFilter restricts results to artifacts of the given remote
// method. Without method filters every artifact is kept.
func (m *Manager) AddMethodFilter(name string) {
	m.methods[name] = true
}

// Streams returns the entries kept by the last Scan.
func (m *Manager) Streams() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Scan decodes every matching artifact. Per-artifact failures are reported
// through Entry.Err; the returned error is only set when ctx is done.
func (m *Manager) Scan(ctx context.Context) ([]*Entry, error) {
	logger := m.opt.logger()
	start := time.Now()

	files, walkErrs := m.collect()

	jobs := make(chan string)
	results := make(chan *Entry)
	var wg sync.WaitGroup
	for range min(m.opt.Workers, max(len(files), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if e := m.process(path); e != nil {
					results <- e
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	entries := walkErrs
	for e := range results {
		entries = append(entries, e)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		return strings.Compare(a.Path, b.Path)
	})

	var failed int
	for _, e := range entries {
		if e.Err != nil {
			failed++
			logger.Warn("evecache: cannot read artifact", "path", e.Path, "err", e.Err)
		}
	}
	logger.Debug("evecache: scan done", "files", len(files), "kept", len(entries), "failed", failed, "elapsed", time.Since(start))

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return slices.Clone(entries), nil
}

// collect lists the artifacts to decode. Missing roots are skipped; other
// walk failures become error entries.
func (m *Manager) collect() (files []string, failures []*Entry) {
	logger := m.opt.logger()
	for _, root := range m.paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && errors.Is(err, fs.ErrNotExist) {
					logger.Debug("evecache: machoNet folder not found", "path", root)
					return nil
				}
				failures = append(failures, &Entry{Path: path, Err: err})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), cacheFileExt) {
				return nil
			}
			if len(m.folders) > 0 && !m.folders[filepath.Base(filepath.Dir(path))] {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			failures = append(failures, &Entry{Path: root, Err: err})
		}
	}
	return files, failures
}

// process decodes one artifact. It returns nil when the artifact is
// skipped or filtered out.
func (m *Manager) process(path string) *Entry {
	e := &Entry{Path: path}

	f, err := OpenCacheFile(path)
	if err != nil {
		e.Err = err
		return e
	}
	defer f.Close()
	e.Size = f.Size()
	e.ModTime = modTime(path)

	buf, err := NewCacheBuffer(f, m.opt.Options)
	if err != nil {
		e.Err = err
		return e
	}
	defer buf.Close()
	e.Fingerprint = buf.Fingerprint()

	reg := m.opt.Registry
	if reg != nil && m.opt.SkipUnchanged {
		rec, found, err := reg.Artifact(path)
		if err != nil {
			e.Err = err
			return e
		}
		if found && rec.Fingerprint == e.Fingerprint && rec.Size == e.Size {
			m.opt.logger().Debug("evecache: artifact unchanged", "path", path)
			return nil
		}
	}

	doc, err := buf.DecodeAll()
	if err != nil {
		e.Err = err
		return e
	}
	e.Document = doc
	e.Key, e.Payload, e.Method = SplitArtifact(doc)

	if reg != nil {
		rec := ArtifactRecord{Fingerprint: e.Fingerprint, Size: e.Size, Time: e.ModTime}
		if err := reg.PutArtifact(path, rec); err != nil {
			e.Err = err
			return e
		}
	}
	if len(m.methods) > 0 && !m.methods[e.Method] {
		return nil
	}
	return e
}

// SplitArtifact picks apart the usual (key, payload) layout of a cached
// remote call. The method is the last string of the key tuple. Artifacts of
// any other shape are returned whole as the payload.
func SplitArtifact(doc *Document) (key, payload Value, method string) {
	if len(doc.Values) == 0 {
		return None(), None(), ""
	}
	top, err := doc.Resolve(doc.Values[0])
	if err != nil || top.kind != KindTuple || len(top.items) != 2 {
		return None(), doc.Values[0], ""
	}
	key, payload = top.items[0], top.items[1]
	if k, err := doc.Resolve(key); err == nil {
		key = k
	}
	if p, err := doc.Resolve(payload); err == nil {
		payload = p
	}
	if key.kind == KindTuple || key.kind == KindList {
		for i := len(key.items) - 1; i >= 0; i-- {
			item, err := doc.Resolve(key.items[i])
			if err != nil {
				continue
			}
			if s, ok := item.AsStr(); ok {
				method = s
				break
			}
		}
	}
	return key, payload, method
}

func modTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime().UTC()
}
