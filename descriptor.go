package evecache

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

const maxDescriptorNameLen = 128

type Column struct {
	Name string
	Type AdoType
}

func (c Column) String() string {
	return c.Name + ":" + c.Type.String()
}

// Descriptor is a named row schema. Descriptors are immutable once built.
type Descriptor struct {
	name    string
	columns []Column
	byName  map[string]int
}

func NewDescriptor(name string, columns ...Column) *Descriptor {
	desc := &Descriptor{
		name:    name,
		columns: append([]Column(nil), columns...),
		byName:  make(map[string]int, len(columns)),
	}
	for i, col := range desc.columns {
		if _, dup := desc.byName[col.Name]; !dup {
			desc.byName[col.Name] = i
		}
	}
	return desc
}

func (desc *Descriptor) Name() string        { return desc.name }
func (desc *Descriptor) Len() int            { return len(desc.columns) }
func (desc *Descriptor) Column(i int) Column { return desc.columns[i] }

func (desc *Descriptor) Columns() []Column {
	return append([]Column(nil), desc.columns...)
}

// ColumnIndex returns the position of the named column, or -1.
func (desc *Descriptor) ColumnIndex(name string) int {
	if i, ok := desc.byName[name]; ok {
		return i
	}
	return -1
}

// Validate checks that every column has a known ADO type.
func (desc *Descriptor) Validate() error {
	for _, col := range desc.columns {
		if !col.Type.Valid() {
			return rowErrf(desc.name, col.Name, ErrUnknownAdoType, "type code %d", uint16(col.Type))
		}
	}
	return nil
}

func (desc *Descriptor) String() string {
	var buf strings.Builder
	buf.WriteString(desc.name)
	buf.WriteByte('(')
	for i, col := range desc.columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(col.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

func (desc *Descriptor) Equal(another *Descriptor) bool {
	if desc == another {
		return true
	}
	if desc == nil || another == nil || desc.name != another.name || len(desc.columns) != len(another.columns) {
		return false
	}
	for i, col := range desc.columns {
		if col != another.columns[i] {
			return false
		}
	}
	return true
}

// CheckDescriptorName rejects names that cannot be descriptor keys: empty,
// longer than 128 bytes, or containing non-printable characters.
func CheckDescriptorName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrBadDescriptorName)
	}
	if len(name) > maxDescriptorNameLen {
		return fmt.Errorf("%w: %d bytes long, max %d", ErrBadDescriptorName, len(name), maxDescriptorNameLen)
	}
	for _, r := range name {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: %q", ErrBadDescriptorName, name)
		}
	}
	return nil
}

// DescriptorSource is the backing lookup of descriptors. LookupDescriptor
// returns nil, nil when the name is unknown.
type DescriptorSource interface {
	LookupDescriptor(name string) (*Descriptor, error)
}

// DescriptorMap is a fixed in-memory DescriptorSource.
type DescriptorMap map[string]*Descriptor

func (m DescriptorMap) LookupDescriptor(name string) (*Descriptor, error) {
	return m[name], nil
}

func (m DescriptorMap) Add(desc *Descriptor) DescriptorMap {
	m[desc.Name()] = desc
	return m
}

// DescriptorStore caches descriptors loaded from a DescriptorSource. Each
// name is loaded at most once, even under concurrent first lookups;
// lookups of already loaded names don't contend on the source.
type DescriptorStore struct {
	source DescriptorSource

	mu      sync.Mutex
	entries map[string]*descEntry
	loads   int
}

type descEntry struct {
	once sync.Once
	desc *Descriptor
	err  error
}

func NewDescriptorStore(source DescriptorSource) *DescriptorStore {
	return &DescriptorStore{
		source:  source,
		entries: make(map[string]*descEntry),
	}
}

// Lookup returns the named descriptor. It fails with ErrBadDescriptorName
// for malformed names and ErrDescriptorNotFound for unknown ones.
func (ds *DescriptorStore) Lookup(name string) (*Descriptor, error) {
	if err := CheckDescriptorName(name); err != nil {
		return nil, err
	}

	ds.mu.Lock()
	e := ds.entries[name]
	if e == nil {
		e = &descEntry{}
		ds.entries[name] = e
	}
	ds.mu.Unlock()

	e.once.Do(func() {
		ds.mu.Lock()
		ds.loads++
		ds.mu.Unlock()
		e.desc, e.err = ds.load(name)
	})
	if e.err != nil {
		ds.forgetFailed(name, e)
	}
	return e.desc, e.err
}

func (ds *DescriptorStore) load(name string) (*Descriptor, error) {
	if ds.source == nil {
		return nil, fmt.Errorf("%w: %q (no descriptor source)", ErrDescriptorNotFound, name)
	}
	desc, err := ds.source.LookupDescriptor(name)
	if err != nil {
		return nil, fmt.Errorf("loading descriptor %q: %w", name, err)
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: %q", ErrDescriptorNotFound, name)
	}
	if desc.Name() != name {
		return nil, fmt.Errorf("loading descriptor %q: source returned %q", name, desc.Name())
	}
	return desc, nil
}

// forgetFailed drops a failed entry so that a later lookup retries, e.g.
// after the descriptor has been added to the source.
func (ds *DescriptorStore) forgetFailed(name string, e *descEntry) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.entries[name] == e {
		delete(ds.entries, name)
	}
}

// Loads returns how many times the store consulted its source.
func (ds *DescriptorStore) Loads() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.loads
}
