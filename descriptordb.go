package evecache

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

const (
	descriptorsBucket = "descriptors"
	artifactsBucket   = "artifacts"
)

type DescriptorDBOptions struct {
	Logger *slog.Logger

	// ReadOnly opens the file with a shared lock and rejects writes.
	ReadOnly bool

	// Timeout bounds waiting for the file lock. Zero waits 10 seconds.
	Timeout time.Duration

	// IsTesting trades durability for speed.
	IsTesting bool
}

// DescriptorDB persists descriptors and the artifact registry. It is a
// DescriptorSource and a Registry.
type DescriptorDB struct {
	st     storage
	path   string
	logger *slog.Logger
}

// OpenDescriptorDB opens or creates a Bolt-backed descriptor database.
func OpenDescriptorDB(path string, opt DescriptorDBOptions) (*DescriptorDB, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = 10 * time.Second
	}
	bopt.ReadOnly = opt.ReadOnly
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("descriptor db: %w", err)
	}
	db := &DescriptorDB{st: newBoltStorage(bdb), path: path, logger: loggerOr(opt.Logger)}
	if !opt.ReadOnly {
		err = withTx(db.st, true, func(tx storageTx) error {
			for _, name := range []string{descriptorsBucket, artifactsBucket} {
				if _, err := tx.CreateBucket(name); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			bdb.Close()
			return nil, fmt.Errorf("descriptor db: %w", err)
		}
	}
	return db, nil
}

// NewMemDescriptorDB returns a DescriptorDB that lives in memory only.
func NewMemDescriptorDB(opt DescriptorDBOptions) *DescriptorDB {
	return &DescriptorDB{st: newMemStorage(), logger: loggerOr(opt.Logger)}
}

func (db *DescriptorDB) Path() string { return db.path }

func (db *DescriptorDB) Close() error {
	return db.st.Close()
}

func (db *DescriptorDB) PutDescriptor(desc *Descriptor) error {
	if err := CheckDescriptorName(desc.Name()); err != nil {
		return err
	}
	if err := desc.Validate(); err != nil {
		return err
	}
	data := encodeRecord(nil, descriptorToRecord(desc))
	err := withTx(db.st, true, func(tx storageTx) error {
		b, err := tx.CreateBucket(descriptorsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(desc.Name()), data)
	})
	if err != nil {
		return fmt.Errorf("descriptor db: put %q: %w", desc.Name(), err)
	}
	db.logger.Debug("evecache: descriptor stored", "name", desc.Name(), "columns", desc.Len())
	return nil
}

func (db *DescriptorDB) DeleteDescriptor(name string) error {
	return withTx(db.st, true, func(tx storageTx) error {
		b := tx.Bucket(descriptorsBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(name))
	})
}

// LookupDescriptor returns nil, nil for unknown names.
func (db *DescriptorDB) LookupDescriptor(name string) (*Descriptor, error) {
	var desc *Descriptor
	err := withTx(db.st, false, func(tx storageTx) error {
		b := tx.Bucket(descriptorsBucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(name))
		if data == nil {
			return nil
		}
		var rec descriptorRecord
		if err := decodeRecord(data, &rec); err != nil {
			return err
		}
		desc = rec.descriptor(name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("descriptor db: lookup %q: %w", name, err)
	}
	return desc, nil
}

// ListDescriptors returns every stored descriptor, sorted by name.
func (db *DescriptorDB) ListDescriptors() ([]*Descriptor, error) {
	var result []*Descriptor
	err := withTx(db.st, false, func(tx storageTx) error {
		b := tx.Bucket(descriptorsBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec descriptorRecord
			if err := decodeRecord(v, &rec); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
			result = append(result, rec.descriptor(string(k)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("descriptor db: list: %w", err)
	}
	return result, nil
}

// ArtifactRecord remembers an artifact that has already been processed.
type ArtifactRecord struct {
	Fingerprint uint64    `msgpack:"f"`
	Size        int64     `msgpack:"s"`
	Time        time.Time `msgpack:"t"`
}

// Registry remembers processed artifacts by path.
type Registry interface {
	Artifact(path string) (ArtifactRecord, bool, error)
	PutArtifact(path string, rec ArtifactRecord) error
}

var _ Registry = (*DescriptorDB)(nil)
var _ DescriptorSource = (*DescriptorDB)(nil)

func (db *DescriptorDB) Artifact(path string) (ArtifactRecord, bool, error) {
	var rec ArtifactRecord
	var found bool
	err := withTx(db.st, false, func(tx storageTx) error {
		b := tx.Bucket(artifactsBucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(path))
		if data == nil {
			return nil
		}
		found = true
		return decodeRecord(data, &rec)
	})
	if err != nil {
		return ArtifactRecord{}, false, fmt.Errorf("descriptor db: artifact %s: %w", path, err)
	}
	return rec, found, nil
}

func (db *DescriptorDB) PutArtifact(path string, rec ArtifactRecord) error {
	data := encodeRecord(nil, &rec)
	err := withTx(db.st, true, func(tx storageTx) error {
		b, err := tx.CreateBucket(artifactsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(path), data)
	})
	if err != nil {
		return fmt.Errorf("descriptor db: put artifact %s: %w", path, err)
	}
	return nil
}

// ArtifactCount returns the number of registered artifacts.
func (db *DescriptorDB) ArtifactCount() (int, error) {
	var n int
	err := withTx(db.st, false, func(tx storageTx) error {
		if b := tx.Bucket(artifactsBucket); b != nil {
			n = b.KeyCount()
		}
		return nil
	})
	return n, err
}

type descriptorJSON struct {
	Name    string       `json:"name"`
	Columns []columnJSON `json:"columns"`
}

type columnJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ReadDescriptorsJSON parses a JSON array of {"name", "columns": [{"name",
// "type"}]} objects. Types are ADO type names or numeric codes.
func ReadDescriptorsJSON(r io.Reader) ([]*Descriptor, error) {
	var recs []descriptorJSON
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("descriptors: %w", err)
	}
	result := make([]*Descriptor, 0, len(recs))
	for _, rec := range recs {
		if err := CheckDescriptorName(rec.Name); err != nil {
			return nil, err
		}
		cols := make([]Column, len(rec.Columns))
		for i, c := range rec.Columns {
			t, err := ParseAdoType(c.Type)
			if err != nil {
				return nil, rowErrf(rec.Name, c.Name, err, "")
			}
			cols[i] = Column{Name: c.Name, Type: t}
		}
		result = append(result, NewDescriptor(rec.Name, cols...))
	}
	return result, nil
}

func WriteDescriptorsJSON(w io.Writer, descs []*Descriptor) error {
	recs := make([]descriptorJSON, len(descs))
	for i, desc := range descs {
		recs[i].Name = desc.name
		recs[i].Columns = make([]columnJSON, len(desc.columns))
		for j, col := range desc.columns {
			recs[i].Columns[j] = columnJSON{Name: col.Name, Type: col.Type.String()}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// LoadDescriptorsJSONFile reads a JSON descriptor file into a DescriptorMap.
func LoadDescriptorsJSONFile(path string) (DescriptorMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	descs, err := ReadDescriptorsJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m := make(DescriptorMap, len(descs))
	for _, desc := range descs {
		m.Add(desc)
	}
	return m, nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
