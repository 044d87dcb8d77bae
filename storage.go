package evecache

import "errors"

var (
	errStorageClosed     = errors.New("storage closed")
	errStorageTxReadOnly = errors.New("transaction is read-only")
)

// storage is the key-value backend of a DescriptorDB: Bolt on disk, or a
// map in memory.
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	// Bucket returns a root bucket, or nil if it doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket returns a root bucket, creating it if needed. Only valid
	// in writable transactions.
	CreateBucket(name string) (storageBucket, error)

	Commit() error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback() error
}

// storageBucket maps descriptor names or artifact paths to records.
type storageBucket interface {
	// Get returns nil for missing keys. The result is only valid until the
	// end of the transaction.
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error

	// Cursor iterates over the keys in byte order.
	Cursor() storageCursor

	KeyCount() int
}

type storageCursor interface {
	First() (key, value []byte)
	Next() (key, value []byte)
}

// withTx runs f in a transaction, committing writable ones when f succeeds.
func withTx(st storage, writable bool, f func(tx storageTx) error) error {
	tx, err := st.BeginTx(writable)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	if writable {
		return tx.Commit()
	}
	return nil
}
