package spill

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerTier stores records in BadgerDB under "spill/<run>/<key>".
type BadgerTier struct {
	db     *badger.DB
	owned  bool
	prefix []byte
	closed bool
}

// NewBadgerTier creates a tier with a fresh run namespace on a shared
// database. Close drops the namespace but leaves the database open.
func NewBadgerTier(db *badger.DB) *BadgerTier {
	return &BadgerTier{
		db:     db,
		prefix: []byte("spill/" + uuid.New().String() + "/"),
	}
}

// OpenBadgerTier opens a database owned by the tier. An empty dir runs
// BadgerDB in memory.
func OpenBadgerTier(dir string) (*BadgerTier, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill BadgerDB: %w", err)
	}
	t := NewBadgerTier(db)
	t.owned = true
	return t, nil
}

func (t *BadgerTier) key(k string) []byte {
	out := make([]byte, 0, len(t.prefix)+len(k))
	out = append(out, t.prefix...)
	return append(out, k...)
}

func (t *BadgerTier) Save(key string, data []byte) error {
	if t.closed {
		return ErrTierClosed
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.key(key), data)
	})
}

func (t *BadgerTier) Load(key string) ([]byte, bool, error) {
	if t.closed {
		return nil, false, ErrTierClosed
	}
	var data []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.key(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (t *BadgerTier) Delete(key string) error {
	if t.closed {
		return ErrTierClosed
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(t.key(key))
	})
}

func (t *BadgerTier) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err := t.db.DropPrefix(t.prefix)
	if t.owned {
		if cerr := t.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
