package storage

import "github.com/dgraph-io/badger/v4"

func badgerIterOptsKeyOnly(prefix []byte) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	return opts
}

// countPrefix counts keys under prefix without reading values.
func countPrefix(txn *badger.Txn, prefix []byte) (int64, error) {
	it := txn.NewIterator(badgerIterOptsKeyOnly(prefix))
	defer it.Close()

	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n, nil
}

// edgeIDsWithPrefix collects the edge IDs of an adjacency index in key order.
func edgeIDsWithPrefix(txn *badger.Txn, prefix []byte) []EdgeID {
	it := txn.NewIterator(badgerIterOptsKeyOnly(prefix))
	defer it.Close()

	var ids []EdgeID
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if id := extractEdgeIDFromIndexKey(it.Item().Key()); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
