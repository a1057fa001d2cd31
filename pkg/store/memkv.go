// Package store implements the typed in-memory index store (spec C3/C4): a
// schema-driven catalog over heterogeneously-indexed attributes, backed by an
// in-memory ordered key-value map so that prefix and subnet scans reuse
// leveldb's range iterators instead of a hand-rolled binary search. This mirrors wingedpig/iporg's pkg/iporgdb.DB wrapper
// around goleveldb, but opens the database against
// leveldb/storage.NewMemStorage() instead of a file path: nothing is ever
// written to disk, matching the "no persistence of mutations" non-goal,
// while keeping the same Open/Get/Put/NewIterator shape.
package store

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// memKV is an in-memory, ordered key-value map used as the backing store for
// every index and for the main object table. It never touches disk.
type memKV struct {
	db     *leveldb.DB
	mu     sync.RWMutex
	closed bool
}

func openMemKV() (*memKV, error) {
	opts := &opt.Options{
		Compression: opt.SnappyCompression,
	}
	db, err := leveldb.Open(storage.NewMemStorage(), opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory kv: %w", err)
	}
	return &memKV{db: db}, nil
}

func (k *memKV) Get(key []byte) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, err := k.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (k *memKV) Put(key, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.db.Put(key, value, nil)
}

func (k *memKV) NewIterator(r *util.Range) iterator.Iterator {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.db.NewIterator(r, nil)
}

func (k *memKV) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.db.Close()
}
