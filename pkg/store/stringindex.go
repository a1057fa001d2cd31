package store

import (
	"github.com/syndtr/goleveldb/leveldb/util"
)

// StringIndex maps opaque string keys to object-id posting lists, backed by
// an in-memory ordered kv so prefix scans are a plain forward iteration.
// Grounded on original_source/rwhoisd/MemIndex.py's MemIndex (the string
// flavor), restructured around goleveldb the way
// wingedpig/iporg's pkg/iporgdb indexes string keys.
type StringIndex struct {
	kv *memKV
}

func newStringIndex() (*StringIndex, error) {
	kv, err := openMemKV()
	if err != nil {
		return nil, err
	}
	return &StringIndex{kv: kv}, nil
}

func (si *StringIndex) Close() error { return si.kv.Close() }

// Add records that key maps to value, deduplicating within key's posting
// list.
func (si *StringIndex) Add(key, value string) error {
	return si.addRaw([]byte(key), value)
}

func (si *StringIndex) addRaw(key []byte, value string) error {
	raw, err := si.kv.Get(key)
	if err != nil {
		return err
	}
	p, err := decodePosting(raw)
	if err != nil {
		return err
	}
	p.add(value)
	enc, err := p.encode()
	if err != nil {
		return err
	}
	return si.kv.Put(key, enc)
}

// Find looks up key. If prefixMatch is false, it returns key's own posting
// list (exact match). If prefixMatch is true, it unions the posting lists of
// every key having key as a byte prefix, walked in sorted order, stopping
// once max distinct values have been collected (max<=0 means unlimited).
func (si *StringIndex) Find(key string, prefixMatch bool, max int) ([]string, error) {
	if !prefixMatch {
		raw, err := si.kv.Get([]byte(key))
		if err != nil {
			return nil, err
		}
		p, err := decodePosting(raw)
		if err != nil {
			return nil, err
		}
		return truncate(p.values, max), nil
	}

	result := NewIndexResult()
	it := si.kv.NewIterator(util.BytesPrefix([]byte(key)))
	defer it.Release()
	for it.Next() {
		p, err := decodePosting(it.Value())
		if err != nil {
			return nil, err
		}
		result.AddAll(p.values)
		if max > 0 && result.Len() >= max {
			break
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return truncate(result.IDs(), max), nil
}

func truncate(vals []string, max int) []string {
	if max > 0 && len(vals) > max {
		return vals[:max]
	}
	return vals
}
