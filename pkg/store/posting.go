package store

import "github.com/vmihailenco/msgpack/v5"

// postingList is the value stored under each index key: the set of object
// ids mapped to that key, deduplicated and in first-insertion order. It is
// msgpack-encoded as the in-memory leveldb value, the same encode/decode shape
// wingedpig/iporg's pkg/iporgdb.encodeRecord/decodeRecord use for Records.
type postingList struct {
	seen   map[string]struct{}
	values []string
}

func decodePosting(raw []byte) (*postingList, error) {
	p := &postingList{seen: make(map[string]struct{})}
	if raw == nil {
		return p, nil
	}
	var values []string
	if err := msgpack.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	for _, v := range values {
		if _, ok := p.seen[v]; !ok {
			p.seen[v] = struct{}{}
			p.values = append(p.values, v)
		}
	}
	return p, nil
}

func (p *postingList) add(value string) bool {
	if _, ok := p.seen[value]; ok {
		return false
	}
	p.seen[value] = struct{}{}
	p.values = append(p.values, value)
	return true
}

func (p *postingList) encode() ([]byte, error) {
	return msgpack.Marshal(p.values)
}
