package store

import (
	"strings"

	"github.com/syndtr/goleveldb/leveldb/util"

	"rwhoisd/pkg/cidr"
)

// CidrIndex maps CIDR prefixes (or dash-delimited address ranges, expanded to
// their minimal covering prefixes) to object-id posting lists, keyed so that
// leveldb's natural byte ordering reproduces cidr.Compare's ordering. Grounded
// on original_source/rwhoisd/MemIndex.py's CidrMemIndex.
type CidrIndex struct {
	kv *memKV
}

func newCidrIndex() (*CidrIndex, error) {
	kv, err := openMemKV()
	if err != nil {
		return nil, err
	}
	return &CidrIndex{kv: kv}, nil
}

func (ci *CidrIndex) Close() error { return ci.kv.Close() }

// looksLikeCidrKey reports whether key parses as a plain CIDR or a
// dash-delimited netblock range, i.e. whether CidrIndex.AddString can ingest
// it at all. Mirrors CidrMemIndex._conv_key_value's dispatch in the Python
// original.
func looksLikeCidrKey(key string) bool {
	if strings.Contains(key, "-") {
		_, err := parseKeyAsPrefixes(key)
		return err == nil
	}
	return cidr.ValidCidr(key).IsValid()
}

// AddString records key (a CIDR literal, or a dash-delimited
// "start - end" address range) as mapping to value. A range is expanded via
// cidr.NetblockToCidr into its minimal covering prefixes, each of which gets
// its own posting-list entry for value.
func (ci *CidrIndex) AddString(key, value string) error {
	prefixes, err := parseKeyAsPrefixes(key)
	if err != nil {
		return err
	}
	for _, p := range prefixes {
		if err := ci.Add(p, value); err != nil {
			return err
		}
	}
	return nil
}

func parseKeyAsPrefixes(key string) ([]cidr.Prefix, error) {
	if i := strings.IndexByte(key, '-'); i >= 0 && !strings.Contains(key, ":") {
		start, err := cidr.New(strings.TrimSpace(key[:i]), -1)
		if err != nil {
			return nil, err
		}
		end, err := cidr.New(strings.TrimSpace(key[i+1:]), -1)
		if err != nil {
			return nil, err
		}
		return cidr.NetblockToCidr(start.Addr(), end.Addr())
	}
	p, err := cidr.New(key, -1)
	if err != nil {
		return nil, err
	}
	return []cidr.Prefix{p}, nil
}

// Add records that p maps to value.
func (ci *CidrIndex) Add(p cidr.Prefix, value string) error {
	key := encodeCidrKey(p)
	raw, err := ci.kv.Get(key)
	if err != nil {
		return err
	}
	pl, err := decodePosting(raw)
	if err != nil {
		return err
	}
	pl.add(value)
	enc, err := pl.encode()
	if err != nil {
		return err
	}
	return ci.kv.Put(key, enc)
}

// FindExact returns the posting list stored exactly under p, or nil.
func (ci *CidrIndex) FindExact(p cidr.Prefix, max int) ([]string, error) {
	raw, err := ci.kv.Get(encodeCidrKey(p))
	if err != nil {
		return nil, err
	}
	pl, err := decodePosting(raw)
	if err != nil {
		return nil, err
	}
	return truncate(pl.values, max), nil
}

// FindSubnets returns the deduplicated union of every entry whose key is a
// subnet of p (reflexive). A full scan of p's address family is used, which
// is simple and correct for the modest index sizes an in-memory directory
// holds; entries are filtered with cidr.Prefix.IsSubnet.
func (ci *CidrIndex) FindSubnets(p cidr.Prefix, max int) ([]string, error) {
	result := NewIndexResult()
	it := ci.kv.NewIterator(&util.Range{
		Start: cidrFamilyLowerBound(p.Family()),
		Limit: cidrKeyUpperBound(p.Family()),
	})
	defer it.Release()
	for it.Next() {
		cand, err := decodeCidrKey(it.Key())
		if err != nil {
			return nil, err
		}
		if !cand.IsSubnet(p) {
			continue
		}
		pl, err := decodePosting(it.Value())
		if err != nil {
			return nil, err
		}
		result.AddAll(pl.values)
		if max > 0 && result.Len() >= max {
			break
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return truncate(result.IDs(), max), nil
}

// FindSupernets returns every entry whose key is a supernet of p (reflexive),
// walking p's prefix length down to /0, without deduplication (matching
// CidrMemIndex.find_supernets, which concatenates rather than sets).
func (ci *CidrIndex) FindSupernets(p cidr.Prefix, max int) ([]string, error) {
	var out []string
	for netlen := p.Bits(); netlen >= 0; netlen-- {
		cand, err := cidr.New(p.Addr().String(), netlen)
		if err != nil {
			return nil, err
		}
		vals, err := ci.FindExact(cand, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
	}
	return out, nil
}

// Find implements the CidrMemIndex.find dispatch: prefixMatch true means "all
// supernets" (a single trailing "*" on a CIDR-indexed query term), false
// means exact-match-or-closest-enclosing-supernet (no wildcard at all).
func (ci *CidrIndex) Find(p cidr.Prefix, prefixMatch bool, max int) ([]string, error) {
	if prefixMatch {
		return ci.FindSupernets(p, max)
	}
	vals, err := ci.FindExact(p, max)
	if err != nil {
		return nil, err
	}
	if len(vals) > 0 {
		return vals, nil
	}
	for netlen := p.Bits() - 1; netlen >= 0; netlen-- {
		cand, err := cidr.New(p.Addr().String(), netlen)
		if err != nil {
			return nil, err
		}
		vals, err := ci.FindExact(cand, max)
		if err != nil {
			return nil, err
		}
		if len(vals) > 0 {
			return vals, nil
		}
	}
	return nil, nil
}
