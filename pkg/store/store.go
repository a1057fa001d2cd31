// Package store implements the typed in-memory index store (spec C3/C4): a
// schema-driven catalog over heterogeneously-indexed attributes, backed by an
// in-memory ordered key-value map so that prefix and subnet scans reuse
// leveldb's range iterators instead of a hand-rolled binary search. This mirrors wingedpig/iporg's pkg/iporgdb.DB wrapper
// around goleveldb, but opens the database against
// leveldb/storage.NewMemStorage() instead of a file path: nothing is ever
// written to disk, matching the "no persistence of mutations" non-goal,
// while keeping the same Open/Get/Put/NewIterator shape.
//
// Store itself plays the role of original_source/rwhoisd/MemDB.py's MemDB:
// it owns the schema, the per-attribute indexes, the main object table and
// the auth-area/class-name registries built up as objects are loaded.
package store

import (
	"fmt"
	"strings"

	"rwhoisd/pkg/cidr"
	"rwhoisd/pkg/object"
	"rwhoisd/pkg/rwerr"
)

// Store is the in-memory object and index catalog for one RWhois server
// process. It is built once by a loader and is safe for concurrent reads
// once loading has finished; it is not safe for concurrent AddObject calls.
type Store struct {
	schema map[string]IndexKind

	// normalAttrs/cidrAttrs/referralAttrs are the ordered attribute-name
	// lists spec §3 calls normal_indexes/cidr_indexes/referral attributes,
	// in first-registered order, so unconstrained fan-out (SearchNormal,
	// SearchCidr, SearchReferral) is deterministic across runs rather than
	// depending on Go's randomized map iteration order. Built alongside
	// schema by registerSchemaAttr as baselineSchema/InitSchema register
	// each attribute.
	normalAttrs   []string
	cidrAttrs     []string
	referralAttrs []string

	stringIdx map[string]*StringIndex
	cidrIdx   map[string]*CidrIndex
	comboIdx  map[string]*ComboIndex

	objects     map[string]*object.Object
	objectOrder []string

	authAreas map[string]struct{}
	classes   map[string]struct{}
}

// New returns an empty Store with the baseline schema loaded.
func New() *Store {
	s := &Store{
		schema:    make(map[string]IndexKind),
		stringIdx: make(map[string]*StringIndex),
		cidrIdx:   make(map[string]*CidrIndex),
		comboIdx:  make(map[string]*ComboIndex),
		objects:   make(map[string]*object.Object),
		authAreas: make(map[string]struct{}),
		classes:   make(map[string]struct{}),
	}
	for name, kind := range baselineSchema() {
		s.registerSchemaAttr(name, kind)
	}
	return s
}

// registerSchemaAttr records attr's kind in s.schema and, the first time
// attr is registered under a fan-out-eligible kind, appends it to the
// relevant ordered list (normalAttrs for N/A, cidrAttrs for C/A,
// referralAttrs for R) so SearchNormal/SearchCidr/SearchReferral's
// unconstrained fan-out visits attributes in a fixed, reproducible order.
func (s *Store) registerSchemaAttr(name string, kind IndexKind) {
	s.schema[name] = kind
	switch kind {
	case KindN, KindA:
		if !containsStr(s.normalAttrs, name) {
			s.normalAttrs = append(s.normalAttrs, name)
		}
	}
	switch kind {
	case KindC, KindA:
		if !containsStr(s.cidrAttrs, name) {
			s.cidrAttrs = append(s.cidrAttrs, name)
		}
	}
	if kind == KindR {
		if !containsStr(s.referralAttrs, name) {
			s.referralAttrs = append(s.referralAttrs, name)
		}
	}
}

func containsStr(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// InitSchema parses schema-file lines of the form "attr-name = KIND" (KIND
// one of None, N, C, A, R), '#'-prefixed comments and blank lines ignored,
// merging into the baseline schema. Grounded on MemDB.py's init_schema,
// which both reads and interprets the schema file itself rather than
// delegating to a separate parser.
func (s *Store) InitSchema(lines []string) error {
	for lineNo, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("schema line %d: missing '='", lineNo+1)
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		kind, err := parseIndexKind(parts[1])
		if err != nil {
			return fmt.Errorf("schema line %d: %w", lineNo+1, err)
		}
		s.registerSchemaAttr(name, kind)
	}
	return nil
}

// Close releases every underlying in-memory kv. It does not clear the object
// table; call it only when the Store itself is being discarded.
func (s *Store) Close() error {
	var firstErr error
	for _, idx := range s.stringIdx {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, idx := range s.cidrIdx {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, idx := range s.comboIdx {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// kindOf returns the schema classification of attr, defaulting to KindNone
// for attributes the schema never mentions (an unindexed attribute can still
// be stored and returned, just never searched).
func (s *Store) kindOf(attr string) IndexKind {
	if k, ok := s.schema[strings.ToLower(attr)]; ok {
		return k
	}
	return KindNone
}

// IsAttribute reports whether attr is known to the schema.
func (s *Store) IsAttribute(attr string) bool {
	_, ok := s.schema[strings.ToLower(attr)]
	return ok
}

// IsIndexedAttr reports whether attr is searchable when named explicitly in
// an unconstrained (bare) or attr=value query term: kinds N, C and A. Kind R
// is deliberately excluded — referral attributes are searched only through
// SearchReferral during referral chasing, never picked as a clause's
// indexable term.
func (s *Store) IsIndexedAttr(attr string) bool {
	return s.kindOf(attr).Searchable()
}

// IsObjectClass reports whether className has been seen on at least one
// loaded object.
func (s *Store) IsObjectClass(className string) bool {
	_, ok := s.classes[strings.ToLower(className)]
	return ok
}

// IsAuthArea reports whether area has been seen as an auth-area value on at
// least one loaded object.
func (s *Store) IsAuthArea(area string) bool {
	_, ok := s.authAreas[strings.ToLower(area)]
	return ok
}

// AuthAreas returns every distinct auth-area value seen across loaded
// objects, for referral chasing's containment scan (spec §4.6).
func (s *Store) AuthAreas() []string {
	out := make([]string, 0, len(s.authAreas))
	for area := range s.authAreas {
		out = append(out, area)
	}
	return out
}

func (s *Store) ensureStringIndex(attr string) (*StringIndex, error) {
	if idx, ok := s.stringIdx[attr]; ok {
		return idx, nil
	}
	idx, err := newStringIndex()
	if err != nil {
		return nil, err
	}
	s.stringIdx[attr] = idx
	return idx, nil
}

func (s *Store) ensureCidrIndex(attr string) (*CidrIndex, error) {
	if idx, ok := s.cidrIdx[attr]; ok {
		return idx, nil
	}
	idx, err := newCidrIndex()
	if err != nil {
		return nil, err
	}
	s.cidrIdx[attr] = idx
	return idx, nil
}

func (s *Store) ensureComboIndex(attr string) (*ComboIndex, error) {
	if idx, ok := s.comboIdx[attr]; ok {
		return idx, nil
	}
	idx, err := newComboIndex()
	if err != nil {
		return nil, err
	}
	s.comboIdx[attr] = idx
	return idx, nil
}

// AddObject rejects obj with an error if it has no id or its id is already
// loaded; otherwise it records obj in the main object table, updates the auth-area/class-name registries, and indexes every
// searchable attribute value. Grounded on MemDB.py's add_object.
func (s *Store) AddObject(obj *object.Object) error {
	id := obj.ID()
	if id == "" {
		return fmt.Errorf("object missing id attribute")
	}
	if _, exists := s.objects[id]; exists {
		return fmt.Errorf("duplicate object id %q", id)
	}

	s.objects[id] = obj
	s.objectOrder = append(s.objectOrder, id)

	if cn := obj.GetAttrValue("class-name"); cn != "" {
		s.classes[strings.ToLower(cn)] = struct{}{}
	}
	for _, area := range obj.GetAttr("auth-area") {
		s.authAreas[strings.ToLower(area)] = struct{}{}
	}

	return s.indexObject(id, obj)
}

func (s *Store) indexObject(id string, obj *object.Object) error {
	for _, item := range obj.Items() {
		kind := s.kindOf(item.Attr)
		value := strings.ToLower(strings.TrimSpace(item.Value))
		switch kind {
		case KindN:
			idx, err := s.ensureStringIndex(item.Attr)
			if err != nil {
				return err
			}
			if err := idx.Add(value, id); err != nil {
				return err
			}
		case KindC:
			idx, err := s.ensureCidrIndex(item.Attr)
			if err != nil {
				return err
			}
			if err := idx.AddString(value, id); err != nil {
				return err
			}
		case KindA, KindR:
			idx, err := s.ensureComboIndex(item.Attr)
			if err != nil {
				return err
			}
			if err := idx.Add(value, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// FetchObjects resolves ids to their objects, in the order given, skipping
// any id no longer present (should not occur post-load, but FetchObjects
// stays defensive since it sits on the query/response boundary).
func (s *Store) FetchObjects(ids []string) []*object.Object {
	out := make([]*object.Object, 0, len(ids))
	for _, id := range ids {
		if obj, ok := s.objects[id]; ok {
			out = append(out, obj)
		}
	}
	return out
}

// GetObject returns the object with the given id, or rwerr.ErrNotFound.
func (s *Store) GetObject(id string) (*object.Object, error) {
	obj, ok := s.objects[id]
	if !ok {
		return nil, rwerr.ErrNotFound
	}
	return obj, nil
}

// ObjectIterator returns every loaded object in load order, for the "%xfer"
// directive (spec §4.8) to filter by auth-area.
func (s *Store) ObjectIterator() []*object.Object {
	out := make([]*object.Object, 0, len(s.objectOrder))
	for _, id := range s.objectOrder {
		out = append(out, s.objects[id])
	}
	return out
}

// ObjectCount returns the number of loaded objects, for the "%status"
// directive (spec §4.7).
func (s *Store) ObjectCount() int {
	return len(s.objectOrder)
}

// classifyValue strips the wildcard suffix from value ("**" => subnet/
// all-values search, single trailing "*" => prefix/supernet search, neither
// => exact) and reports the resulting search mode alongside the stripped
// value. Grounded on MemDB.py's search_attr wildcard handling.
func classifyValue(value string) (stripped string, subnetMatch, prefixMatch bool) {
	if strings.HasSuffix(value, "**") {
		return strings.TrimSuffix(value, "**"), true, false
	}
	if strings.HasSuffix(value, "*") {
		return strings.TrimSuffix(value, "*"), false, true
	}
	return value, false, false
}

// SearchAttr evaluates a single attr=value term (value may carry a trailing
// "*"/"**" wildcard) against attr's index, returning matching object ids.
// max<=0 means unlimited. Grounded on MemDB.py's search_attr.
func (s *Store) SearchAttr(attr, value string, max int) ([]string, error) {
	kind := s.kindOf(attr)
	stripped, subnetMatch, prefixMatch := classifyValue(value)
	stripped = strings.ToLower(strings.TrimSpace(stripped))

	switch kind {
	case KindN:
		idx, ok := s.stringIdx[attr]
		if !ok {
			return nil, nil
		}
		return idx.Find(stripped, prefixMatch, max)

	case KindC:
		idx, ok := s.cidrIdx[attr]
		if !ok {
			return nil, nil
		}
		p := cidr.ValidCidr(stripped)
		if !p.IsValid() {
			return nil, nil
		}
		if subnetMatch {
			return idx.FindSubnets(p, max)
		}
		return idx.Find(p, prefixMatch, max)

	case KindA, KindR:
		idx, ok := s.comboIdx[attr]
		if !ok {
			return nil, nil
		}
		if subnetMatch {
			vals, isCidr, err := idx.FindSubnets(stripped, max)
			if err != nil {
				return nil, err
			}
			if !isCidr {
				return nil, nil
			}
			return vals, nil
		}
		return idx.Find(stripped, prefixMatch, max)

	default:
		return nil, nil
	}
}

// SearchNormal evaluates a bare value (no attribute named) against
// normal_indexes — every attribute of kind N or A — unioning the results.
// Grounded on MemDB.py's search_normal.
func (s *Store) SearchNormal(value string, max int) ([]string, error) {
	result := NewIndexResult()
	for _, attr := range s.normalAttrs {
		ids, err := s.SearchAttr(attr, value, max)
		if err != nil {
			return nil, err
		}
		result.AddAll(ids)
		if max > 0 && result.Len() >= max {
			break
		}
	}
	return truncate(result.IDs(), max), nil
}

// SearchCidr evaluates a bare value that parsed as a CIDR against
// cidr_indexes — every attribute of kind C or A — unioning the results.
// Grounded on MemDB.py's search_cidr.
func (s *Store) SearchCidr(value string, max int) ([]string, error) {
	result := NewIndexResult()
	for _, attr := range s.cidrAttrs {
		ids, err := s.SearchAttr(attr, value, max)
		if err != nil {
			return nil, err
		}
		result.AddAll(ids)
		if max > 0 && result.Len() >= max {
			break
		}
	}
	return truncate(result.IDs(), max), nil
}

// SearchReferral evaluates value specifically against referred-auth-area (and
// any other kind-R attribute), used by referral chasing (spec §4.6) for values
// that fall inside a CIDR- or domain-shaped auth-area of this store.
func (s *Store) SearchReferral(value string, max int) ([]string, error) {
	result := NewIndexResult()
	for _, attr := range s.referralAttrs {
		ids, err := s.SearchAttr(attr, value, max)
		if err != nil {
			return nil, err
		}
		result.AddAll(ids)
	}
	return truncate(result.IDs(), max), nil
}
