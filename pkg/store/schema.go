package store

import (
	"fmt"
	"strings"
)

// IndexKind is one of the five attribute classifications from spec §3:
// None (unindexed), N (string-indexed), C (CIDR-indexed), A (combined index,
// participates in unconstrained search) or R (combined index, referral-only,
// searched only when explicitly named). Grounded on
// original_source/rwhoisd/MemDB.py's init_schema, which reads exactly these
// five letters out of the schema file.
type IndexKind int

const (
	KindNone IndexKind = iota
	KindN
	KindC
	KindA
	KindR
)

func parseIndexKind(s string) (IndexKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE", "":
		return KindNone, nil
	case "N":
		return KindN, nil
	case "C":
		return KindC, nil
	case "A":
		return KindA, nil
	case "R":
		return KindR, nil
	default:
		return KindNone, fmt.Errorf("unknown schema index type %q", s)
	}
}

// Searchable reports whether a term on an attribute of this kind is
// considered during an unconstrained (no explicit attribute named) search.
func (k IndexKind) Searchable() bool {
	return k == KindN || k == KindC || k == KindA
}

// baselineSchema is the set of attributes every store recognizes regardless
// of the loaded schema file, matching MemDB.py's hard-coded base attributes.
func baselineSchema() map[string]IndexKind {
	return map[string]IndexKind{
		"id":                 KindN,
		"auth-area":          KindNone,
		"class-name":         KindNone,
		"updated":            KindNone,
		"referred-auth-area": KindR,
	}
}
