// Package maxmind wraps MaxMind ASN/City database lookups for the loader's
// optional network enrichment step (SPEC_FULL §3.1): adding country/asn-name
// attributes to "network"-class objects before they are indexed. Adapted
// from wingedpig/iporg's pkg/sources/maxmind, trimmed to the two point
// lookups the loader actually needs (ASNInfo, Geo) — the geo-boundary
// splitting/merging machinery that package carried served iporg's Mode-B
// build pipeline (slicing announced prefixes along MaxMind city boundaries),
// which this loader has no equivalent of: it enriches one already-known
// network object at a time, it does not discover or split prefixes.
package maxmind

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// Readers holds open MaxMind ASN and City database readers.
type Readers struct {
	ASN  *geoip2.Reader
	City *geoip2.Reader
}

// Open opens the ASN and City databases at the given paths.
func Open(asnPath, cityPath string) (*Readers, error) {
	asnDB, err := geoip2.Open(asnPath)
	if err != nil {
		return nil, fmt.Errorf("open ASN database: %w", err)
	}
	cityDB, err := geoip2.Open(cityPath)
	if err != nil {
		asnDB.Close()
		return nil, fmt.Errorf("open City database: %w", err)
	}
	return &Readers{ASN: asnDB, City: cityDB}, nil
}

func (r *Readers) Close() error {
	var err error
	if r.ASN != nil {
		if e := r.ASN.Close(); e != nil {
			err = e
		}
	}
	if r.City != nil {
		if e := r.City.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// ASNInfo returns the ASN number and organization name for an IP.
func (r *Readers) ASNInfo(ip netip.Addr) (number int, name string, err error) {
	record, err := r.ASN.ASN(net.IP(ip.AsSlice()))
	if err != nil {
		return 0, "", fmt.Errorf("ASN lookup: %w", err)
	}
	return int(record.AutonomousSystemNumber), record.AutonomousSystemOrganization, nil
}

// GeoInfo is the subset of MaxMind City data the loader attaches to an
// object: just the country, the only field loader.MaxMindEnricher reads.
type GeoInfo struct {
	Country string
}

// Geo returns geographic information for an IP.
func (r *Readers) Geo(ip netip.Addr) (*GeoInfo, error) {
	record, err := r.City.City(net.IP(ip.AsSlice()))
	if err != nil {
		return nil, fmt.Errorf("geo lookup: %w", err)
	}
	return &GeoInfo{Country: record.Country.IsoCode}, nil
}
