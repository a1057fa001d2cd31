// Package loader populates a Store from schema and data files (spec §6's
// external interfaces), optionally enriching network objects from MaxMind
// databases (SPEC_FULL §3.1). Grounded on
// original_source/rwhoisd/MemDB.py's init_schema/load_data, restructured in
// the bufio.Scanner style of wingedpig/iporg's pkg/ripebulk parsers.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/netip"
	"os"
	"strings"

	"rwhoisd/pkg/object"
	"rwhoisd/pkg/sources/maxmind"
	"rwhoisd/pkg/store"
)

// LoadSchema reads schema-file lines ("attr = N|C|A|R", '#' comments) from r
// and applies them to st. Grounded on MemDB.init_schema.
func LoadSchema(st *store.Store, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("loader: reading schema: %w", err)
	}
	return st.InitSchema(lines)
}

// LoadSchemaFile opens path and loads it as a schema file.
func LoadSchemaFile(st *store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loader: opening schema file: %w", err)
	}
	defer f.Close()
	return LoadSchema(st, f)
}

// Enricher optionally annotates a network object before it is indexed.
// MaxMindEnricher implements this against pkg/sources/maxmind; a nil
// Enricher disables enrichment entirely.
type Enricher interface {
	Enrich(obj *object.Object)
}

// MaxMindEnricher adds "country" and "asn-name" attributes to class-name
// "network" objects whose "ip-network" attribute parses as a CIDR, looked
// up from MaxMind ASN/City databases. This is a loader-level feature with
// no origin in original_source (see SPEC_FULL §3.1): it only enriches
// attributes of objects the loader already owns.
type MaxMindEnricher struct {
	Readers *maxmind.Readers
}

// Enrich looks up obj's ip-network attribute (if any) and appends
// "country"/"asn-name" attributes when found. Lookup failures are logged,
// not fatal (spec §7: loader-time problems are never fatal to serving).
func (e *MaxMindEnricher) Enrich(obj *object.Object) {
	if e == nil || e.Readers == nil {
		return
	}
	if !strings.EqualFold(obj.GetAttrValue("class-name"), "network") {
		return
	}
	network := obj.GetAttrValue("ip-network")
	if network == "" {
		return
	}
	prefix, err := netip.ParsePrefix(network)
	if err != nil {
		return
	}

	if geo, err := e.Readers.Geo(prefix.Addr()); err == nil && geo != nil && geo.Country != "" {
		obj.AddAttr("country", geo.Country)
	} else if err != nil {
		log.Printf("loader: maxmind geo lookup for %s: %v", network, err)
	}

	if _, name, err := e.Readers.ASNInfo(prefix.Addr()); err == nil && name != "" {
		obj.AddAttr("asn-name", name)
	} else if err != nil {
		log.Printf("loader: maxmind asn lookup for %s: %v", network, err)
	}
}

// LoadData parses an rwhoisd-style data file from r: attr:value lines
// (first colon splits, value left-trimmed), records separated by a line
// beginning "---", '#' comments, blank lines ignored within a record, EOF
// finalizes the in-progress record. Each finished object is optionally
// enriched, then added to st. Grounded on MemDB.load_data.
func LoadData(st *store.Store, r io.Reader, enricher Enricher) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	obj := object.New()
	finish := func() error {
		if obj.ID() == "" {
			obj = object.New()
			return nil
		}
		if enricher != nil {
			enricher.Enrich(obj)
		}
		if err := st.AddObject(obj); err != nil {
			log.Printf("loader: skipping object %q: %v", obj.ID(), err)
		}
		obj = object.New()
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "---") {
			if err := finish(); err != nil {
				return err
			}
			continue
		}

		attr, value, ok := strings.Cut(line, ":")
		if !ok {
			log.Printf("loader: skipping malformed data line %q", line)
			continue
		}
		obj.AddAttr(attr, strings.TrimLeft(value, " \t"))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("loader: reading data: %w", err)
	}
	return finish()
}

// LoadDataFile opens path and loads it as a data file.
func LoadDataFile(st *store.Store, path string, enricher Enricher) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loader: opening data file: %w", err)
	}
	defer f.Close()
	return LoadData(st, f, enricher)
}
