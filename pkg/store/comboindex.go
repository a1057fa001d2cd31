package store

import "rwhoisd/pkg/cidr"

// ComboIndex routes each key to a CidrIndex or a StringIndex depending on
// whether it parses as a CIDR literal or dash-delimited range, so a single
// attribute (kind A or R in the schema) can hold both network blocks and
// opaque strings. Grounded on original_source/rwhoisd/MemIndex.py's
// ComboMemIndex.
type ComboIndex struct {
	strings *StringIndex
	cidrs   *CidrIndex
}

func newComboIndex() (*ComboIndex, error) {
	si, err := newStringIndex()
	if err != nil {
		return nil, err
	}
	ci, err := newCidrIndex()
	if err != nil {
		si.Close()
		return nil, err
	}
	return &ComboIndex{strings: si, cidrs: ci}, nil
}

func (c *ComboIndex) Close() error {
	err1 := c.strings.Close()
	err2 := c.cidrs.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (c *ComboIndex) Add(key, value string) error {
	if looksLikeCidrKey(key) {
		return c.cidrs.AddString(key, value)
	}
	return c.strings.Add(key, value)
}

func (c *ComboIndex) Find(key string, prefixMatch bool, max int) ([]string, error) {
	if p := cidr.ValidCidr(key); p.IsValid() {
		return c.cidrs.Find(p, prefixMatch, max)
	}
	return c.strings.Find(key, prefixMatch, max)
}

// FindSubnets returns (values, true, nil) when key parses as a CIDR, or
// (nil, false, nil) when it does not (subnet search is meaningless on a
// string key).
func (c *ComboIndex) FindSubnets(key string, max int) ([]string, bool, error) {
	p := cidr.ValidCidr(key)
	if !p.IsValid() {
		return nil, false, nil
	}
	vals, err := c.cidrs.FindSubnets(p, max)
	return vals, true, err
}
