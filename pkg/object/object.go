// Package object implements RwhoisObject (spec C2): an attribute-ordered,
// multi-valued record with wire formatting. It plays the role of
// original_source/rwhoisd/Rwhois.py's rwhoisobject class, restructured as an
// ordered multimap the way wingedpig/iporg's pkg/model types are plain
// structs with explicit field order — here the "fields" are dynamic
// attribute names, so order is tracked explicitly instead of relying on
// struct layout.
package object

import "strings"

const unknownClass = "unknown-class"

// Object is an ordered multimap from lower-cased attribute name to its list
// of values, preserving first-insertion order of attributes. It is built by
// a loader and never mutated again once handed to a Store.
type Object struct {
	order  []string
	values map[string][]string
}

// New returns an empty Object ready for AddAttr calls.
func New() *Object {
	return &Object{values: make(map[string][]string)}
}

// AddAttr appends value to attr's value list, lower-casing and trimming attr.
// The first occurrence of an attribute name fixes its position in Items.
func (o *Object) AddAttr(attr, value string) {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if _, seen := o.values[attr]; !seen {
		o.order = append(o.order, attr)
	}
	o.values[attr] = append(o.values[attr], value)
}

// GetAttr returns the values recorded for attr (nil if none).
func (o *Object) GetAttr(attr string) []string {
	return o.values[strings.ToLower(strings.TrimSpace(attr))]
}

// GetAttrValue returns the first value recorded for attr, or "" if none.
func (o *Object) GetAttrValue(attr string) string {
	vs := o.GetAttr(attr)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// HasAttr reports whether attr has at least one value.
func (o *Object) HasAttr(attr string) bool {
	return len(o.values[strings.ToLower(strings.TrimSpace(attr))]) > 0
}

// ID returns the object's "id" attribute value, the convention the store
// uses as the unique key.
func (o *Object) ID() string {
	return o.GetAttrValue("id")
}

// Item is one (attribute, value) pair as yielded by Items.
type Item struct {
	Attr  string
	Value string
}

// Items returns (attr, value) pairs in the order attributes were first
// added, with all values of an attribute emitted consecutively.
func (o *Object) Items() []Item {
	items := make([]Item, 0, len(o.order))
	for _, attr := range o.order {
		for _, v := range o.values[attr] {
			items = append(items, Item{Attr: attr, Value: v})
		}
	}
	return items
}

// Values returns every value across every attribute, in attribute-insertion
// order, for bare (unattributed) query term matching.
func (o *Object) Values() []string {
	var vals []string
	for _, attr := range o.order {
		vals = append(vals, o.values[attr]...)
	}
	return vals
}

// ClassName returns the object's class-name attribute, or "unknown-class" if
// absent.
func (o *Object) ClassName() string {
	if cn := o.GetAttrValue("class-name"); cn != "" {
		return cn
	}
	return unknownClass
}

// ToWireStr renders every attribute of o as "class-name:attr:value" lines
// joined by CRLF, each optionally prefixed (e.g. "%xfer ").
func (o *Object) ToWireStr(prefix string) string {
	return o.AttrsToWireStr(o.order, prefix)
}

// AttrsToWireStr renders only the named attributes (preserving the caller's
// ordering), one "class-name:attr:value" line per value, CRLF-joined and
// optionally prefixed.
func (o *Object) AttrsToWireStr(attrs []string, prefix string) string {
	cn := o.ClassName()
	var lines []string
	for _, attr := range attrs {
		for _, v := range o.values[attr] {
			lines = append(lines, prefix+cn+":"+attr+":"+v)
		}
	}
	return strings.Join(lines, "\r\n")
}
