package store

import (
	"testing"

	"rwhoisd/pkg/object"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	schema := []string{
		"# test schema",
		"domain-name = N",
		"ip-network = C",
		"name = A",
		"referred-auth-area = R",
	}
	if err := s.InitSchema(schema); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAdd(t *testing.T, s *Store, attrs map[string]string) {
	t.Helper()
	o := object.New()
	for attr, val := range attrs {
		o.AddAttr(attr, val)
	}
	if err := s.AddObject(o); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
}

func TestStringExactAndPrefixSearch(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "1", "class-name": "domain", "domain-name": "example.com"})
	mustAdd(t, s, map[string]string{"id": "2", "class-name": "domain", "domain-name": "example.net"})

	ids, err := s.SearchAttr("domain-name", "example.com", 0)
	if err != nil {
		t.Fatalf("SearchAttr: %v", err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("exact match got %v, want [1]", ids)
	}

	ids, err = s.SearchAttr("domain-name", "example.*", 0)
	if err != nil {
		t.Fatalf("SearchAttr prefix: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("prefix match got %v, want 2 ids", ids)
	}
}

func TestCidrExactAndClosestSupernet(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "net1", "class-name": "network", "ip-network": "10.0.0.0/24"})

	ids, err := s.SearchAttr("ip-network", "10.0.0.0/24", 0)
	if err != nil {
		t.Fatalf("exact: %v", err)
	}
	if len(ids) != 1 || ids[0] != "net1" {
		t.Errorf("got %v, want [net1]", ids)
	}

	ids, err = s.SearchAttr("ip-network", "10.0.0.5", 0)
	if err != nil {
		t.Fatalf("closest supernet: %v", err)
	}
	if len(ids) != 1 || ids[0] != "net1" {
		t.Errorf("closest-supernet search got %v, want [net1]", ids)
	}
}

func TestCidrSubnetWildcard(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "net1", "class-name": "network", "ip-network": "10.0.0.0/24"})
	mustAdd(t, s, map[string]string{"id": "net2", "class-name": "network", "ip-network": "10.0.0.0/25"})

	ids, err := s.SearchAttr("ip-network", "10.0.0.0/23**", 0)
	if err != nil {
		t.Fatalf("subnet search: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("got %v, want both subnets", ids)
	}
}

func TestSearchAttrInvalidCidrValueYieldsNoErrorNoResults(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "net1", "class-name": "network", "ip-network": "10.0.0.0/24"})

	ids, err := s.SearchAttr("ip-network", "notacidr", 0)
	if err != nil {
		t.Fatalf("expected a bad CIDR value to yield nil error, got %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %v, want no matches for an unparseable CIDR value", ids)
	}
}

func TestUnclassedObjectDoesNotRegisterUnknownClass(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "1"})

	if s.IsObjectClass("unknown-class") {
		t.Error("a class-less object must not register the unknown-class sentinel")
	}
}

func TestComboIndexRoutesCidrAndString(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "1", "class-name": "contact", "name": "Aiden Quinn"})
	mustAdd(t, s, map[string]string{"id": "2", "class-name": "network", "name": "10.1.0.0/16"})

	ids, err := s.SearchAttr("name", "aiden quinn", 0)
	if err != nil {
		t.Fatalf("string route: %v", err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("got %v, want [1]", ids)
	}

	ids, err = s.SearchAttr("name", "10.1.0.0/16", 0)
	if err != nil {
		t.Fatalf("cidr route: %v", err)
	}
	if len(ids) != 1 || ids[0] != "2" {
		t.Errorf("got %v, want [2]", ids)
	}
}

func TestSchemaFanOutOrderIsDeterministic(t *testing.T) {
	s := New()
	if err := s.InitSchema([]string{
		"zzz-attr = N",
		"aaa-attr = N",
		"mid-attr = A",
	}); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	// The baseline "id" attribute (kind N) is registered by New, first.
	want := []string{"id", "zzz-attr", "aaa-attr", "mid-attr"}
	if got := s.normalAttrs; !equalStrs(got, want) {
		t.Errorf("normalAttrs = %v, want %v (registration order)", got, want)
	}

	// Repeating InitSchema with the same attributes must not duplicate them.
	if err := s.InitSchema([]string{"zzz-attr = N"}); err != nil {
		t.Fatalf("InitSchema (repeat): %v", err)
	}
	if got := s.normalAttrs; !equalStrs(got, want) {
		t.Errorf("normalAttrs after repeat registration = %v, want %v (no duplicates)", got, want)
	}
}

func equalStrs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearchNormalExcludesReferralKind(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{
		"id": "1", "class-name": "domain", "domain-name": "example.com",
		"referred-auth-area": "example.com",
	})

	ids, err := s.SearchNormal("example.com", 0)
	if err != nil {
		t.Fatalf("SearchNormal: %v", err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("got %v, want [1] (via domain-name, not referred-auth-area)", ids)
	}

	ids, err = s.SearchReferral("example.com", 0)
	if err != nil {
		t.Fatalf("SearchReferral: %v", err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("got %v, want [1] via referred-auth-area", ids)
	}
}

func TestAuthAreaAndClassRegistries(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "1", "class-name": "domain", "auth-area": "example.com"})

	if !s.IsObjectClass("domain") {
		t.Error("expected domain class registered")
	}
	if !s.IsAuthArea("example.com") {
		t.Error("expected example.com auth-area registered")
	}
	if s.IsObjectClass("nonexistent") {
		t.Error("did not expect nonexistent class registered")
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "1", "class-name": "domain"})

	o := object.New()
	o.AddAttr("id", "1")
	if err := s.AddObject(o); err == nil {
		t.Error("expected error adding duplicate id")
	}
}

func TestObjectIteratorPreservesLoadOrder(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, map[string]string{"id": "2", "class-name": "domain"})
	mustAdd(t, s, map[string]string{"id": "1", "class-name": "domain"})

	objs := s.ObjectIterator()
	if len(objs) != 2 || objs[0].ID() != "2" || objs[1].ID() != "1" {
		t.Errorf("got order %v, want [2 1]", []string{objs[0].ID(), objs[1].ID()})
	}
}
