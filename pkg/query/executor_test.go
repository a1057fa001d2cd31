package query

import (
	"testing"

	"rwhoisd/pkg/object"
	"rwhoisd/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	if err := s.InitSchema([]string{
		"name = N",
		"network = C",
		"address = A",
	}); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return s
}

func addObj(t *testing.T, s *store.Store, id, class string, attrs map[string]string) {
	t.Helper()
	o := object.New()
	o.AddAttr("id", id)
	o.AddAttr("class-name", class)
	for k, v := range attrs {
		o.AddAttr(k, v)
	}
	if err := s.AddObject(o); err != nil {
		t.Fatalf("AddObject(%s): %v", id, err)
	}
}

func TestExecutorRunsNamedAttrTerm(t *testing.T) {
	s := newTestStore(t)
	addObj(t, s, "001", "contact", map[string]string{"name": "Aiden Quinn"})
	addObj(t, s, "002", "contact", map[string]string{"name": "Sam Rivera"})

	p := &Parser{
		IsAttr: func(a string) bool { return s.IsAttribute(a) },
	}
	q, err := p.Parse(`name="Aiden Quinn"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ex := New(s)
	res, err := ex.Run(q, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Objects) != 1 || res.Objects[0].ID() != "001" {
		t.Fatalf("got objects %+v", res.Objects)
	}
}

func TestExecutorResidualFilterNarrowsCandidates(t *testing.T) {
	s := newTestStore(t)
	addObj(t, s, "001", "contact", map[string]string{"name": "Aiden Quinn"})
	o2 := object.New()
	o2.AddAttr("id", "002")
	o2.AddAttr("class-name", "contact")
	o2.AddAttr("name", "Aiden Quinn")
	o2.AddAttr("name", "Aiden Alt")
	if err := s.AddObject(o2); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	p := &Parser{IsAttr: func(a string) bool { return s.IsAttribute(a) }}
	q, err := p.Parse(`name="Aiden Quinn" AND name!="Aiden Alt"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ex := New(s)
	res, err := ex.Run(q, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Objects) != 1 || res.Objects[0].ID() != "001" {
		t.Fatalf("got objects %+v, want only 001", res.Objects)
	}
}

func TestExecutorQueryTooComplexWhenNoIndexableTerm(t *testing.T) {
	s := newTestStore(t)
	p := &Parser{IsAttr: func(a string) bool { return s.IsAttribute(a) }}
	q, err := p.Parse(`name!=foo`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := New(s)
	if _, err := ex.Run(q, 0); err == nil {
		t.Fatal("expected query-too-complex error")
	} else if _, ok := err.(*ErrQueryTooComplex); !ok {
		t.Fatalf("got %T, want *ErrQueryTooComplex", err)
	}
}

func TestExecutorOverflowDetection(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		addObj(t, s, string(rune('0'+i)), "contact", map[string]string{"name": "shared"})
	}
	p := &Parser{IsAttr: func(a string) bool { return s.IsAttribute(a) }}
	q, err := p.Parse("name=shared")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := New(s)
	res, err := ex.Run(q, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Overflow {
		t.Error("expected overflow")
	}
	if len(res.Objects) != 3 {
		t.Errorf("got %d objects, want 3", len(res.Objects))
	}
}

func TestExecutorCidrSubnetWildcard(t *testing.T) {
	s := newTestStore(t)
	addObj(t, s, "001", "network", map[string]string{"network": "10.0.0.0/16"})
	addObj(t, s, "002", "network", map[string]string{"network": "192.168.0.0/16"})

	p := &Parser{IsAttr: func(a string) bool { return s.IsAttribute(a) }}
	q, err := p.Parse("network=10.0.0.0/8**")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := New(s)
	res, err := ex.Run(q, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Objects) != 1 || res.Objects[0].ID() != "001" {
		t.Fatalf("got objects %+v, want the /16 enclosed by 10.0.0.0/8", res.Objects)
	}
}

func TestMatchValueCidrExactAndSupernet(t *testing.T) {
	if !matchValue("10.0.0.0/8", "10.0.0.0/8") {
		t.Error("exact CIDR match failed")
	}
	if matchValue("10.0.0.0/8", "10.0.0.0/16") {
		t.Error("exact CIDR match should not match a different prefix length")
	}
	// A single trailing '*' means v.is_supernet(sv): the stored value must
	// enclose the query value.
	if !matchValue("10.0.0.0/16*", "10.0.0.0/8") {
		t.Error("supernet wildcard: /16* should match a broader /8 that encloses it")
	}
	// A trailing '**' means v.is_subnet(sv): the stored value must be
	// enclosed by the query value.
	if !matchValue("10.0.0.0/8**", "10.0.0.0/16") {
		t.Error("subnet wildcard: /8** should match a narrower /16 enclosed by it")
	}
}

func TestMatchValueStringWildcards(t *testing.T) {
	cases := []struct {
		sv, v string
		want  bool
	}{
		{"Aiden", "aiden", true},
		{"Aiden", "aidenquinn", false},
		{"Aiden*", "aidenquinn", true},
		{"*Quinn", "aidenquinn", true},
		{"*iden*", "aidenquinn", true},
		{"*zzz*", "aidenquinn", false},
	}
	for _, c := range cases {
		if got := matchValue(c.sv, c.v); got != c.want {
			t.Errorf("matchValue(%q, %q) = %v, want %v", c.sv, c.v, got, c.want)
		}
	}
}

func TestChaseReferralsSkippedForReferralClass(t *testing.T) {
	s := newTestStore(t)
	p := &Parser{IsAttr: func(a string) bool { return s.IsAttribute(a) }}
	q, err := p.Parse("class-name=referral AND name=foo")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := New(s)
	refs, err := ex.chaseReferrals(q.Clauses[0])
	if err != nil {
		t.Fatalf("chaseReferrals: %v", err)
	}
	if refs != nil {
		t.Errorf("expected no referrals chased for a referral-class clause, got %v", refs)
	}
}

func TestChaseReferralsCidrContainment(t *testing.T) {
	s := newTestStore(t)
	ref := object.New()
	ref.AddAttr("id", "r1")
	ref.AddAttr("class-name", "referral")
	ref.AddAttr("auth-area", "10.0.0.0/8")
	ref.AddAttr("referred-auth-area", "10.0.0.0/8")
	ref.AddAttr("referral", "rwhois://child.example.net:4321/")
	if err := s.AddObject(ref); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	p := &Parser{IsAttr: func(a string) bool { return s.IsAttribute(a) }}
	q, err := p.Parse("network=10.1.2.0/24")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := New(s)
	refs, err := ex.chaseReferrals(q.Clauses[0])
	if err != nil {
		t.Fatalf("chaseReferrals: %v", err)
	}
	if len(refs) != 1 || refs[0] != "rwhois://child.example.net:4321/" {
		t.Fatalf("got referrals %v", refs)
	}
}

func TestChaseReferralsDomainWalk(t *testing.T) {
	s := newTestStore(t)
	ref := object.New()
	ref.AddAttr("id", "r1")
	ref.AddAttr("class-name", "referral")
	ref.AddAttr("auth-area", "example.net")
	ref.AddAttr("referred-auth-area", "example.net")
	ref.AddAttr("referral", "rwhois://child.example.net:4321/")
	if err := s.AddObject(ref); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	p := &Parser{IsAttr: func(a string) bool { return s.IsAttribute(a) }}
	q, err := p.Parse("name=host.sub.example.net")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := New(s)
	refs, err := ex.chaseReferrals(q.Clauses[0])
	if err != nil {
		t.Fatalf("chaseReferrals: %v", err)
	}
	if len(refs) != 1 || refs[0] != "rwhois://child.example.net:4321/" {
		t.Fatalf("got referrals %v", refs)
	}
}
