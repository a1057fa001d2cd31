package query

import "testing"

func testParser() *Parser {
	classes := map[string]bool{"contact": true, "network": true, "referral": true}
	attrs := map[string]bool{"name": true, "id": true, "class-name": true, "referred-auth-area": true}
	return &Parser{
		IsClass: func(s string) bool { return classes[s] },
		IsAttr:  func(s string) bool { return attrs[s] },
	}
}

func TestParseClassPrefix(t *testing.T) {
	p := testParser()
	q, err := p.Parse("contact name=Aiden")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Class != "contact" {
		t.Errorf("got class %q, want contact", q.Class)
	}
	if len(q.Clauses) != 1 || len(q.Clauses[0]) != 1 {
		t.Fatalf("got clauses %+v", q.Clauses)
	}
	term := q.Clauses[0][0]
	if term.Attr != "name" || term.Op != "=" || term.Value != "Aiden" {
		t.Errorf("got term %+v", term)
	}
}

func TestParseNoClassPrefixWhenFirstTokenIsNotAClass(t *testing.T) {
	p := testParser()
	q, err := p.Parse("name=Aiden")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Class != "" {
		t.Errorf("got class %q, want none", q.Class)
	}
}

func TestParseAndOrClauses(t *testing.T) {
	p := testParser()
	q, err := p.Parse("name=Aiden AND id=001 OR name=Quinn")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(q.Clauses) != 2 {
		t.Fatalf("got %d clauses, want 2: %+v", len(q.Clauses), q.Clauses)
	}
	if len(q.Clauses[0]) != 2 || len(q.Clauses[1]) != 1 {
		t.Fatalf("got clause shapes %+v", q.Clauses)
	}
}

func TestParseAttrWithNoOperatorFallsBackToBareTerm(t *testing.T) {
	p := testParser()
	q, err := p.Parse("name")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	term := q.Clauses[0][0]
	if term.Attr != "" || term.Value != "name" {
		t.Errorf("got term %+v, want bare term for %q", term, "name")
	}
}

func TestParseBareValue(t *testing.T) {
	p := testParser()
	q, err := p.Parse("10.0.0.0/8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	term := q.Clauses[0][0]
	if term.Attr != "" || term.Value != "10.0.0.0/8" {
		t.Errorf("got term %+v", term)
	}
}

func TestParseQuotedValue(t *testing.T) {
	p := testParser()
	q, err := p.Parse(`name="Aiden Quinn"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	term := q.Clauses[0][0]
	if term.Value != "Aiden Quinn" {
		t.Errorf("got value %q", term.Value)
	}
}

func TestParseConsecutiveTermsWithoutAndOrIsSyntaxError(t *testing.T) {
	p := testParser()
	if _, err := p.Parse("name=Aiden id=001"); err == nil {
		t.Fatal("expected syntax error for implicit AND")
	}
}

func TestParseEmptyQueryIsSyntaxError(t *testing.T) {
	p := testParser()
	if _, err := p.Parse("   "); err == nil {
		t.Fatal("expected syntax error for empty query")
	}
}

func TestParseNotEqualOperator(t *testing.T) {
	p := testParser()
	q, err := p.Parse("class-name!=referral")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	term := q.Clauses[0][0]
	if term.Op != "!=" || term.Attr != "class-name" || term.Value != "referral" {
		t.Errorf("got term %+v", term)
	}
}

func TestPrepareAppendsClassTermToEveryClause(t *testing.T) {
	q := &Query{
		Class: "contact",
		Clauses: []Clause{
			{{Attr: "name", Op: "=", Value: "Aiden"}},
			{{Attr: "id", Op: "=", Value: "001"}},
		},
	}
	prepared := q.Prepare()
	for _, cl := range prepared {
		last := cl[len(cl)-1]
		if last.Attr != "class-name" || last.Value != "contact" {
			t.Errorf("clause %+v missing class-name term", cl)
		}
	}
	if len(q.Clauses[0]) != 1 {
		t.Error("Prepare must not mutate the original query")
	}
}
