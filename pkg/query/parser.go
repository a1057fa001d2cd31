package query

import (
	"fmt"
	"strings"
)

// Parser turns a query string into a Query, consulting the schema/class
// registries to disambiguate bareword tokens exactly as
// QueryParser.py's lexer callbacks do (db.is_objectclass, db.is_attribute).
type Parser struct {
	IsClass func(name string) bool
	IsAttr  func(name string) bool
}

// ErrSyntax is returned (wrapped) for any parse failure; callers translate
// it to wire code 350 (spec §4.5: "Parse failure raises QuerySyntax").
type ErrSyntax struct {
	Detail string
}

func (e *ErrSyntax) Error() string {
	if e.Detail == "" {
		return "query syntax error"
	}
	return "query syntax error: " + e.Detail
}

type parseState struct {
	toks []token
	pos  int
	p    *Parser
}

func (s *parseState) peek() (token, bool) {
	if s.pos >= len(s.toks) {
		return token{}, false
	}
	return s.toks[s.pos], true
}

func (s *parseState) next() (token, bool) {
	t, ok := s.peek()
	if ok {
		s.pos++
	}
	return t, ok
}

// Parse parses a full query string. Grammar (see original_source/rwhoisd's
// QueryParser.py, restructured as recursive descent):
//
//	total   := CLASS query | query
//	query   := query (AND|OR) termstr | termstr
//	termstr := ATTR (= | !=) value | ATTR | value
func (p *Parser) Parse(input string) (*Query, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, &ErrSyntax{Detail: err.Error()}
	}
	if len(toks) == 0 {
		return nil, &ErrSyntax{Detail: "empty query"}
	}

	st := &parseState{toks: toks, p: p}

	class := ""
	if first := toks[0]; first.kind == tokWord && p.IsClass != nil && p.IsClass(first.text) {
		class = first.text
		st.pos = 1
	}

	q, err := st.parseQuery()
	if err != nil {
		return nil, err
	}
	q.Class = class
	return q, nil
}

func (s *parseState) parseQuery() (*Query, error) {
	first, err := s.parseTermstr()
	if err != nil {
		return nil, err
	}
	q := &Query{Clauses: []Clause{{first}}}
	cur := 0

	for {
		tok, ok := s.peek()
		if !ok {
			break
		}
		if tok.kind != tokWord {
			return nil, &ErrSyntax{Detail: fmt.Sprintf("unexpected token %q: consecutive terms require AND/OR", tok.text)}
		}
		upper := strings.ToUpper(tok.text)
		if upper != "AND" && upper != "OR" {
			return nil, &ErrSyntax{Detail: fmt.Sprintf("unexpected token %q: consecutive terms require AND/OR", tok.text)}
		}
		s.pos++

		term, err := s.parseTermstr()
		if err != nil {
			return nil, err
		}
		if upper == "OR" {
			q.Clauses = append(q.Clauses, Clause{term})
			cur = len(q.Clauses) - 1
		} else {
			q.Clauses[cur] = append(q.Clauses[cur], term)
		}
	}

	return q, nil
}

func (s *parseState) parseTermstr() (Term, error) {
	tok, ok := s.next()
	if !ok {
		return Term{}, &ErrSyntax{Detail: "unexpected end of query"}
	}

	if tok.kind == tokQuoted {
		return Term{Attr: "", Op: "=", Value: tok.text}, nil
	}

	if tok.kind != tokWord {
		return Term{}, &ErrSyntax{Detail: fmt.Sprintf("unexpected token %q", tok.text)}
	}

	upper := strings.ToUpper(tok.text)
	if upper == "AND" || upper == "OR" {
		return Term{}, &ErrSyntax{Detail: "unexpected keyword " + upper}
	}

	if s.p.IsAttr != nil && s.p.IsAttr(tok.text) {
		if next, ok := s.peek(); ok && (next.kind == tokEq || next.kind == tokNeq) {
			s.pos++
			op := "="
			if next.kind == tokNeq {
				op = "!="
			}
			value, err := s.parseValue()
			if err != nil {
				return Term{}, err
			}
			return Term{Attr: tok.text, Op: op, Value: value}, nil
		}
		return Term{Attr: "", Op: "=", Value: tok.text}, nil
	}

	return Term{Attr: "", Op: "=", Value: tok.text}, nil
}

func (s *parseState) parseValue() (string, error) {
	tok, ok := s.next()
	if !ok {
		return "", &ErrSyntax{Detail: "expected value"}
	}
	if tok.kind != tokWord && tok.kind != tokQuoted {
		return "", &ErrSyntax{Detail: fmt.Sprintf("expected value, got %q", tok.text)}
	}
	return tok.text, nil
}
