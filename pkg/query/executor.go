package query

import (
	"regexp"
	"strings"

	"rwhoisd/pkg/cidr"
	"rwhoisd/pkg/object"
	"rwhoisd/pkg/store"
)

// ErrQueryTooComplex is raised when a clause has no indexable term, wire
// code 351 (spec §4.6).
type ErrQueryTooComplex struct{}

func (e *ErrQueryTooComplex) Error() string { return "query too complex" }

// Executor evaluates a parsed Query against a Store. Grounded on
// original_source/rwhoisd/QueryProcessor.py.
type Executor struct {
	Store *store.Store
}

func New(s *store.Store) *Executor {
	return &Executor{Store: s}
}

// Result is the outcome of running a query.
type Result struct {
	Objects   []*object.Object
	Referrals []string
	Overflow  bool // true if the candidate set exceeded the session limit
}

// Run evaluates q, unioning every clause's matches by object id (first-seen
// wins), concatenating referrals, and honoring limit (0 = unlimited) by
// passing limit+1 into the index layer so overflow can be detected.
func (e *Executor) Run(q *Query, limit int) (*Result, error) {
	clauses := q.Prepare()

	max := 0
	if limit > 0 {
		max = limit + 1
	}

	ids := store.NewIndexResult()
	var referrals []string

	for _, cl := range clauses {
		clauseIDs, err := e.runClause(cl, max)
		if err != nil {
			return nil, err
		}
		ids.AddAll(clauseIDs)

		refs, err := e.chaseReferrals(cl)
		if err != nil {
			return nil, err
		}
		referrals = append(referrals, refs...)
	}

	allIDs := ids.IDs()
	overflow := false
	if limit > 0 && len(allIDs) > limit {
		overflow = true
		allIDs = allIDs[:limit]
	}

	return &Result{
		Objects:   e.Store.FetchObjects(allIDs),
		Referrals: referrals,
		Overflow:  overflow,
	}, nil
}

// runClause picks the first indexable term (op "=", attribute bare or of
// kind N/C/A), runs the indexed search, and filters the candidates by every
// remaining (residual) term.
func (e *Executor) runClause(cl Clause, max int) ([]string, error) {
	idx := -1
	for i, t := range cl {
		if t.Op == "=" && (t.Attr == "" || e.Store.IsIndexedAttr(t.Attr)) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, &ErrQueryTooComplex{}
	}

	indexable := cl[idx]
	residual := make(Clause, 0, len(cl)-1)
	for i, t := range cl {
		if i != idx {
			residual = append(residual, t)
		}
	}

	candidateIDs, err := e.searchIndexable(indexable, max)
	if err != nil {
		return nil, err
	}
	if len(residual) == 0 {
		return candidateIDs, nil
	}

	out := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		obj, err := e.Store.GetObject(id)
		if err != nil {
			continue
		}
		if matchesResidual(obj, residual) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (e *Executor) searchIndexable(t Term, max int) ([]string, error) {
	if t.Attr != "" {
		return e.Store.SearchAttr(t.Attr, t.Value, max)
	}
	stripped := strings.Trim(t.Value, "*")
	if cidr.ValidCidr(stripped).IsValid() {
		return e.Store.SearchCidr(t.Value, max)
	}
	return e.Store.SearchNormal(t.Value, max)
}

func matchesResidual(obj *object.Object, residual Clause) bool {
	for _, t := range residual {
		if !matchesTerm(obj, t) {
			return false
		}
	}
	return true
}

func matchesTerm(obj *object.Object, t Term) bool {
	if t.Attr != "" {
		matched := false
		for _, v := range obj.GetAttr(t.Attr) {
			if matchValue(t.Value, v) {
				matched = true
				break
			}
		}
		if t.Op == "!=" {
			return !matched
		}
		return matched
	}
	for _, v := range obj.Values() {
		if matchValue(t.Value, v) {
			return true
		}
	}
	return false
}

// matchValue implements spec §4.6's match_value(sv, v): if both the
// wildcard-stripped query value and the stored value parse as CIDRs, match
// by containment according to sv's wildcard suffix; otherwise match
// case-insensitively by substring/suffix/prefix/equality depending on where
// '*' appears in sv.
func matchValue(sv, v string) bool {
	svStripped := strings.TrimRight(sv, "*")
	if svCidr := cidr.ValidCidr(svStripped); svCidr.IsValid() {
		if vCidr := cidr.ValidCidr(v); vCidr.IsValid() {
			switch {
			case strings.HasSuffix(sv, "**"):
				return vCidr.IsSubnet(svCidr)
			case strings.HasSuffix(sv, "*"):
				return vCidr.IsSupernet(svCidr)
			default:
				return cidr.Compare(vCidr, svCidr) == 0
			}
		}
	}

	svLower := strings.ToLower(sv)
	vLower := strings.ToLower(v)

	hasPrefixStar := strings.HasPrefix(svLower, "*")
	hasSuffixStar := strings.HasSuffix(svLower, "*")

	switch {
	case hasPrefixStar && hasSuffixStar && len(svLower) >= 2:
		return strings.Contains(vLower, svLower[1:len(svLower)-1])
	case hasPrefixStar:
		return strings.HasSuffix(vLower, svLower[1:])
	case hasSuffixStar:
		return strings.HasPrefix(vLower, svLower[:len(svLower)-1])
	default:
		return vLower == svLower
	}
}

var domainShape = regexp.MustCompile(`^[a-z0-9-]+\.[a-z0-9.-]+$`)

// chaseReferrals implements spec §4.6's referral chasing: skipped entirely
// for clauses that explicitly target referrals; otherwise, for each
// equality term's value, either a direct referral lookup (CIDR values
// contained in a CIDR-shaped auth-area) or a walk-up-the-domain lookup
// (domain-shaped values under a domain-shaped auth-area), collecting the
// "referral" attribute of every object found.
func (e *Executor) chaseReferrals(cl Clause) ([]string, error) {
	for _, t := range cl {
		if strings.EqualFold(t.Attr, "class-name") && strings.EqualFold(t.Value, "referral") {
			return nil, nil
		}
		if strings.EqualFold(t.Attr, "referred-auth-area") {
			return nil, nil
		}
	}

	authAreas := e.Store.AuthAreas()

	var referrals []string
	for _, t := range cl {
		if t.Op != "=" {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(t.Value))
		if v == "" {
			continue
		}

		var refIDs []string
		var err error

		if p := cidr.ValidCidr(v); p.IsValid() {
			if containedInCidrAuthArea(p, authAreas) {
				refIDs, err = e.Store.SearchReferral(v, 0)
			}
		} else if domainShape.MatchString(v) && subdomainOfDomainAuthArea(v, authAreas) {
			refIDs, err = walkDomainReferral(e.Store, v)
		}
		if err != nil {
			return nil, err
		}
		if len(refIDs) == 0 {
			continue
		}
		for _, obj := range e.Store.FetchObjects(refIDs) {
			referrals = append(referrals, obj.GetAttr("referral")...)
		}
	}
	return referrals, nil
}

func containedInCidrAuthArea(p cidr.Prefix, authAreas []string) bool {
	for _, area := range authAreas {
		areaPrefix := cidr.ValidCidr(area)
		if areaPrefix.IsValid() && areaPrefix.IsSupernet(p) {
			return true
		}
	}
	return false
}

func subdomainOfDomainAuthArea(v string, authAreas []string) bool {
	for _, area := range authAreas {
		if !domainShape.MatchString(area) {
			continue
		}
		if v == area || strings.HasSuffix(v, "."+area) {
			return true
		}
	}
	return false
}

func walkDomainReferral(s *store.Store, v string) ([]string, error) {
	cur := v
	for cur != "" {
		ids, err := s.SearchReferral(cur, 0)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return ids, nil
		}
		i := strings.IndexByte(cur, '.')
		if i < 0 {
			return nil, nil
		}
		cur = cur[i+1:]
	}
	return nil, nil
}
