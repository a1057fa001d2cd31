package store

// IndexResult accumulates object ids from one or more index lookups,
// deduplicating while preserving first-seen order. Grounded on
// original_source/rwhoisd/MemDB.py's IndexResult, used to union index
// lookups and the already-filtered per-clause results into the final id set
// before object fetch.
type IndexResult struct {
	seen map[string]struct{}
	ids  []string
}

func NewIndexResult() *IndexResult {
	return &IndexResult{seen: make(map[string]struct{})}
}

// Add appends id if not already present, returning true if it was newly
// added.
func (r *IndexResult) Add(id string) bool {
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = struct{}{}
	r.ids = append(r.ids, id)
	return true
}

// AddAll appends every id in ids, in order, skipping duplicates.
func (r *IndexResult) AddAll(ids []string) {
	for _, id := range ids {
		r.Add(id)
	}
}

// Len reports how many distinct ids have been accumulated.
func (r *IndexResult) Len() int {
	return len(r.ids)
}

// IDs returns the accumulated ids in first-seen order. The caller must not
// mutate the returned slice.
func (r *IndexResult) IDs() []string {
	return r.ids
}

// Intersect returns a new IndexResult holding only ids present in both r and
// other, preserving r's ordering.
func (r *IndexResult) Intersect(other *IndexResult) *IndexResult {
	out := NewIndexResult()
	for _, id := range r.ids {
		if _, ok := other.seen[id]; ok {
			out.Add(id)
		}
	}
	return out
}
