package lookup

import "github.com/AdguardTeam/contentfilter/rules"

// TagTable is a table that relies on the filter tags to quickly find matching
// filters.  Here's how it works:
//
//  1. Every filter is put into the bucket of its tag, see [rules.BestTag].
//     The filters without a usable literal are put into the bucket of
//     [rules.GenericTag].
//  2. When we match a request, we only scan the buckets of the tags of its
//     URL, which always include [rules.GenericTag].
//
// Every filter is eligible for this table.
type TagTable struct {
	buckets *Buckets[*rules.Filter]
}

// type check
var _ Table = (*TagTable)(nil)

// NewTagTable creates a new instance of the TagTable.
func NewTagTable() (t *TagTable) {
	return &TagTable{
		buckets: NewBuckets(filterKey),
	}
}

// TryAdd implements the [Table] interface for *TagTable.
func (t *TagTable) TryAdd(f *rules.Filter) (ok bool) {
	_ = t.buckets.Add(f.Tag(), f)

	return true
}

// Match implements the [Table] interface for *TagTable.
func (t *TagTable) Match(r *rules.Request, useGeneric bool) (f *rules.Filter) {
	for _, tag := range r.Tags() {
		for _, candidate := range t.buckets.Get(tag) {
			if isApplicable(candidate, useGeneric) && candidate.Match(r) {
				return candidate
			}
		}
	}

	return nil
}

// MatchAll implements the [Table] interface for *TagTable.
func (t *TagTable) MatchAll(r *rules.Request, useGeneric bool) (result []*rules.Filter) {
	for _, tag := range r.Tags() {
		for _, candidate := range t.buckets.Get(tag) {
			if isApplicable(candidate, useGeneric) && candidate.Match(r) {
				result = append(result, candidate)
			}
		}
	}

	return result
}

// Len implements the [Table] interface for *TagTable.
func (t *TagTable) Len() (n int) {
	return t.buckets.Len()
}

// isApplicable returns true if f should be checked at all.
func isApplicable(f *rules.Filter, useGeneric bool) (ok bool) {
	return useGeneric || !f.IsGeneric()
}
