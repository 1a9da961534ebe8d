package contentfilter

import (
	"github.com/AdguardTeam/contentfilter/internal/lookup"
	"github.com/AdguardTeam/contentfilter/rules"
)

// FilterIndex supports quick search over network filters.  It is immutable
// once built and safe for concurrent matching.
type FilterIndex struct {
	// seen contains the texts of the added filters.
	seen map[string]struct{}

	// lookupTables is the array of lookup tables which we need to speed up
	// the matching speed.  Note, that the order of lookup tables is very
	// important, we'll try to add filters to the faster table first.  If it's
	// not eligible for that lookup table, we'll then proceed to a slower one.
	lookupTables []lookup.Table

	// filters are all filters in the insertion order.
	filters []*rules.Filter
}

// NewFilterIndex returns a new empty index.  expectedHosts is the estimated
// number of unrestricted hostname filters, see [lookup.NewHostsTable].
func NewFilterIndex(expectedHosts uint) (idx *FilterIndex) {
	return &FilterIndex{
		seen: map[string]struct{}{},
		lookupTables: []lookup.Table{
			lookup.NewHostsTable(expectedHosts),
			lookup.NewTagTable(),
		},
	}
}

// Add adds f to the index.  It returns false if a filter with the same text
// has already been added.  Add must not be called concurrently with other
// methods.
func (idx *FilterIndex) Add(f *rules.Filter) (ok bool) {
	if _, ok = idx.seen[f.RuleText]; ok {
		return false
	}

	for _, table := range idx.lookupTables {
		if table.TryAdd(f) {
			idx.seen[f.RuleText] = struct{}{}
			idx.filters = append(idx.filters, f)

			return true
		}
	}

	return false
}

// Match returns the first filter matching r or nil.
func (idx *FilterIndex) Match(r *rules.Request) (f *rules.Filter) {
	return idx.MatchGeneric(r, true)
}

// MatchGeneric is like [FilterIndex.Match], but skips the filters without
// domain restrictions if useGeneric is false.
func (idx *FilterIndex) MatchGeneric(r *rules.Request, useGeneric bool) (f *rules.Filter) {
	for _, table := range idx.lookupTables {
		if f = table.Match(r, useGeneric); f != nil {
			return f
		}
	}

	return nil
}

// MatchAll finds all filters matching r.
func (idx *FilterIndex) MatchAll(r *rules.Request) (result []*rules.Filter) {
	for _, table := range idx.lookupTables {
		result = append(result, table.MatchAll(r, true)...)
	}

	return result
}

// Filters returns all filters of the index in the insertion order.  The caller
// must not modify the returned slice.
func (idx *FilterIndex) Filters() (filters []*rules.Filter) {
	return idx.filters
}

// Len returns the number of filters in the index.
func (idx *FilterIndex) Len() (n int) {
	return len(idx.filters)
}
