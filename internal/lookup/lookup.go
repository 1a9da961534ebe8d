// Package lookup implements index structures that we use to improve matching
// speed in the engines.
package lookup

import "github.com/AdguardTeam/contentfilter/rules"

// Table is a common interface for all lookup tables.
type Table interface {
	// TryAdd attempts to add the filter to the lookup table.  It returns
	// true/false depending on whether the filter is eligible for this lookup
	// table.  An eligible filter that is already in the table isn't added
	// again.
	TryAdd(f *rules.Filter) (ok bool)

	// Match returns the first matching filter in the insertion order of the
	// candidates or nil.  If useGeneric is false, filters without domain
	// restrictions are skipped.
	Match(r *rules.Request, useGeneric bool) (f *rules.Filter)

	// MatchAll finds all matching filters from this lookup table.
	MatchAll(r *rules.Request, useGeneric bool) (result []*rules.Filter)

	// Len returns the number of filters in the table.
	Len() (n int)
}

// filterKey returns the identity of f for skipping duplicates.
func filterKey(f *rules.Filter) (k string) {
	return f.RuleText
}
