package contentfilter

import (
	"strconv"
	"strings"

	"github.com/AdguardTeam/contentfilter/internal/lookup"
	"github.com/AdguardTeam/contentfilter/internal/ufnet"
	"github.com/AdguardTeam/contentfilter/rules"
)

// ElementContainer keeps the element hiding rules bucketed by the tags of
// their domains.  It is immutable once built and safe for concurrent use.
type ElementContainer struct {
	buckets *lookup.Buckets[*rules.ElementFilter]

	// filters are all filters in the insertion order.
	filters []*rules.ElementFilter
}

// NewElementContainer returns a new empty container.
func NewElementContainer() (c *ElementContainer) {
	return &ElementContainer{
		buckets: lookup.NewBuckets(elementKey),
	}
}

// elementKey returns the identity of f for skipping duplicates.  A rule with
// several domains produces a filter per domain.
func elementKey(f *rules.ElementFilter) (k string) {
	return f.RuleText + "\x00" + f.Domain + "\x00" +
		strconv.FormatBool(f.IsNot) + strconv.FormatBool(f.IsHide)
}

// Add adds f to the container.  It returns false if f is a duplicate.  Add
// must not be called concurrently with other methods.
func (c *ElementContainer) Add(f *rules.ElementFilter) (ok bool) {
	if !c.buckets.Add(f.Tag(), f) {
		return false
	}

	c.filters = append(c.filters, f)

	return true
}

// Get returns the filters that apply to the pages of host, in the bucket walk
// order.  Negated filters apply when their domain does not match.  If
// useGeneric is false, filters without domains are skipped.  The result may
// contain the same selector several times.
func (c *ElementContainer) Get(host string, useGeneric bool) (filters []*rules.ElementFilter) {
	host = strings.ToLower(host)
	tldRemoved := ufnet.RemoveEffectiveTLD(host)

	for _, tag := range rules.Tags(host) {
		for _, f := range c.buckets.Get(tag) {
			if !useGeneric && f.IsGeneric() {
				continue
			}

			if f.Match(host, tldRemoved) != f.IsNot {
				filters = append(filters, f)
			}
		}
	}

	return filters
}

// SelectorsFor returns the unique selectors to hide on the pages of host,
// without the ones that have exceptions for host.
func (c *ElementContainer) SelectorsFor(host string, useGeneric bool) (selectors []string) {
	filters := c.Get(host, useGeneric)

	unhidden := map[string]struct{}{}
	for _, f := range filters {
		if !f.IsHide {
			unhidden[f.Selector] = struct{}{}
		}
	}

	seen := map[string]struct{}{}
	for _, f := range filters {
		if !f.IsHide {
			continue
		}

		if _, ok := unhidden[f.Selector]; ok {
			continue
		}

		if _, ok := seen[f.Selector]; ok {
			continue
		}

		seen[f.Selector] = struct{}{}
		selectors = append(selectors, f.Selector)
	}

	return selectors
}

// Filters returns all filters in the insertion order.  The caller must not
// modify the returned slice.
func (c *ElementContainer) Filters() (filters []*rules.ElementFilter) {
	return c.filters
}

// Len returns the number of filters in the container.
func (c *ElementContainer) Len() (n int) {
	return len(c.filters)
}
