package rules

import (
	"strings"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
)

// ElementFilter is a compiled element hiding rule, "example.org##.banner".
type ElementFilter struct {
	// Domain is the lower-cased domain of the pages the rule applies to.  It
	// is empty for generic rules.  For TLD-wildcard rules, "example.*", it
	// doesn't contain the wildcard suffix.
	Domain string

	// Selector is the CSS selector of the elements to hide.
	Selector string

	// RuleText is the original rule text.
	RuleText string

	// ListID is the ID of the filter list the rule comes from.
	ListID int

	// TLDWildcard is true if Domain matches under any public suffix.
	TLDWildcard bool

	// IsHide is false for exception rules, "example.org#@#.banner".
	IsHide bool

	// IsNot is true for the negated domains, "~example.org##.banner", which
	// apply to every page except the domain's ones.
	IsNot bool
}

// type check
var _ Rule = (*ElementFilter)(nil)

// Text implements the [Rule] interface for *ElementFilter.
func (f *ElementFilter) Text() (text string) {
	return f.RuleText
}

// GetFilterListID implements the [Rule] interface for *ElementFilter.
func (f *ElementFilter) GetFilterListID() (id int) {
	return f.ListID
}

// IsGeneric returns true if the rule applies to every page not excluded
// explicitly.
func (f *ElementFilter) IsGeneric() (ok bool) {
	return f.Domain == "" || f.IsNot
}

// Tag returns the index key of the rule.  Negated rules must be found on the
// pages of other domains, so they use [GenericTag].
func (f *ElementFilter) Tag() (tag string) {
	if f.IsNot || f.Domain == "" {
		return GenericTag
	}

	return BestTag(f.Domain, true, true)
}

// Match returns true if the page with the lower-cased host belongs to the
// rule's domain.  tldRemoved is host without its public suffix, see
// [ufnet.RemoveEffectiveTLD].  The result is not inverted for IsNot rules.
func (f *ElementFilter) Match(host, tldRemoved string) (ok bool) {
	switch {
	case f.Domain == "":
		return true
	case f.TLDWildcard:
		return tldRemoved != "" && ufnet.IsSubdomainOrSelf(tldRemoved, f.Domain)
	default:
		return ufnet.IsSubdomainOrSelf(host, f.Domain)
	}
}

// NewElementFilter returns an element hiding rule for a single domain in the
// rule syntax, possibly negated or with a wildcard public suffix.
func NewElementFilter(domain, selector, text string, listID int, isHide bool) (f *ElementFilter) {
	f = &ElementFilter{
		Selector: selector,
		RuleText: text,
		ListID:   listID,
		IsHide:   isHide,
	}

	domain = strings.ToLower(domain)
	if strings.HasPrefix(domain, "~") {
		f.IsNot = true
		domain = domain[1:]
	}

	if strings.HasSuffix(domain, ".*") {
		f.TLDWildcard = true
		domain = domain[:len(domain)-2]
	}

	f.Domain = domain

	return f
}
