package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
	"github.com/AdguardTeam/golibs/errors"
)

// Kind is the kind of the pattern test of a [Filter].  The values are
// persisted in the binary filter cache and must not change.
type Kind uint8

// Kind values.
const (
	// KindContains matches the pattern anywhere in the URL.
	KindContains Kind = 1
	// KindHost matches the request hostname and its subdomains.
	KindHost Kind = 2
	// KindContainsHost matches the pattern anywhere in the request hostname.
	KindContainsHost Kind = 3
	// KindStartsWith matches the pattern at the start of a hostname label in
	// the scheme-specific part, "||example.org/ads".
	KindStartsWith Kind = 4
	// KindEndsWith matches the pattern followed by a separator or the end of
	// the URL, "/ads/banner^".
	KindEndsWith Kind = 5
	// KindStartEnd is KindStartsWith and KindEndsWith combined,
	// "||example.org^".
	KindStartEnd Kind = 6
	// KindRegex matches the URL with a regular expression.
	KindRegex Kind = 7
	// KindRegexHost matches the request hostname with a regular expression.
	KindRegexHost Kind = 8
	// KindPattern matches the URL with an Adblock Plus wildcard pattern.
	KindPattern Kind = 11
)

// String implements the [fmt.Stringer] interface for Kind.
func (k Kind) String() (s string) {
	switch k {
	case KindContains:
		return "contains"
	case KindHost:
		return "host"
	case KindContainsHost:
		return "contains_host"
	case KindStartsWith:
		return "starts_with"
	case KindEndsWith:
		return "ends_with"
	case KindStartEnd:
		return "start_end"
	case KindRegex:
		return "regex"
	case KindRegexHost:
		return "regex_host"
	case KindPattern:
		return "pattern"
	default:
		return fmt.Sprintf("!bad_kind_%d", k)
	}
}

// Party is the third-party restriction of a filter.
type Party uint8

// Party values.
const (
	// PartyAny matches any request.
	PartyAny Party = iota
	// PartyFirst matches requests to the same site as the page.  $~third-party
	PartyFirst
	// PartyThird matches requests to other sites.  $third-party
	PartyThird
	// PartyStrictFirst matches requests to the page's hostname.  $strict1p
	PartyStrictFirst
	// PartyStrictThird matches requests to other hostnames.  $strict3p
	PartyStrictThird
)

// FilterConfig is the configuration structure for [NewFilter].
type FilterConfig struct {
	// Domains restricts the filter to some pages.  It may be nil.
	Domains *DomainMap

	// Pattern is the pattern in the syntax of Kind.
	Pattern string

	// Text is the original rule text.
	Text string

	// ListID is the ID of the filter list the rule comes from.
	ListID int

	// ContentType is the mask of the content types the filter applies to.
	ContentType ContentType

	// Kind is the kind of the pattern test.
	Kind Kind

	// Party is the third-party restriction.
	Party Party

	// IgnoreCase makes the pattern test case-insensitive.
	IgnoreCase bool

	// Allow is true for allowlist rules, "@@".
	Allow bool

	// Important is true for the rules with the $important modifier.
	Important bool

	// BadFilter is true for the rules with the $badfilter modifier, which
	// disable other rules instead of matching requests.
	BadFilter bool
}

// Filter is a compiled network filtering rule.  It is immutable once created
// and safe for concurrent use.
type Filter struct {
	// Domains restricts the filter to some pages.  It may be nil.
	Domains *DomainMap

	// re is the compiled expression of the regex kinds.
	re *regexp.Regexp

	// wildcard is the compiled pattern of KindPattern.
	wildcard *wildcardPattern

	// Pattern is the pattern.  It's lower-cased if IgnoreCase is true or if
	// the Kind is a hostname one.
	Pattern string

	// RuleText is the original rule text.
	RuleText string

	// tag is the index key, see [BestTag].
	tag string

	// ListID is the ID of the filter list the rule comes from.
	ListID int

	// ContentType is the mask of the content types the filter applies to.
	ContentType ContentType

	// Kind is the kind of the pattern test.
	Kind Kind

	// Party is the third-party restriction.
	Party Party

	// IgnoreCase makes the pattern test case-insensitive.
	IgnoreCase bool

	// Allow is true for allowlist rules.
	Allow bool

	// Important is true for the rules with the $important modifier.
	Important bool

	// BadFilter is true for the rules that disable other rules.
	BadFilter bool
}

// type check
var _ Rule = (*Filter)(nil)

// NewFilter compiles a filter.  A pattern that cannot be compiled is an error,
// and the filter should be dropped.
func NewFilter(c *FilterConfig) (f *Filter, err error) {
	f = &Filter{
		Domains:     c.Domains,
		Pattern:     c.Pattern,
		RuleText:    c.Text,
		ListID:      c.ListID,
		ContentType: c.ContentType,
		Kind:        c.Kind,
		Party:       c.Party,
		IgnoreCase:  c.IgnoreCase,
		Allow:       c.Allow,
		Important:   c.Important,
		BadFilter:   c.BadFilter,
	}

	if f.RuleText == "" {
		f.RuleText = f.Pattern
	}

	switch f.Kind {
	case KindHost, KindContainsHost:
		if f.Pattern == "" {
			return nil, &RuleSyntaxError{Msg: "empty hostname", RuleText: f.RuleText}
		}

		f.Pattern = strings.ToLower(f.Pattern)
	case KindRegex, KindRegexHost:
		expr := f.Pattern
		if f.IgnoreCase {
			expr = "(?i)" + expr
		}

		f.re, err = regexp.Compile(expr)
		if err != nil {
			return nil, errors.Annotate(err, "compiling %q: %w", f.RuleText)
		}

		return f, nil
	case KindContains, KindStartsWith, KindEndsWith, KindStartEnd, KindPattern:
		if f.IgnoreCase {
			f.Pattern = strings.ToLower(f.Pattern)
		}
	default:
		return nil, &RuleSyntaxError{Msg: fmt.Sprintf("bad filter kind %d", f.Kind), RuleText: f.RuleText}
	}

	f.tag = filterTag(f.Kind, f.Pattern)
	if f.Kind == KindPattern {
		f.wildcard = compileWildcard(f.Pattern)
	}

	return f, nil
}

// filterTag returns the index key for a filter with the literal kind.
func filterTag(k Kind, pattern string) (tag string) {
	switch k {
	case KindStartsWith:
		return BestTag(pattern, true, false)
	case KindEndsWith:
		return BestTag(pattern, false, true)
	case KindStartEnd, KindHost:
		return BestTag(pattern, true, true)
	default:
		// The anchors of KindPattern are characters of the pattern, so the
		// runs next to them are bounded anyway.
		return BestTag(pattern, false, false)
	}
}

// Text implements the [Rule] interface for *Filter.
func (f *Filter) Text() (text string) {
	return f.RuleText
}

// GetFilterListID implements the [Rule] interface for *Filter.
func (f *Filter) GetFilterListID() (id int) {
	return f.ListID
}

// String implements the [fmt.Stringer] interface for *Filter.
func (f *Filter) String() (s string) {
	return f.RuleText
}

// Tag returns the index key of the filter.
func (f *Filter) Tag() (tag string) {
	return f.tag
}

// IsGeneric returns true if the filter isn't restricted to some domains.
func (f *Filter) IsGeneric() (ok bool) {
	return !f.Domains.Include()
}

// IsDocumentLevel returns true if the filter is about whole pages rather than
// the resources they load, for example "@@||example.org^$document".
func (f *Filter) IsDocumentLevel() (ok bool) {
	return f.ContentType&typeSubresource == 0 && f.ContentType&typePage != 0
}

// Match returns true if the filter matches the request.  The content type, the
// party, and the page domain restrictions are checked first.
func (f *Filter) Match(r *Request) (ok bool) {
	if f.ContentType&r.ContentType == 0 || !f.matchParty(r) || !f.Domains.Match(r.PageHostname) {
		return false
	}

	return f.matchPattern(r)
}

// matchParty checks the third-party restriction.
func (f *Filter) matchParty(r *Request) (ok bool) {
	switch f.Party {
	case PartyAny:
		return true
	case PartyFirst:
		return !r.ThirdParty
	case PartyThird:
		return r.ThirdParty
	case PartyStrictFirst:
		return r.Hostname == r.PageHostname
	case PartyStrictThird:
		return r.Hostname != r.PageHostname
	default:
		return false
	}
}

// matchPattern runs the pattern test of the filter's kind.  The hostname kinds
// never match requests without a hostname.
func (f *Filter) matchPattern(r *Request) (ok bool) {
	url, ssp := r.URL, r.SchemeSpecificPart
	if f.IgnoreCase {
		url, ssp = r.URLLowerCase, r.SchemeSpecificPartLowerCase
	}

	switch f.Kind {
	case KindContains:
		return strings.Contains(url, f.Pattern)
	case KindStartsWith:
		return matchDomainPrefix(ssp, f.Pattern, false)
	case KindEndsWith:
		return matchBeforeSeparator(url, f.Pattern)
	case KindStartEnd:
		return matchDomainPrefix(ssp, f.Pattern, true)
	case KindHost:
		return r.Hostname != "" && ufnet.IsSubdomainOrSelf(r.Hostname, f.Pattern)
	case KindContainsHost:
		return r.Hostname != "" && strings.Contains(r.Hostname, f.Pattern)
	case KindPattern:
		return f.wildcard.match(url)
	case KindRegex:
		return f.re.MatchString(r.URL)
	case KindRegexHost:
		return r.Hostname != "" && f.re.MatchString(r.Hostname)
	default:
		return false
	}
}

// matchDomainPrefix returns true if pattern occurs in the scheme-specific part
// ssp at the start of a hostname label.  If sepAfter is true, the occurrence
// must also be followed by a separator or the end of ssp.
func matchDomainPrefix(ssp, pattern string, sepAfter bool) (ok bool) {
	for from := 0; from <= len(ssp); {
		i := strings.Index(ssp[from:], pattern)
		if i < 0 {
			return false
		}

		i += from
		end := i + len(pattern)
		if isDomainStartInSSP(ssp, i) && (!sepAfter || end == len(ssp) || ufnet.IsSeparator(ssp[end])) {
			return true
		}

		from = i + 1
	}

	return false
}

// isDomainStartInSSP returns true if i is the start of a hostname label of
// ssp, which starts with "//".
func isDomainStartInSSP(ssp string, i int) (ok bool) {
	if i == 0 || i == 2 {
		return true
	}

	if i > 3 && strings.ContainsAny(ssp[2:i-1], "/?#") {
		return false
	}

	return ssp[i-1] == '.'
}

// matchBeforeSeparator returns true if pattern occurs in url followed by a
// separator or the end of url.
func matchBeforeSeparator(url, pattern string) (ok bool) {
	for from := 0; from <= len(url); {
		i := strings.Index(url[from:], pattern)
		if i < 0 {
			return false
		}

		end := from + i + len(pattern)
		if end == len(url) || ufnet.IsSeparator(url[end]) {
			return true
		}

		from += i + 1
	}

	return false
}
