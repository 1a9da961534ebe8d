package rules

import (
	"strings"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
	"golang.org/x/net/publicsuffix"
)

// DomainEntry is a single domain of a domain restriction.
type DomainEntry struct {
	// Domain is the lower-cased domain.  A domain ending with ".*" matches
	// the same name under any public suffix.
	Domain string

	// Include is false for the excluded domains, "~example.org".
	Include bool
}

// DomainMap restricts a rule to the pages of some domains.  It is immutable
// once created and safe for concurrent use.
type DomainMap struct {
	// exact maps the domains without wildcards to their inclusion flag.
	exact map[string]bool

	// wildcard are the entries with the ".*" suffix.
	wildcard []DomainEntry

	// entries are all entries in their original order.
	entries []DomainEntry

	// include is true if at least one entry is included, in which case the
	// pages of the other domains are not matched.
	include bool
}

// NewDomainMap returns a new domain map with the entries.  It returns nil if
// there are no entries.  If a domain is repeated, the first entry wins.
func NewDomainMap(entries []DomainEntry) (m *DomainMap) {
	if len(entries) == 0 {
		return nil
	}

	m = &DomainMap{
		exact:   make(map[string]bool, len(entries)),
		entries: entries,
	}

	for _, e := range entries {
		m.include = m.include || e.Include

		if strings.HasSuffix(e.Domain, ".*") {
			m.wildcard = append(m.wildcard, e)

			continue
		}

		if _, ok := m.exact[e.Domain]; !ok {
			m.exact[e.Domain] = e.Include
		}
	}

	return m
}

// Entries returns the entries in their original order.  The caller must not
// modify the returned slice.
func (m *DomainMap) Entries() (entries []DomainEntry) {
	if m == nil {
		return nil
	}

	return m.entries
}

// Include returns true if the map has included domains.
func (m *DomainMap) Include() (ok bool) {
	return m != nil && m.include
}

// Lookup returns the inclusion flag of the closest entry for host.  Entries
// apply to subdomains as well.  found is false if no entry applies.
func (m *DomainMap) Lookup(host string) (include, found bool) {
	if m == nil {
		return false, false
	}

	for d := host; d != ""; {
		if include, found = m.exact[d]; found {
			return include, true
		}

		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}

		d = d[i+1:]
	}

	for _, e := range m.wildcard {
		if matchWildcardDomain(e.Domain, host) {
			return e.Include, true
		}
	}

	return false, false
}

// Match returns true if the restriction allows the page with pageHost.  Nil
// maps and empty hosts always match.
func (m *DomainMap) Match(pageHost string) (ok bool) {
	if m == nil || pageHost == "" {
		return true
	}

	include, found := m.Lookup(pageHost)
	if m.include {
		return found && include
	}

	return !found || include
}

// matchWildcardDomain returns true if host is the domain or a subdomain of the
// pattern like "google.*" under any public suffix.
func matchWildcardDomain(pattern, host string) (ok bool) {
	// Keep the dot, "google.".
	prefix := pattern[:len(pattern)-1]
	if !strings.HasPrefix(host, prefix) && !strings.Contains(host, "."+prefix) {
		return false
	}

	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == "" || !strings.HasSuffix(host, prefix+suffix) {
		return false
	}

	return ufnet.IsSubdomainOrSelf(host, prefix+suffix)
}
