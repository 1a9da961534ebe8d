package lookup

import (
	"strings"

	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/armon/go-radix"
	"github.com/bits-and-blooms/bloom/v3"
)

// hostsFalsePositiveRate is the acceptable false positive rate of the bloom
// filter of a [HostsTable].
const hostsFalsePositiveRate = 0.01

// HostsTable is a lookup table for the hostname filters without domain
// restrictions, which is what hosts files and plain domain lists consist of.
// The filters are stored in a radix tree under the reversed hostname, so that
// the filters of a hostname and its parent domains are found by a single walk.
// A bloom filter of the hostnames rules out most of the requests before the
// walk.
type HostsTable struct {
	// tree maps reversed hostnames to []*rules.Filter.
	tree *radix.Tree

	// hosts contains every hostname of the table.
	hosts *bloom.BloomFilter

	// n is the number of filters in the table.
	n int
}

// type check
var _ Table = (*HostsTable)(nil)

// NewHostsTable creates a new instance of the HostsTable.  expected is the
// estimated number of hostnames, which only affects the memory use and the
// rate of unnecessary tree walks.
func NewHostsTable(expected uint) (t *HostsTable) {
	return &HostsTable{
		tree:  radix.New(),
		hosts: bloom.NewWithEstimates(max(expected, 1), hostsFalsePositiveRate),
	}
}

// TryAdd implements the [Table] interface for *HostsTable.
func (t *HostsTable) TryAdd(f *rules.Filter) (ok bool) {
	if f.Kind != rules.KindHost || f.Domains != nil {
		return false
	}

	key := reverseHostname(f.Pattern)

	var filters []*rules.Filter
	if raw, found := t.tree.Get(key); found {
		filters = raw.([]*rules.Filter)
		for _, existing := range filters {
			if filterKey(existing) == filterKey(f) {
				return true
			}
		}
	}

	t.tree.Insert(key, append(filters, f))
	t.hosts.AddString(f.Pattern)
	t.n++

	return true
}

// Match implements the [Table] interface for *HostsTable.
func (t *HostsTable) Match(r *rules.Request, useGeneric bool) (f *rules.Filter) {
	t.walk(r, useGeneric, func(candidate *rules.Filter) (cont bool) {
		f = candidate

		return false
	})

	return f
}

// MatchAll implements the [Table] interface for *HostsTable.
func (t *HostsTable) MatchAll(r *rules.Request, useGeneric bool) (result []*rules.Filter) {
	t.walk(r, useGeneric, func(candidate *rules.Filter) (cont bool) {
		result = append(result, candidate)

		return true
	})

	return result
}

// Len implements the [Table] interface for *HostsTable.
func (t *HostsTable) Len() (n int) {
	return t.n
}

// walk calls f for every filter matching r, starting from the ones of the
// top-level domain, until f returns false.  All filters of the table are
// generic.
func (t *HostsTable) walk(r *rules.Request, useGeneric bool, f func(candidate *rules.Filter) (cont bool)) {
	if !useGeneric || r.Hostname == "" || !t.mayContain(r.Hostname) {
		return
	}

	t.tree.WalkPath(reverseHostname(r.Hostname), func(_ string, v any) (stop bool) {
		for _, candidate := range v.([]*rules.Filter) {
			if candidate.Match(r) && !f(candidate) {
				return true
			}
		}

		return false
	})
}

// mayContain returns true if the hostname or any of its parent domains may be
// in the table.
func (t *HostsTable) mayContain(hostname string) (ok bool) {
	for d := hostname; d != ""; {
		if t.hosts.TestString(d) {
			return true
		}

		i := strings.IndexByte(d, '.')
		if i < 0 {
			return false
		}

		d = d[i+1:]
	}

	return false
}

// reverseHostname returns the labels of hostname in the reverse order, each
// followed by a dot, so that the key of a domain is a prefix of the keys of
// its subdomains only.  For example, "ads.example.org" becomes
// "org.example.ads.".
func reverseHostname(hostname string) (key string) {
	var b strings.Builder
	b.Grow(len(hostname) + 1)

	for end := len(hostname); end > 0; {
		start := strings.LastIndexByte(hostname[:end], '.') + 1
		b.WriteString(hostname[start:end])
		b.WriteByte('.')
		end = start - 1
	}

	return b.String()
}
