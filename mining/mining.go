// Package mining contains the built-in protection against cryptocurrency
// mining scripts.
package mining

import (
	"fmt"

	"github.com/AdguardTeam/contentfilter/rules"
)

// entry is a built-in filter in a short form.
type entry struct {
	pattern string
	kind    rules.Kind
}

// entries are the built-in filters in the order of evaluation.
var entries = []entry{
	// Hosts.
	{"cnhv.co", rules.KindHost},
	{"coinhive.com", rules.KindHost},
	{"coin-hive.com", rules.KindHost},
	{"gus.host", rules.KindHost},
	{"jsecoin.com", rules.KindContainsHost},
	{"static.reasedoper.pw", rules.KindHost},
	{"mataharirama.xyz", rules.KindHost},
	{"listat.biz", rules.KindHost},
	{"lmodr.biz", rules.KindHost},
	{"crypto-loot.com", rules.KindContainsHost},
	{"2giga.link", rules.KindContainsHost},
	{"coinerra.com", rules.KindHost},
	{"coin-have.com", rules.KindHost},
	{"afminer.com", rules.KindContainsHost},
	{"coinblind.com", rules.KindContainsHost},
	{"monerominer.rocks", rules.KindContains},
	{"cloudcoins.co", rules.KindContainsHost},
	{"coinlab.biz", rules.KindHost},
	{"papoto.com", rules.KindHost},
	{"rocks.io", rules.KindHost},
	{"adminer.com", rules.KindContainsHost},
	{"ad-miner.com", rules.KindContainsHost},
	{"party-nngvitbizn.now.sh", rules.KindHost},
	{"bitporno.com", rules.KindContainsHost},
	{"cryptoloot.pro", rules.KindHost},
	{"load.jsecoin.com", rules.KindHost},
	{"miner.pr0gramm.com", rules.KindHost},
	{"minemytraffic.com", rules.KindHost},
	{"ppoi.org", rules.KindHost},
	{"projectpoi.com", rules.KindHost},
	{"api.inwemo.com", rules.KindHost},
	{"jsccnn.com", rules.KindHost},
	{"jscdndel.com", rules.KindHost},
	{"coinhiveproxy.com", rules.KindHost},
	{"coinnebula.com", rules.KindHost},
	{"cdn.cloudcoins.co", rules.KindHost},
	{"go.megabanners.cf", rules.KindHost},
	{"bjorksta.men", rules.KindHost},
	{"crypto.csgocpu.com", rules.KindHost},
	{"noblock.pro", rules.KindHost},
	{"1q2w3.me", rules.KindHost},
	{"minero.pw", rules.KindHost},
	{"webmine.cz", rules.KindHost},

	// URLs.
	{"kisshentai.net/content/js/c-hive.js", rules.KindStartsWith},
	{"kiwifarms.net/js/jawsh/xmr/xmr.min.js", rules.KindStartsWith},
	{"anime.reactor.cc/js/ch/cryptonight.wasm", rules.KindStartsWith},
	{"cookiescript.info/libs/", rules.KindStartsWith},
	{"cookiescriptcdn.pro/libs/", rules.KindStartsWith},
	{"baiduccdn1.com/lib/", rules.KindStartsWith},
}

// ListID is the filter list ID of the built-in filters.
const ListID = -1

// Protector blocks the third-party loads of known mining scripts.  It is
// evaluated independently of the configured filter lists and is safe for
// concurrent use.
type Protector struct {
	filters []*rules.Filter
}

// New returns a new protector with the built-in filters.
func New() (p *Protector) {
	filters := make([]*rules.Filter, 0, len(entries))
	for _, e := range entries {
		f, err := rules.NewFilter(&rules.FilterConfig{
			Pattern:     e.pattern,
			Text:        e.pattern,
			ListID:      ListID,
			ContentType: rules.TypeAll,
			Kind:        e.kind,
			Party:       rules.PartyThird,
			IgnoreCase:  true,
		})
		if err != nil {
			// Should never happen, since the entries are constant.
			panic(fmt.Errorf("mining filter %q: %w", e.pattern, err))
		}

		filters = append(filters, f)
	}

	return &Protector{
		filters: filters,
	}
}

// Match returns the first built-in filter that matches r, or nil.  Requests
// to the page's own host are never matched.
func (p *Protector) Match(r *rules.Request) (f *rules.Filter) {
	if r.Hostname == r.PageHostname {
		return nil
	}

	for _, f = range p.filters {
		if f.Match(r) {
			return f
		}
	}

	return nil
}

// IsBlock returns true if r must be blocked as a mining script.
func (p *Protector) IsBlock(r *rules.Request) (ok bool) {
	return p.Match(r) != nil
}

// Len returns the number of the built-in filters.
func (p *Protector) Len() (n int) {
	return len(p.filters)
}
