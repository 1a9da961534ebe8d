package contentfilter_test

import (
	"testing"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFilter returns a new blocking filter or fails tb.
func newTestFilter(tb testing.TB, c *rules.FilterConfig) (f *rules.Filter) {
	tb.Helper()

	if c.ContentType == 0 {
		c.ContentType = rules.TypeAll
	}

	f, err := rules.NewFilter(c)
	require.NoError(tb, err)

	return f
}

func TestFilterIndex(t *testing.T) {
	t.Parallel()

	host := newTestFilter(t, &rules.FilterConfig{
		Pattern: "ads.example.org",
		Text:    "ads.example.org",
		Kind:    rules.KindHost,
	})
	contains := newTestFilter(t, &rules.FilterConfig{
		Pattern: "/banner/",
		Text:    "/banner/",
		Kind:    rules.KindContains,
	})
	scoped := newTestFilter(t, &rules.FilterConfig{
		Domains: rules.NewDomainMap([]rules.DomainEntry{{Domain: "news.org", Include: true}}),
		Pattern: "/banner/",
		Text:    "/banner/$domain=news.org",
		Kind:    rules.KindContains,
	})

	idx := contentfilter.NewFilterIndex(1)
	assert.True(t, idx.Add(contains))
	assert.True(t, idx.Add(host))
	assert.True(t, idx.Add(scoped))
	assert.False(t, idx.Add(contains))

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, []*rules.Filter{contains, host, scoped}, idx.Filters())

	r := rules.NewRequest("http://sub.ads.example.org/banner/1.png", "http://news.org/", rules.TypeImage)
	assert.Same(t, host, idx.Match(r))
	assert.Equal(t, []*rules.Filter{host, contains, scoped}, idx.MatchAll(r))

	r = rules.NewRequest("http://cdn.org/banner/1.png", "http://news.org/", rules.TypeImage)
	assert.Same(t, contains, idx.Match(r))
	assert.Same(t, scoped, idx.MatchGeneric(r, false))

	r = rules.NewRequest("http://cdn.org/banner/1.png", "http://other.org/", rules.TypeImage)
	assert.Nil(t, idx.MatchGeneric(r, false))
}

func BenchmarkFilterIndex_Match(b *testing.B) {
	idx := contentfilter.NewFilterIndex(100)
	for _, h := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		idx.Add(newTestFilter(b, &rules.FilterConfig{
			Pattern: h + ".ads.example.org",
			Text:    h + ".ads.example.org",
			Kind:    rules.KindHost,
		}))
	}

	idx.Add(newTestFilter(b, &rules.FilterConfig{
		Pattern: "/banner/",
		Text:    "/banner/",
		Kind:    rules.KindContains,
	}))

	r := rules.NewRequest("http://cdn.example.org/banner/1.png", "http://news.org/", rules.TypeImage)

	var f *rules.Filter

	b.ReportAllocs()
	for b.Loop() {
		f = idx.Match(r)
	}

	require.NotNil(b, f)
}
