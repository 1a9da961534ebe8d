package mining_test

import (
	"testing"

	"github.com/AdguardTeam/contentfilter/mining"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtector_IsBlock(t *testing.T) {
	t.Parallel()

	p := mining.New()
	require.Positive(t, p.Len())

	testCases := []struct {
		name    string
		url     string
		pageURL string
		want    bool
	}{{
		name:    "host",
		url:     "https://coinhive.com/lib/coinhive.min.js",
		pageURL: "https://news.example.org/",
		want:    true,
	}, {
		name:    "subdomain",
		url:     "https://cdn.coinhive.com/lib.js",
		pageURL: "https://news.example.org/",
		want:    true,
	}, {
		name:    "contains_host",
		url:     "https://static.afminer.com.example/m.js",
		pageURL: "https://news.example.org/",
		want:    true,
	}, {
		name:    "contains",
		url:     "https://cdn.example.net/monerominer.rocks/m.js",
		pageURL: "https://news.example.org/",
		want:    true,
	}, {
		name:    "starts_with_case",
		url:     "https://kisshentai.net/Content/js/c-hive.js",
		pageURL: "https://news.example.org/",
		want:    true,
	}, {
		name:    "first_party",
		url:     "https://coinhive.com/lib/coinhive.min.js",
		pageURL: "https://coinhive.com/",
		want:    false,
	}, {
		name:    "unrelated",
		url:     "https://cdn.example.net/app.js",
		pageURL: "https://news.example.org/",
		want:    false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.url, tc.pageURL, rules.TypeScript)
			assert.Equal(t, tc.want, p.IsBlock(r))
		})
	}
}

func TestProtector_Match(t *testing.T) {
	t.Parallel()

	p := mining.New()
	r := rules.NewRequest("https://coinhive.com/lib.js", "https://news.example.org/", rules.TypeScript)

	f := p.Match(r)
	require.NotNil(t, f)

	assert.Equal(t, "coinhive.com", f.Text())
	assert.Equal(t, mining.ListID, f.GetFilterListID())
}

func BenchmarkProtector_IsBlock(b *testing.B) {
	p := mining.New()
	r := rules.NewRequest("https://cdn.example.net/app.js", "https://news.example.org/", rules.TypeScript)

	b.ReportAllocs()
	for b.Loop() {
		_ = p.IsBlock(r)
	}
}
