package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWildcardPattern_match(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		pattern string
		url     string
		want    bool
	}{{
		name:    "wildcard",
		pattern: "example.com/ads/banner*.gif",
		url:     "http://example.com/ads/banner123.gif",
		want:    true,
	}, {
		name:    "last_wildcard",
		pattern: "test.*",
		url:     "test.com",
		want:    true,
	}, {
		name:    "first_wildcard",
		pattern: "*.test.com",
		url:     "browser.test.com",
		want:    true,
	}, {
		name:    "both_wildcards",
		pattern: "*.test.*",
		url:     "browser.test.com",
		want:    true,
	}, {
		name:    "both_wildcards_no_match",
		pattern: "*.test.*",
		url:     "test.com",
		want:    false,
	}, {
		name:    "start",
		pattern: "|http://baddomain.example/",
		url:     "http://baddomain.example/banner.gif",
		want:    true,
	}, {
		name:    "start_no_match",
		pattern: "|http://baddomain.example/",
		url:     "http://gooddomain.example/analyze?http://baddomain.example",
		want:    false,
	}, {
		name:    "end",
		pattern: "swf|",
		url:     "http://example.com/annoyingflash.swf",
		want:    true,
	}, {
		name:    "end_no_match",
		pattern: "swf|",
		url:     "http://example.com/swf/index.html",
		want:    false,
	}, {
		name:    "domain",
		pattern: "||example.com/banner.gif",
		url:     "http://example.com/banner.gif",
		want:    true,
	}, {
		name:    "domain_https",
		pattern: "||example.com/banner.gif",
		url:     "https://example.com/banner.gif",
		want:    true,
	}, {
		name:    "domain_subdomain",
		pattern: "||example.com/banner.gif",
		url:     "http://www.example.com/banner.gif",
		want:    true,
	}, {
		name:    "domain_other",
		pattern: "||example.com/banner.gif",
		url:     "http://badexample.com/banner.gif",
		want:    false,
	}, {
		name:    "domain_in_query",
		pattern: "||example.com/banner.gif",
		url:     " http://gooddomain.example/analyze?http://example.com/banner.gif",
		want:    false,
	}, {
		name:    "domain_wildcard",
		pattern: "||example.com/*/banner.gif",
		url:     "http://example.com/test/banner.gif",
		want:    true,
	}, {
		name:    "domain_wildcard_no_dir",
		pattern: "||example.com/*/banner.gif",
		url:     "http://example.com/banner.gif",
		want:    false,
	}, {
		name:    "domain_wildcard_subdomain",
		pattern: "||example.com/*/banner.gif",
		url:     "http://www.example.com/test/banner.gif",
		want:    true,
	}, {
		name:    "separator_slash",
		pattern: "http://example.com^",
		url:     "http://example.com/",
		want:    true,
	}, {
		name:    "separator_port",
		pattern: "http://example.com^",
		url:     "http://example.com:8000/",
		want:    true,
	}, {
		name:    "separator_dot",
		pattern: "http://example.com^",
		url:     "http://example.com.ar/",
		want:    false,
	}, {
		name:    "first_separator",
		pattern: "^adsite",
		url:     "browser.test.com/adsite",
		want:    true,
	}, {
		name:    "first_separator_no_match",
		pattern: "^adsite",
		url:     "browser.test.com/ads",
		want:    false,
	}, {
		name:    "mid_separator_dot",
		pattern: "p^adsite",
		url:     "browser.test.jp.adsite",
		want:    false,
	}, {
		name:    "mid_separator_slash",
		pattern: "p^adsite",
		url:     "browser.test.jp/adsite",
		want:    true,
	}, {
		name:    "end_separator",
		pattern: "adsite^",
		url:     "browser.test.com/adsite/ad",
		want:    true,
	}, {
		name:    "end_separator_dot",
		pattern: "adsite^",
		url:     "ads.test.com/adsite.ad/",
		want:    false,
	}, {
		name:    "end_separator_end_of_url",
		pattern: "adsite^",
		url:     "browser.test.com/adsite",
		want:    true,
	}, {
		name:    "separators",
		pattern: "adsite^ad",
		url:     "browser.test.com/adsite/ad",
		want:    true,
	}, {
		name:    "field_path",
		pattern: "/www/delivery/*",
		url:     "https://www.amazon.co.jp/",
		want:    false,
	}, {
		name:    "domain_separator",
		pattern: "||ad-stir.com^",
		url:     "http://js.ad-stir.com/js/nativeapi.js",
		want:    true,
	}, {
		name:    "domain_separator_wildcard",
		pattern: "||jandan.net^*/moyu.png",
		url:     "https://i.jandan.net/",
		want:    false,
	}, {
		name:    "end_separator_and_anchor",
		pattern: "/ads^|",
		url:     "http://example.com/ads",
		want:    true,
	}, {
		name:    "later_occurrence",
		pattern: "/ad*ad^",
		url:     "http://example.com/adx/add/ad?",
		want:    true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := compileWildcard(tc.pattern)
			assert.Equal(t, tc.want, p.match(tc.url))
		})
	}
}

func TestIsDomainStartInSSP(t *testing.T) {
	t.Parallel()

	const ssp = "//parts.blog.livedoor.jp/js/c2.js"

	assert.True(t, isDomainStartInSSP(ssp, 2))
	assert.True(t, isDomainStartInSSP(ssp, len("//parts.")))
	assert.False(t, isDomainStartInSSP(ssp, len("//pa")))
	assert.False(t, isDomainStartInSSP(ssp, len("//parts.blog.livedoor.jp/")))
}

func BenchmarkWildcardPattern_match(b *testing.B) {
	p := compileWildcard("||example.org^*/ads/*banner*.gif|")
	const url = "https://static.cdn.example.org/assets/ads/top/big-banner-1.gif"

	b.ReportAllocs()
	for b.Loop() {
		_ = p.match(url)
	}
}
