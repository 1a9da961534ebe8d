package filterlist_test

import (
	"testing"

	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLegacy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		line        string
		wantPattern string
		wantKind    rules.Kind
	}{{
		name:        "regex",
		line:        `[^https?://ads\.]`,
		wantPattern: `^https?://ads\.`,
		wantKind:    rules.KindRegex,
	}, {
		name:        "h",
		line:        "h ads.example.org",
		wantPattern: "ads.example.org",
		wantKind:    rules.KindHost,
	}, {
		name:        "host",
		line:        "host ads.example.org",
		wantPattern: "ads.example.org",
		wantKind:    rules.KindHost,
	}, {
		name:        "ip",
		line:        "127.0.0.1 ads.example.org",
		wantPattern: "ads.example.org",
		wantKind:    rules.KindHost,
	}, {
		name:        "contains_host",
		line:        "c doubleclick",
		wantPattern: "doubleclick",
		wantKind:    rules.KindContainsHost,
	}, {
		name:        "url",
		line:        "http://ads.example.org/",
		wantPattern: "ads.example.org",
		wantKind:    rules.KindStartEnd,
	}, {
		name:        "url_no_slash",
		line:        "https://ads.example.org",
		wantPattern: "ads.example.org",
		wantKind:    rules.KindStartEnd,
	}, {
		name:        "contains",
		line:        "/banner.gif",
		wantPattern: "/banner.gif",
		wantKind:    rules.KindContains,
	}, {
		name:        "contains_space",
		line:        "x ads",
		wantPattern: "x ads",
		wantKind:    rules.KindContains,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rs, err := filterlist.DecodeLegacy(tc.line, testListID)
			require.NoError(t, err)
			require.Len(t, rs, 1)

			f, ok := rs[0].(*rules.Filter)
			require.True(t, ok)

			assert.Equal(t, tc.wantKind, f.Kind)
			assert.Equal(t, tc.wantPattern, f.Pattern)
			assert.Equal(t, tc.line, f.Text())
			assert.Equal(t, rules.TypeAll, f.ContentType)
		})
	}
}

func TestDecodeLegacy_errors(t *testing.T) {
	t.Parallel()

	_, err := filterlist.DecodeLegacy("ab", testListID)
	assert.ErrorIs(t, err, rules.ErrTooShort)

	_, err = filterlist.DecodeLegacy("[(]", testListID)
	assert.Error(t, err)
}
