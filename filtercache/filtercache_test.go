package filtercache_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/filtercache"
	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/filterutil"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRules are the rules of the test database.
var testRules = strings.Join([]string{
	"! Title: Cache test",
	"! Expires: 2 days",
	"||ads.example.org^",
	"/banner/*/img^",
	`/^https?://tracker\.[a-z]+/$script,third-party`,
	"@@||shop.example.org^$document",
	"||important.org^$important,match-case",
	"@@||important.org/ok^$important",
	"/ads.js$domain=a.org|~b.a.org",
	"##.generic",
	"example.*##.wildcard",
	"~shop.org##.not-shop",
	"example.org#@#.generic",
}, "\n")

// newTestDatabase compiles testRules and a hosts list.
func newTestDatabase(tb testing.TB) (db *contentfilter.Database) {
	tb.Helper()

	db, err := contentfilter.Compile(context.Background(), slogutil.NewDiscardLogger(), []filterlist.RuleList{
		&filterlist.StringRuleList{
			RulesText: testRules,
			ID:        1,
		},
		&filterlist.StringRuleList{
			RulesText: "0.0.0.0 tracker.example.net\n0.0.0.0 ads.example.org",
			ID:        2,
			Format:    filterlist.FormatHosts,
		},
	})
	require.NoError(tb, err)

	return db
}

// texts returns the texts of the filters.
func texts[T rules.Rule](filters []T) (res []string) {
	for _, f := range filters {
		res = append(res, f.Text())
	}

	return res
}

// assertEqualDatabases fails t if the databases have different contents or
// order.
func assertEqualDatabases(t *testing.T, want, got *contentfilter.Database) {
	t.Helper()

	for _, p := range []struct {
		want *contentfilter.FilterIndex
		got  *contentfilter.FilterIndex
	}{
		{want.Block, got.Block},
		{want.Allow, got.Allow},
		{want.Important, got.Important},
		{want.ImportantAllow, got.ImportantAllow},
	} {
		require.Equal(t, p.want.Len(), p.got.Len())

		for i, f := range p.want.Filters() {
			g := p.got.Filters()[i]
			assert.Equal(t, f.RuleText, g.RuleText)
			assert.Equal(t, f.Kind, g.Kind)
			assert.Equal(t, f.Pattern, g.Pattern)
			assert.Equal(t, f.ContentType, g.ContentType)
			assert.Equal(t, f.Party, g.Party)
			assert.Equal(t, f.IgnoreCase, g.IgnoreCase)
			assert.Equal(t, f.ListID, g.ListID)
			assert.Equal(t, f.Domains.Entries(), g.Domains.Entries())
		}
	}

	assert.Equal(t, want.Elements.Filters(), got.Elements.Filters())
	assert.Equal(t, want.Infos, got.Infos)
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)

	buf := &bytes.Buffer{}
	err := filtercache.Encode(buf, db)
	require.NoError(t, err)

	got, err := filtercache.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assertEqualDatabases(t, db, got)
	assert.Equal(t, 2*24*time.Hour, got.Infos[1].Expires)

	e, err := contentfilter.NewEngine(&contentfilter.EngineConfig{
		Logger:   slogutil.NewDiscardLogger(),
		Database: got,
	})
	require.NoError(t, err)

	res := e.MatchRequest(rules.NewRequest("http://x.ads.example.org/a.js", "http://news.org/", rules.TypeScript))
	assert.True(t, res.Blocked)

	res = e.MatchRequest(rules.NewRequest("http://x.ads.example.org/a.js", "http://shop.example.org/", rules.TypeScript))
	assert.False(t, res.Blocked)

	assert.Equal(t, []string{".wildcard", ".not-shop"}, e.CosmeticResult("http://example.org/").Selectors)

	// Encoding is deterministic.
	again := &bytes.Buffer{}
	err = filtercache.Encode(again, got)
	require.NoError(t, err)

	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestEncodeIndex(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)

	buf := &bytes.Buffer{}
	err := filtercache.EncodeIndex(buf, db.Block)
	require.NoError(t, err)

	idx, err := filtercache.DecodeIndex(buf)
	require.NoError(t, err)

	assert.Equal(t, texts(db.Block.Filters()), texts(idx.Filters()))
}

func TestDecode_corrupt(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	err := filtercache.Encode(buf, newTestDatabase(t))
	require.NoError(t, err)

	data := buf.Bytes()

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()

		for _, n := range []int{0, 3, 6, len(data) / 2, len(data) - 1} {
			_, decErr := filtercache.Decode(bytes.NewReader(data[:n]))
			assert.ErrorIs(t, decErr, filtercache.ErrCorrupt)
			assert.ErrorIs(t, decErr, filterutil.ErrLength)
		}
	})

	t.Run("header", func(t *testing.T) {
		t.Parallel()

		broken := bytes.Clone(data)
		broken[0] ^= 0xff

		_, decErr := filtercache.Decode(bytes.NewReader(broken))
		assert.ErrorIs(t, decErr, filtercache.ErrCorrupt)
	})

	t.Run("trailer", func(t *testing.T) {
		t.Parallel()

		broken := bytes.Clone(data)
		broken[len(broken)-1] ^= 0xff

		_, decErr := filtercache.Decode(bytes.NewReader(broken))
		assert.ErrorIs(t, decErr, filtercache.ErrCorrupt)
	})

	t.Run("version", func(t *testing.T) {
		t.Parallel()

		broken := bytes.Clone(data)
		broken[4] = 0x7f

		_, decErr := filtercache.Decode(bytes.NewReader(broken))
		assert.ErrorIs(t, decErr, filtercache.ErrCorrupt)
	})
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "filters.bin")

	_, err := filtercache.Load(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	db := newTestDatabase(t)
	err = filtercache.Save(path, db)
	require.NoError(t, err)

	// Saving again replaces the file.
	err = filtercache.Save(path, db)
	require.NoError(t, err)

	got, err := filtercache.Load(path)
	require.NoError(t, err)

	assertEqualDatabases(t, db, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	assert.Len(t, entries, 1)
}

func BenchmarkDecode(b *testing.B) {
	buf := &bytes.Buffer{}
	err := filtercache.Encode(buf, newTestDatabase(b))
	require.NoError(b, err)

	data := buf.Bytes()

	var db *contentfilter.Database

	b.ReportAllocs()
	for b.Loop() {
		db, err = filtercache.Decode(bytes.NewReader(data))
	}

	require.NoError(b, err)
	require.NotNil(b, db)
}
