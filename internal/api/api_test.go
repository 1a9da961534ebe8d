package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/internal/api"
	"github.com/AdguardTeam/contentfilter/userrules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRules are the rules of the test engine.
const testRules = "||ads.example.com^\n@@||shop.example.com^$document\n##.banner\nexample.com##.ad"

// newTestServer returns an API server with a small engine.
func newTestServer(tb testing.TB) (s *api.Server) {
	tb.Helper()

	ctx := context.Background()
	logger := slogutil.NewDiscardLogger()

	db, err := contentfilter.Compile(ctx, logger, []filterlist.RuleList{
		&filterlist.StringRuleList{RulesText: testRules, ID: 3},
	})
	require.NoError(tb, err)

	user, err := userrules.New(ctx, &userrules.Config{Logger: logger})
	require.NoError(tb, err)
	testutil.CleanupAndRequireSuccess(tb, user.Close)

	e, err := contentfilter.NewEngine(&contentfilter.EngineConfig{
		Logger:    logger,
		Database:  db,
		UserRules: user,
		CacheSize: 100,
	})
	require.NoError(tb, err)

	return api.New(&api.Config{
		Logger:     logger,
		Engine:     e,
		UserRules:  user,
		ListenAddr: "127.0.0.1:0",
	})
}

// do sends the request to h and decodes the JSON response into resp, if it's
// not nil.  It returns the status code.
func do(tb testing.TB, h http.Handler, method, target, body string, resp any) (code int) {
	tb.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if resp != nil && rw.Code == http.StatusOK {
		require.NoError(tb, json.Unmarshal(rw.Body.Bytes(), resp))
	}

	return rw.Code
}

func TestServer_check(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()

	testCases := []struct {
		query    url.Values
		want     map[string]any
		name     string
		wantCode int
	}{{
		query: url.Values{
			"url":  {"http://sub.ads.example.com/x.js"},
			"page": {"http://news.example.com/"},
		},
		want: map[string]any{
			"blocked":      true,
			"source":       "block",
			"rule":         "||ads.example.com^",
			"list_id":      float64(3),
			"content_type": "script",
		},
		name:     "blocked",
		wantCode: http.StatusOK,
	}, {
		query: url.Values{
			"url":  {"http://cdn.shop.example.com/a.gif"},
			"page": {"http://shop.example.com/"},
			"type": {"image"},
		},
		want: map[string]any{
			"blocked":      false,
			"source":       "document_allow",
			"rule":         "@@||shop.example.com^$document",
			"list_id":      float64(3),
			"content_type": "image",
		},
		name:     "allowed",
		wantCode: http.StatusOK,
	}, {
		query: url.Values{
			"url":  {"http://example.org/"},
			"type": {"document"},
		},
		want: map[string]any{
			"blocked":      false,
			"source":       "none",
			"content_type": "document",
		},
		name:     "none",
		wantCode: http.StatusOK,
	}, {
		query:    url.Values{},
		want:     nil,
		name:     "no_url",
		wantCode: http.StatusBadRequest,
	}, {
		query: url.Values{
			"url":  {"http://example.org/"},
			"type": {"object"},
		},
		want:     nil,
		name:     "bad_type",
		wantCode: http.StatusBadRequest,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var resp map[string]any
			code := do(t, h, http.MethodGet, "/check?"+tc.query.Encode(), "", &resp)
			require.Equal(t, tc.wantCode, code)

			if tc.want != nil {
				assert.Equal(t, tc.want, resp)
			}
		})
	}
}

func TestServer_selectors(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()

	var resp struct {
		Selectors []string `json:"selectors"`
		Generic   bool     `json:"generic"`
	}

	code := do(t, h, http.MethodGet, "/selectors?page="+url.QueryEscape("https://www.example.com/"), "", &resp)
	require.Equal(t, http.StatusOK, code)

	assert.ElementsMatch(t, []string{".banner", ".ad"}, resp.Selectors)
	assert.True(t, resp.Generic)

	code = do(t, h, http.MethodGet, "/selectors", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_userRules(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()

	type userRulesResp struct {
		Rules []struct {
			Host   string `json:"host"`
			Action string `json:"action"`
		} `json:"rules"`
		Version uint64 `json:"version"`
	}

	var resp userRulesResp
	code := do(t, h, http.MethodGet, "/userrules", "", &resp)
	require.Equal(t, http.StatusOK, code)

	assert.Empty(t, resp.Rules)
	assert.Zero(t, resp.Version)

	body := `{"page":"http://News.example.com/article","action":"allow","enabled":true}`
	code = do(t, h, http.MethodPut, "/userrules", body, &resp)
	require.Equal(t, http.StatusOK, code)

	require.Len(t, resp.Rules, 1)
	assert.Equal(t, "news.example.com", resp.Rules[0].Host)
	assert.Equal(t, "allow", resp.Rules[0].Action)
	assert.Equal(t, uint64(1), resp.Version)

	var check map[string]any
	target := "/check?" + url.Values{
		"url":  {"http://ads.example.com/x.js"},
		"page": {"http://news.example.com/"},
	}.Encode()
	code = do(t, h, http.MethodGet, target, "", &check)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, false, check["blocked"])
	assert.Equal(t, "user_allow", check["source"])

	for _, bad := range []string{
		`{"page":"news.example.com","action":"deny","enabled":true}`,
		`{"page":"news.example.com","action":"allow"}`,
		`{"action":"allow","enabled":true}`,
		`{"page":"http:///","action":"block","enabled":true}`,
	} {
		code = do(t, h, http.MethodPut, "/userrules", bad, nil)
		assert.NotEqual(t, http.StatusOK, code, bad)
	}
}

func TestServer_stats(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()

	var resp struct {
		Cache *struct {
			Capacity int `json:"capacity"`
		} `json:"cache"`
		Rules    int `json:"rules"`
		Elements int `json:"elements"`
	}

	code := do(t, h, http.MethodGet, "/stats", "", &resp)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, 4, resp.Rules)
	assert.Equal(t, 2, resp.Elements)
	require.NotNil(t, resp.Cache)
	assert.Positive(t, resp.Cache.Capacity)
}

func TestServer_Start(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	err := s.Start(context.Background())
	require.NoError(t, err)

	testutil.CleanupAndRequireSuccess(t, func() (err error) {
		return s.Shutdown(context.Background())
	})
}
