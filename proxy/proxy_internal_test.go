package proxy

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testInjectionHost is the injection host for tests.
const testInjectionHost = "injections.test"

// testRules are the rules of the test engine.
const testRules = "||ads.example.com^\n" +
	"||tracker.example.com^$script\n" +
	"example.com##.banner\n" +
	"@@||clean.example.com^$elemhide\n"

// newTestServer returns a proxy server that is not started.
func newTestServer(tb testing.TB) (s *Server) {
	tb.Helper()

	logger := slogutil.NewDiscardLogger()
	db, err := contentfilter.Compile(context.Background(), logger, []filterlist.RuleList{
		&filterlist.StringRuleList{RulesText: testRules, ID: 1},
	})
	require.NoError(tb, err)

	e, err := contentfilter.NewEngine(&contentfilter.EngineConfig{
		Logger:   logger,
		Database: db,
	})
	require.NoError(tb, err)

	s, err = New(&Config{
		Logger:        logger,
		Engine:        e,
		ListenAddr:    "127.0.0.1:0",
		InjectionHost: testInjectionHost,
	})
	require.NoError(tb, err)

	return s
}

// newHTMLResponse returns a response to r with the HTML body.
func newHTMLResponse(r *http.Request, body string) (res *http.Response) {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		header        http.Header
		name          string
		url           string
		wantPageURL   string
		wantType      rules.ContentType
		wantMainFrame bool
	}{{
		header: http.Header{
			"Sec-Fetch-Dest": {"document"},
		},
		name:          "fetch_document",
		url:           "https://example.com/",
		wantPageURL:   "https://example.com/",
		wantType:      rules.TypeDocument,
		wantMainFrame: true,
	}, {
		header: http.Header{
			"Accept": {"text/html,application/xhtml+xml"},
		},
		name:          "accept_document",
		url:           "https://example.com/",
		wantPageURL:   "https://example.com/",
		wantType:      rules.TypeDocument,
		wantMainFrame: true,
	}, {
		header: http.Header{
			"Sec-Fetch-Dest": {"script"},
			"Referer":        {"https://example.com/"},
		},
		name:          "fetch_script",
		url:           "https://cdn.example.org/app",
		wantPageURL:   "https://example.com/",
		wantType:      rules.TypeScript,
		wantMainFrame: false,
	}, {
		header: http.Header{
			"Sec-Fetch-Dest": {"empty"},
			"Sec-Fetch-Mode": {"cors"},
			"Referer":        {"https://example.com/"},
		},
		name:          "fetch_xhr",
		url:           "https://api.example.com/items",
		wantPageURL:   "https://example.com/",
		wantType:      rules.TypeXHR,
		wantMainFrame: false,
	}, {
		header: http.Header{
			"Sec-Fetch-Dest": {"iframe"},
			"Referer":        {"https://example.com/"},
		},
		name:          "fetch_frame",
		url:           "https://widgets.example.org/",
		wantPageURL:   "https://example.com/",
		wantType:      rules.TypeSubdocument,
		wantMainFrame: false,
	}, {
		header: http.Header{
			"Referer": {"https://example.com/"},
		},
		name:          "extension",
		url:           "https://example.com/logo.png",
		wantPageURL:   "https://example.com/",
		wantType:      rules.TypeImage,
		wantMainFrame: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, tc.url, nil)
			r.Header = tc.header

			fs := newSession("1", r)
			assert.Equal(t, tc.wantType, fs.request.ContentType)
			assert.Equal(t, tc.wantPageURL, fs.request.PageURL)
			assert.Equal(t, tc.wantMainFrame, fs.isMainFrame)
		})
	}
}

func TestSession_setResponse(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "https://cdn.example.org/data", nil)
	r.Header.Set("Referer", "https://example.com/")

	fs := newSession("1", r)
	require.False(t, fs.exactType)

	res := &http.Response{Header: http.Header{"Content-Type": {"text/javascript; charset=UTF-8"}}}
	assert.True(t, fs.setResponse(res))
	assert.Equal(t, rules.TypeScript, fs.request.ContentType)

	assert.False(t, fs.setResponse(res))

	r = httptest.NewRequest(http.MethodGet, "https://cdn.example.org/data", nil)
	r.Header.Set("Sec-Fetch-Dest", "image")

	fs = newSession("2", r)
	assert.False(t, fs.setResponse(res))
	assert.Equal(t, rules.TypeImage, fs.request.ContentType)
}

func TestServer_filterRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	testCases := []struct {
		header      http.Header
		name        string
		url         string
		wantBody    string
		wantBlocked bool
	}{{
		header: http.Header{
			"Sec-Fetch-Dest": {"image"},
			"Referer":        {"https://news.example.com/"},
		},
		name:        "blocked_resource",
		url:         "https://ads.example.com/banner.gif",
		wantBody:    "",
		wantBlocked: true,
	}, {
		header: http.Header{
			"Sec-Fetch-Dest": {"document"},
		},
		name:        "blocked_document",
		url:         "https://ads.example.com/",
		wantBody:    "||ads.example.com^",
		wantBlocked: true,
	}, {
		header: http.Header{
			"Sec-Fetch-Dest": {"image"},
			"Referer":        {"https://news.example.com/"},
		},
		name:        "other_type",
		url:         "https://tracker.example.com/pixel.gif",
		wantBody:    "",
		wantBlocked: false,
	}, {
		header: http.Header{
			"Sec-Fetch-Dest": {"script"},
			"Referer":        {"https://news.example.com/"},
		},
		name:        "blocked_script",
		url:         "https://tracker.example.com/t.js",
		wantBody:    "",
		wantBlocked: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, tc.url, nil)
			r.Header = tc.header

			fs, res := s.filterRequest("1", r)
			require.NotNil(t, fs)

			if !tc.wantBlocked {
				assert.Nil(t, res)

				return
			}

			require.NotNil(t, res)
			assert.Equal(t, http.StatusForbidden, res.StatusCode)

			body, err := io.ReadAll(res.Body)
			require.NoError(t, err)

			if tc.wantBody == "" {
				assert.Empty(t, body)
			} else {
				assert.Contains(t, string(body), tc.wantBody)
			}
		})
	}
}

func TestServer_filterResponse(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	const page = "<html><head><title>News</title></head><body>Hi</body></html>"

	t.Run("inject", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "https://news.example.com/", nil)
		r.Header.Set("Sec-Fetch-Dest", "document")

		fs, res := s.filterRequest("1", r)
		require.Nil(t, res)
		assert.Equal(t, "gzip, deflate", r.Header.Get("Accept-Encoding"))

		res = s.filterResponse(fs, newHTMLResponse(r, page))
		require.NotNil(t, res)

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)

		link := s.stylesheetLink("https://news.example.com/")
		assert.Equal(t, "<html><head><title>News</title>"+link+"</head><body>Hi</body></html>", string(body))
		assert.Equal(t, int64(len(body)), res.ContentLength)
	})

	t.Run("gzip", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "https://news.example.com/", nil)
		r.Header.Set("Sec-Fetch-Dest", "document")

		fs, _ := s.filterRequest("2", r)

		buf := &bytes.Buffer{}
		gz := gzip.NewWriter(buf)
		_, err := gz.Write([]byte(page))
		require.NoError(t, err)
		require.NoError(t, gz.Close())

		res := newHTMLResponse(r, buf.String())
		res.Header.Set("Content-Encoding", "gzip")

		res = s.filterResponse(fs, res)
		require.NotNil(t, res)
		assert.Empty(t, res.Header.Get("Content-Encoding"))

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)

		assert.Contains(t, string(body), "elemhide.css")
	})

	t.Run("charset", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "https://news.example.com/", nil)
		r.Header.Set("Sec-Fetch-Dest", "document")

		fs, _ := s.filterRequest("5", r)

		// "Привет" in windows-1251.
		res := newHTMLResponse(r, "<html><head></head><body>\xcf\xf0\xe8\xe2\xe5\xf2</body></html>")
		res.Header.Set("Content-Type", "text/html; charset=windows-1251")

		res = s.filterResponse(fs, res)
		require.NotNil(t, res)
		assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)

		assert.Contains(t, string(body), "<body>Привет</body>")
	})

	t.Run("unsupported_encoding", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "https://news.example.com/", nil)
		r.Header.Set("Sec-Fetch-Dest", "document")

		fs, _ := s.filterRequest("6", r)

		res := newHTMLResponse(r, page)
		res.Header.Set("Content-Encoding", "br")

		assert.Nil(t, s.filterResponse(fs, res))
	})

	t.Run("no_selectors", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "https://clean.example.com/", nil)
		r.Header.Set("Sec-Fetch-Dest", "document")

		fs, _ := s.filterRequest("3", r)
		assert.Nil(t, s.filterResponse(fs, newHTMLResponse(r, page)))
	})

	t.Run("blocked_by_type", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "https://tracker.example.com/load", nil)
		r.Header.Set("Referer", "https://news.example.com/")
		r.Header.Set("Accept", "image/webp,*/*")

		fs, res := s.filterRequest("4", r)
		require.Nil(t, res)

		res = &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/javascript"}},
			Body:       http.NoBody,
			Request:    r,
		}

		res = s.filterResponse(fs, res)
		require.NotNil(t, res)
		assert.Equal(t, http.StatusForbidden, res.StatusCode)
	})
}

func TestServer_serveStylesheet(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	target := "http://" + testInjectionHost + stylesheetPath + "?url=" +
		url.QueryEscape("https://news.example.com/")

	r := httptest.NewRequest(http.MethodGet, target, nil)
	_, res := s.filterRequest("1", r)
	require.NotNil(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, ".banner { display: none !important; }\n", string(body))
	assert.Equal(t, "text/css; charset=utf-8", res.Header.Get("Content-Type"))

	r = httptest.NewRequest(http.MethodGet, "http://"+testInjectionHost+"/other", nil)
	_, res = s.filterRequest("2", r)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestInsertHTML(t *testing.T) {
	t.Parallel()

	const code = "<link>"

	testCases := []struct {
		name string
		body string
		want string
	}{{
		name: "head",
		body: "<HTML><HEAD></HEAD><BODY></BODY></HTML>",
		want: "<HTML><HEAD><link></HEAD><BODY></BODY></HTML>",
	}, {
		name: "body",
		body: "<html><body class=a></body></html>",
		want: "<html><link><body class=a></body></html>",
	}, {
		name: "none",
		body: "text",
		want: "<link>text",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, string(insertHTML([]byte(tc.body), code)))
		})
	}
}

func TestBuildStylesheet(t *testing.T) {
	t.Parallel()

	css := buildStylesheet([]string{".ad", "#top > div", "a{}"})
	assert.Equal(t, ".ad { display: none !important; }\n#top > div { display: none !important; }\n", css)
}

func TestServer_onConnect(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	assert.NotNil(t, s.onConnect(nil, "tcp", testInjectionHost+":443"))
	assert.Nil(t, s.onConnect(nil, "tcp", "example.com:443"))
}
