package proxy

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
	"golang.org/x/net/html/charset"
)

// stylesheetPath is the path of the element hiding stylesheet on the
// injection host.
const stylesheetPath = "/elemhide.css"

// maxHTMLSize is the maximum size of a decoded HTML document the stylesheet
// is injected into.
const maxHTMLSize = 16 << 20

// errTooLarge is returned when the document is larger than [maxHTMLSize].
const errTooLarge errors.Error = "document is too large"

// stylesheetLink returns the HTML code linking the element hiding stylesheet
// of the page.
func (s *Server) stylesheetLink(pageURL string) (code string) {
	href := "//" + s.injectionHost + stylesheetPath + "?url=" + url.QueryEscape(pageURL)

	return `<link rel="stylesheet" type="text/css" href="` + html.EscapeString(href) + `">`
}

// injectStylesheet inserts code into the HTML response before the end of the
// head or, if there is none, before the body.  The body is sent uncompressed
// and in UTF-8.
func injectStylesheet(res *http.Response, mediaType, code string) (err error) {
	body, err := readBody(res)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	body = insertHTML(body, code)

	res.Header.Set("Content-Type", mediaType+"; charset=utf-8")
	res.Header.Del("Content-Encoding")
	res.Header.Set("Content-Length", strconv.Itoa(len(body)))
	res.ContentLength = int64(len(body))
	res.TransferEncoding = nil
	res.Body = io.NopCloser(bytes.NewReader(body))

	return nil
}

// readBody reads and closes the body of res, decompresses it, and decodes it
// to UTF-8.
func readBody(res *http.Response) (body []byte, err error) {
	defer func() { err = errors.WithDeferred(err, res.Body.Close()) }()

	r, err := decompressReader(res.Body, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}

	r, err = charset.NewReader(r, res.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding charset: %w", err)
	}

	body, err = io.ReadAll(io.LimitReader(r, maxHTMLSize+1))
	if err != nil {
		return nil, err
	}

	if len(body) > maxHTMLSize {
		return nil, errTooLarge
	}

	return body, nil
}

// isSupportedEncoding returns true if [decompressReader] supports the
// content encoding.
func isSupportedEncoding(encoding string) (ok bool) {
	switch strings.ToLower(encoding) {
	case "", "identity", "gzip", "deflate":
		return true
	default:
		return false
	}
}

// decompressReader returns the reader of the decompressed data of r.  Multiple
// encodings are not supported.
func decompressReader(r io.Reader, encoding string) (dr io.Reader, err error) {
	switch enc := strings.ToLower(encoding); enc {
	case "", "identity":
		return r, nil
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	default:
		return nil, fmt.Errorf("content encoding: %w: %q", errors.ErrBadEnumValue, enc)
	}
}

// insertHTML returns body with code inserted before "</head>", before
// "<body", or at the start, whichever is found first.
func insertHTML(body []byte, code string) (res []byte) {
	lower := bytes.ToLower(body)

	i := bytes.Index(lower, []byte("</head>"))
	if i < 0 {
		i = bytes.Index(lower, []byte("<body"))
	}

	if i < 0 {
		i = 0
	}

	res = make([]byte, 0, len(body)+len(code))
	res = append(res, body[:i]...)
	res = append(res, code...)
	res = append(res, body[i:]...)

	return res
}

// serveStylesheet returns the element hiding stylesheet for the page in the
// url query parameter.
func (s *Server) serveStylesheet(r *http.Request) (res *http.Response) {
	if r.Method != http.MethodGet || r.URL.Path != stylesheetPath {
		return newNotFoundResponse(r)
	}

	pageURL := queryParameter(r, "url")
	if pageURL == "" {
		return newNotFoundResponse(r)
	}

	css := buildStylesheet(s.engine.CosmeticResult(pageURL).Selectors)

	res = proxyutil.NewResponse(http.StatusOK, strings.NewReader(css), r)
	res.Header.Set("Content-Type", "text/css; charset=utf-8")
	res.ContentLength = int64(len(css))
	enableCache(res)

	return res
}

// buildStylesheet returns the CSS hiding the elements matching the selectors.
// Every selector gets its own rule, so that an invalid one doesn't break the
// others.
func buildStylesheet(selectors []string) (css string) {
	b := &strings.Builder{}
	for _, sel := range selectors {
		if strings.ContainsAny(sel, "{}") {
			continue
		}

		b.WriteString(sel)
		b.WriteString(" { display: none !important; }\n")
	}

	return b.String()
}
