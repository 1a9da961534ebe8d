package proxy

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AdguardTeam/contentfilter/rules"
)

// suppressCachePeriod is the period after the start during which the HTTP
// cache of the documents is suppressed, so that the stylesheet link gets into
// the cached pages.
const suppressCachePeriod = 1 * time.Minute

// stylesheetMaxAge is the caching period of the element hiding stylesheets.
// The filters may be swapped, so it's short.
const stylesheetMaxAge = 5 * time.Minute

// staticTypes are the content types that are never affected by the injection.
const staticTypes = rules.TypeImage | rules.TypeFont | rules.TypeScript | rules.TypeStylesheet |
	rules.TypeMedia

// shouldSuppressCache returns true if the conditional headers of the request
// should be removed.
func (s *Server) shouldSuppressCache(fs *session) (ok bool) {
	if time.Since(s.createdAt) > suppressCachePeriod {
		return false
	}

	return fs.request.ContentType&staticTypes == 0
}

// suppressCache removes the conditional headers from the HTTP request.
func suppressCache(r *http.Request) {
	// Last modified time based caching.
	r.Header.Del("If-Modified-Since")
	r.Header.Del("If-Unmodified-Since")

	// ETag based caching.
	r.Header.Del("If-None-Match")
	r.Header.Del("If-Match")
	r.Header.Del("If-Range")
}

// enableCache sets the caching headers on the HTTP response.
func enableCache(res *http.Response) {
	maxAge := int(stylesheetMaxAge.Seconds())

	res.Header.Del("Pragma")
	res.Header.Set("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAge))
	res.Header.Set("Expires", time.Now().Add(stylesheetMaxAge).UTC().Format(http.TimeFormat))
}
