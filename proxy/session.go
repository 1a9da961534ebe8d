package proxy

import (
	"mime"
	"net/http"
	"strings"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/rules"
)

// session contains the state of a single HTTP request.  The request is
// matched twice: first when the request headers are received and the content
// type is guessed, then when the response headers tell the actual media type.
type session struct {
	id      string
	request *rules.Request

	httpRequest  *http.Request
	httpResponse *http.Response

	// result is the last decision of the engine.
	result *contentfilter.Result

	mediaType string

	// isMainFrame is true for top-level navigations.
	isMainFrame bool

	// exactType is true if the content type is known from the
	// Sec-Fetch-Dest header, so it's not refined by the response.
	exactType bool
}

// fetchDestTypes maps the values of the Sec-Fetch-Dest header to the content
// types.
var fetchDestTypes = map[string]rules.ContentType{
	"document":      rules.TypeDocument,
	"iframe":        rules.TypeSubdocument,
	"frame":         rules.TypeSubdocument,
	"script":        rules.TypeScript,
	"worker":        rules.TypeScript,
	"sharedworker":  rules.TypeScript,
	"serviceworker": rules.TypeScript,
	"style":         rules.TypeStylesheet,
	"image":         rules.TypeImage,
	"font":          rules.TypeFont,
	"audio":         rules.TypeMedia,
	"video":         rules.TypeMedia,
	"track":         rules.TypeMedia,
	"websocket":     rules.TypeWebSocket,
}

// newSession returns a new session for the request r with the content type
// guessed from the request headers.
func newSession(id string, r *http.Request) (s *session) {
	u := r.URL.String()
	dest := strings.ToLower(r.Header.Get("Sec-Fetch-Dest"))

	s = &session{
		id:          id,
		httpRequest: r,
		isMainFrame: dest == "document" || (dest == "" && r.Referer() == "" && acceptsHTML(r)),
	}

	pageURL := r.Referer()
	if s.isMainFrame {
		pageURL = u
	}

	var ct rules.ContentType
	if ct, s.exactType = fetchDestTypes[dest]; !s.exactType {
		if dest == "empty" && r.Header.Get("Sec-Fetch-Mode") == "cors" {
			ct = rules.TypeXHR
		} else {
			ct = rules.Classify(&rules.ClassifyParams{
				Header:      r.Header,
				URL:         u,
				PageURL:     pageURL,
				IsMainFrame: s.isMainFrame,
			})
		}
	}

	s.request = rules.NewRequest(u, pageURL, ct)

	return s
}

// acceptsHTML returns true if r prefers an HTML response.
func acceptsHTML(r *http.Request) (ok bool) {
	first, _, _ := strings.Cut(r.Header.Get("Accept"), ",")

	return strings.HasPrefix(first, "text/html")
}

// setResponse sets the response of the session and returns true if the
// content type has changed.
func (s *session) setResponse(res *http.Response) (changed bool) {
	s.httpResponse = res

	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	s.mediaType = mediaType

	if s.exactType || mediaType == "" {
		return false
	}

	ct := rules.ClassifyResponse(mediaType, s.isMainFrame)
	if ct == s.request.ContentType {
		return false
	}

	s.request = rules.NewRequest(s.request.URL, s.request.PageURL, ct)

	return true
}

// isHTML returns true if the response is an HTML document.
func (s *session) isHTML() (ok bool) {
	return s.mediaType == "text/html" || s.mediaType == "application/xhtml+xml"
}
