package proxy

import (
	"net"
	"net/http"

	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// onRequest handles the outgoing HTTP requests.
func (s *Server) onRequest(sess *gomitmproxy.Session) (req *http.Request, res *http.Response) {
	r := sess.Request()
	if r.Method == http.MethodConnect {
		return nil, nil
	}

	fs, res := s.filterRequest(sess.ID(), r)
	sess.SetProp(sessionPropKey, fs)
	if res != nil {
		// Mark the request as blocked, so that onResponse doesn't modify it.
		sess.SetProp(requestBlockedKey, true)
	}

	return r, res
}

// filterRequest creates the session for r and returns the response to send
// instead of proxying the request or nil.
func (s *Server) filterRequest(id string, r *http.Request) (fs *session, res *http.Response) {
	fs = newSession(id, r)

	if r.URL.Hostname() == s.injectionHost {
		return fs, s.serveStylesheet(r)
	}

	fs.result = s.engine.MatchRequest(fs.request)
	if fs.result.Blocked {
		s.logBlocked(fs)

		return fs, newBlockedResponse(fs)
	}

	if fs.isDocument() {
		// Only these are decoded when injecting the stylesheet.
		r.Header.Set("Accept-Encoding", "gzip, deflate")
	}

	if s.shouldSuppressCache(fs) {
		suppressCache(r)
	}

	return fs, nil
}

// onResponse handles the responses.
func (s *Server) onResponse(sess *gomitmproxy.Session) (res *http.Response) {
	if _, ok := sess.GetProp(requestBlockedKey); ok {
		return nil
	}

	v, ok := sess.GetProp(sessionPropKey)
	if !ok {
		s.logger.Error("session not found", "id", sess.ID())

		return nil
	}

	fs, ok := v.(*session)
	if !ok {
		s.logger.Error("session has wrong type", "id", sess.ID(), "type", v)

		return nil
	}

	return s.filterResponse(fs, sess.Response())
}

// filterResponse matches the request again with the content type of the
// response and injects the stylesheet into HTML documents.  It returns the
// response to send instead of res or nil.
func (s *Server) filterResponse(fs *session, res *http.Response) (modified *http.Response) {
	if fs.setResponse(res) {
		fs.result = s.engine.MatchRequest(fs.request)
		if fs.result.Blocked {
			s.logBlocked(fs)

			return newBlockedResponse(fs)
		}
	}

	if !fs.isDocument() || !fs.isHTML() || res.StatusCode != http.StatusOK {
		return nil
	}

	if !isSupportedEncoding(res.Header.Get("Content-Encoding")) {
		s.logger.Debug("unsupported content encoding", "id", fs.id, "url", fs.request.URL)

		return nil
	}

	cosmetic := s.engine.CosmeticResult(fs.request.URL)
	if len(cosmetic.Selectors) == 0 {
		return nil
	}

	err := injectStylesheet(res, fs.mediaType, s.stylesheetLink(fs.request.URL))
	if err != nil {
		s.logger.Debug("injecting stylesheet", "id", fs.id, slogutil.KeyError, err)

		return proxyutil.NewErrorResponse(fs.httpRequest, err)
	}

	return res
}

// isDocument returns true if the session is a document or a frame.
func (s *session) isDocument() (ok bool) {
	return s.request.ContentType&(rules.TypeDocument|rules.TypeSubdocument) != 0
}

// logBlocked writes the blocked request to the debug log.
func (s *Server) logBlocked(fs *session) {
	var text string
	if f := fs.result.Filter; f != nil {
		text = f.RuleText
	}

	s.logger.Debug(
		"blocked",
		"id", fs.id,
		"url", fs.request.URL,
		"source", fs.result.Source,
		"rule", text,
	)
}

// onConnect intercepts the connections to the injection host, since the
// proxy serves it itself.
func (s *Server) onConnect(_ *gomitmproxy.Session, _ string, addr string) (conn net.Conn) {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host == s.injectionHost {
		return &proxyutil.NoopConn{}
	}

	return nil
}
