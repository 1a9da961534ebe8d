package proxy

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// blockedPageTmpl is the page shown instead of blocked documents.
var blockedPageTmpl = template.Must(template.New("blocked").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Blocked</title>
</head>
<body>
<h1>Access to {{.Hostname}} is blocked</h1>
{{if .RuleText}}<p>Rule: <code>{{.RuleText}}</code></p>{{end}}
<p>Source: {{.Source}}</p>
</body>
</html>
`))

// blockedPageParameters are the parameters of [blockedPageTmpl].
type blockedPageParameters struct {
	Hostname string
	RuleText string
	Source   string
}

// buildBlockedPage returns the blocked page for the session.
func buildBlockedPage(fs *session) (page []byte, err error) {
	params := blockedPageParameters{
		Hostname: fs.request.Hostname,
		Source:   fs.result.Source.String(),
	}

	if f := fs.result.Filter; f != nil {
		params.RuleText = f.RuleText
	}

	buf := &bytes.Buffer{}
	err = blockedPageTmpl.Execute(buf, params)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// newBlockedResponse returns the response for the blocked request.  Documents
// get the blocked page, other requests get an empty response.
func newBlockedResponse(fs *session) (res *http.Response) {
	r := fs.httpRequest
	if !fs.isDocument() {
		res = proxyutil.NewResponse(http.StatusForbidden, nil, r)
		res.Close = true

		return res
	}

	page, err := buildBlockedPage(fs)
	if err != nil {
		return proxyutil.NewErrorResponse(r, err)
	}

	res = proxyutil.NewResponse(http.StatusForbidden, bytes.NewReader(page), r)
	res.Close = true
	res.ContentLength = int64(len(page))
	res.Header.Set("Content-Type", "text/html; charset=utf-8")

	return res
}
