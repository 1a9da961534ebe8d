package proxy

import (
	"net/http"

	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// newNotFoundResponse returns an empty 404 response to r.
func newNotFoundResponse(r *http.Request) (res *http.Response) {
	res = proxyutil.NewResponse(http.StatusNotFound, nil, r)
	res.Header.Set("Content-Type", "text/html")

	return res
}

// queryParameter returns the only value of the query parameter or an empty
// string.
func queryParameter(r *http.Request, name string) (v string) {
	params, ok := r.URL.Query()[name]
	if !ok || len(params) != 1 {
		return ""
	}

	return params[0]
}
