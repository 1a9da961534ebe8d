package rules

import (
	"strings"

	"github.com/AdguardTeam/contentfilter/filterutil"
	"github.com/AdguardTeam/contentfilter/internal/ufnet"
)

// maxURLLength limits the URL length by 4 KiB.  It appears that there can be
// URLs longer than a megabyte, and it makes no sense to go through the whole
// URL.
const maxURLLength = 4 * 1024

// Request represents a single resource fetch with all the properties the
// filters need.  It is built once and must not be modified afterwards, since
// it's shared by every filter evaluated for the fetch.
type Request struct {
	// URL is the full request URL.
	URL string

	// URLLowerCase is the full request URL in lower case.
	URLLowerCase string

	// SchemeSpecificPart is the part of URL after the scheme, including the
	// leading "//".
	SchemeSpecificPart string

	// SchemeSpecificPartLowerCase is SchemeSpecificPart in lower case.
	SchemeSpecificPartLowerCase string

	// Hostname is the lower-cased hostname of URL.  It is empty if URL has no
	// resolvable host.
	Hostname string

	// PageURL is the full URL of the page that loads the resource.
	PageURL string

	// PageHostname is the lower-cased hostname of PageURL.
	PageHostname string

	// tags are the index keys of URL, see [Tags].
	tags []string

	// ContentType is the type of the requested content.
	ContentType ContentType

	// ThirdParty is true if the resource is loaded from a different site than
	// the page.
	ThirdParty bool
}

// NewRequest creates a new instance of *Request and populates its fields.
func NewRequest(url, pageURL string, ct ContentType) (r *Request) {
	if len(url) > maxURLLength {
		url = url[:maxURLLength]
	}

	if len(pageURL) > maxURLLength {
		pageURL = pageURL[:maxURLLength]
	}

	urlLower := strings.ToLower(url)

	r = &Request{
		URL:                         url,
		URLLowerCase:                urlLower,
		SchemeSpecificPart:          ufnet.SchemeSpecificPart(url),
		SchemeSpecificPartLowerCase: ufnet.SchemeSpecificPart(urlLower),
		Hostname:                    ufnet.ExtractHostname(urlLower),
		PageURL:                     pageURL,
		PageHostname:                strings.ToLower(ufnet.ExtractHostname(pageURL)),
		ContentType:                 ct,
	}

	r.ThirdParty = isThirdParty(r.Hostname, r.PageHostname)
	r.tags = Tags(urlLower)

	return r
}

// NewRequestForHostname creates a new instance of *Request for matching the
// hostname only, for example for DNS filtering.  It uses "http://" as a
// protocol and [TypeDocument] as the content type, and the request is its own
// page.
func NewRequestForHostname(hostname string) (r *Request) {
	// Do not use fmt.Sprintf or url.URL to achieve better performance.
	// Hostname validation should be performed by the function caller.
	hostname = strings.ToLower(hostname)
	urlStr := "http://" + hostname

	return &Request{
		URL:                         urlStr,
		URLLowerCase:                urlStr,
		SchemeSpecificPart:          "//" + hostname,
		SchemeSpecificPartLowerCase: "//" + hostname,
		Hostname:                    hostname,
		PageURL:                     urlStr,
		PageHostname:                hostname,
		tags:                        Tags(urlStr),
		ContentType:                 TypeDocument,
	}
}

// Tags returns the index keys of the request URL.  The last one is always the
// generic tag.  The caller must not modify the returned slice.
func (r *Request) Tags() (tags []string) {
	return r.tags
}

// isThirdParty returns true if host and pageHost belong to different sites.
// An unknown host of either kind counts as third-party, since there is no
// site to compare with.
func isThirdParty(host, pageHost string) (ok bool) {
	switch {
	case host == "" || pageHost == "":
		return true
	case host == pageHost:
		return false
	case isIP(host) || isIP(pageHost):
		return true
	}

	domain := ufnet.EffectiveTLDPlusOne(host)
	if domain == "" {
		domain = host
	}

	pageDomain := ufnet.EffectiveTLDPlusOne(pageHost)
	if pageDomain == "" {
		pageDomain = pageHost
	}

	return domain != pageDomain
}

// isIP returns true if host is an IP address.
func isIP(host string) (ok bool) {
	_, ok = filterutil.ParseIP(host)

	return ok
}
