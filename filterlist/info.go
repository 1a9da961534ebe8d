package filterlist

import (
	"strconv"
	"strings"
	"time"
)

// Info is the metadata of a filter list from its header comments:
//
//	! Title: Example list
//	! Expires: 4 days
type Info struct {
	// Title is the human-readable name of the list.
	Title string `json:"title,omitempty"`

	// Homepage is the URL of the list's website.
	Homepage string `json:"homepage,omitempty"`

	// LastUpdated is the update time in the list's own format.
	LastUpdated string `json:"last_updated,omitempty"`

	// Version is the list version.
	Version string `json:"version,omitempty"`

	// Redirect is the new URL of the list.
	Redirect string `json:"redirect,omitempty"`

	// Expires is the update interval requested by the list.  It's zero if
	// unknown.
	Expires time.Duration `json:"expires,omitempty"`
}

// parseComment fills the field described by a header comment line, if any.
func (i *Info) parseComment(line string) {
	key, value, ok := strings.Cut(strings.TrimPrefix(line, "!"), ":")
	if !ok {
		return
	}

	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "title":
		i.Title = value
	case "homepage":
		i.Homepage = value
	case "last updated", "last modified":
		i.LastUpdated = value
	case "version":
		i.Version = value
	case "redirect":
		i.Redirect = value
	case "expires":
		i.Expires = parseExpires(value)
	}
}

// parseExpires parses the values like "4 days (update frequency)" and
// "12 hours".  It returns zero if s is malformed.
func parseExpires(s string) (d time.Duration) {
	for _, u := range []struct {
		name string
		unit time.Duration
	}{{
		name: "hour",
		unit: time.Hour,
	}, {
		name: "day",
		unit: 24 * time.Hour,
	}} {
		i := strings.Index(s, u.name)
		if i <= 0 {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(s[:i]))
		if err != nil || n < 0 {
			return 0
		}

		return time.Duration(n) * u.unit
	}

	return 0
}
