package filterlist

import (
	"regexp"
	"strings"

	"github.com/AdguardTeam/contentfilter/rules"
)

// legacyMinLength is the minimum length of a legacy rule.
const legacyMinLength = 3

var (
	// legacyIPv4Re matches the leading address of a legacy host rule.
	legacyIPv4Re = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

	// legacyURLRe matches the legacy rules that block a whole site,
	// "http://example.org/".
	legacyURLRe = regexp.MustCompile(`^https?://([0-9a-z.\-]+)/?$`)
)

// DecodeLegacy decodes a line of the legacy list format:
//
//	[regexp]
//	h example.org
//	127.0.0.1 example.org
//	c substring-of-host
//	http://example.org/
//	substring-of-url
//
// Lines shorter than three characters are [rules.ErrTooShort].
func DecodeLegacy(line string, listID int) (rs []rules.Rule, err error) {
	if len(line) < legacyMinLength {
		return nil, rules.ErrTooShort
	}

	c := &rules.FilterConfig{
		Text:        line,
		ListID:      listID,
		ContentType: rules.TypeAll,
		IgnoreCase:  true,
	}

	if line[0] == '[' && line[len(line)-1] == ']' {
		c.Kind, c.Pattern, c.IgnoreCase = rules.KindRegex, line[1:len(line)-1], false
	} else {
		c.Kind, c.Pattern = legacyKindPattern(line)
	}

	f, err := rules.NewFilter(c)
	if err != nil {
		return nil, err
	}

	return []rules.Rule{f}, nil
}

// legacyKindPattern returns the kind and the pattern of a non-regexp legacy
// rule.
func legacyKindPattern(line string) (k rules.Kind, pattern string) {
	prefix, host, ok := strings.Cut(line, " ")
	if ok && prefix != "" {
		host = strings.TrimSpace(host)
		switch {
		case prefix == "h", prefix == "host", legacyIPv4Re.MatchString(prefix) && host != "":
			return rules.KindHost, host
		case prefix == "c":
			return rules.KindContainsHost, host
		}
	}

	if m := legacyURLRe.FindStringSubmatch(line); m != nil {
		return rules.KindStartEnd, m[1]
	}

	return rules.KindContains, line
}
