package rules

import (
	"strings"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
)

// Special characters of the Adblock Plus pattern syntax.
const (
	maskAnyChars   = "*"
	maskSeparator  = '^'
	maskPipe       = "|"
	maskDomainPipe = "||"
)

// wildcardPattern is a compiled pattern in the Adblock Plus syntax.  It's
// matched by scanning the literal segments between the wildcards, which is
// much cheaper than an equivalent regular expression.
type wildcardPattern struct {
	// segments are the parts of the pattern between the asterisks.  They may
	// contain separator placeholders and may be empty.
	segments []string

	// domainAnchor is true if the pattern starts with "||", so the first
	// segment must start at a label of the hostname.
	domainAnchor bool

	// startAnchor is true if the pattern starts with a single "|".
	startAnchor bool

	// endAnchor is true if the pattern ends with "|".
	endAnchor bool
}

// compileWildcard parses the pattern text.
func compileWildcard(text string) (p *wildcardPattern) {
	p = &wildcardPattern{}

	switch {
	case strings.HasPrefix(text, maskDomainPipe):
		p.domainAnchor = true
		text = text[len(maskDomainPipe):]
	case strings.HasPrefix(text, maskPipe):
		p.startAnchor = true
		text = text[len(maskPipe):]
	}

	if strings.HasSuffix(text, maskPipe) {
		p.endAnchor = true
		text = text[:len(text)-len(maskPipe)]
	}

	p.segments = strings.Split(text, maskAnyChars)

	return p
}

// match returns true if the pattern matches s.
func (p *wildcardPattern) match(s string) (ok bool) {
	switch {
	case p.domainAnchor:
		start, end := hostBounds(s)
		for i := start; i >= 0 && i < end; i++ {
			if (i == start || s[i-1] == '.') && p.matchFrom(s, i) {
				return true
			}
		}

		return false
	case p.startAnchor:
		return p.matchFrom(s, 0)
	default:
		return p.matchRest(s, 0, 0)
	}
}

// matchFrom returns true if the first segment matches exactly at pos and the
// rest of the segments match after it.
func (p *wildcardPattern) matchFrom(s string, pos int) (ok bool) {
	end, ok := matchSegmentAt(p.segments[0], s, pos)
	if !ok {
		return false
	} else if len(p.segments) == 1 {
		return !p.endAnchor || end == len(s)
	}

	return p.matchRest(s, 1, end)
}

// matchRest returns true if the segments starting with the i-th one match s in
// order, each one anywhere after the previous one.  The leftmost occurrence of
// a segment is always the best one for the segments that follow.
func (p *wildcardPattern) matchRest(s string, i, pos int) (ok bool) {
	last := len(p.segments) - 1
	for ; i < last; i++ {
		pos, ok = findSegment(p.segments[i], s, pos)
		if !ok {
			return false
		}
	}

	seg := p.segments[last]
	if !p.endAnchor {
		_, ok = findSegment(seg, s, pos)

		return ok
	}

	for q := pos; q <= len(s); q++ {
		if end, found := matchSegmentAt(seg, s, q); found && end == len(s) {
			return true
		}
	}

	return false
}

// findSegment returns the end of the leftmost occurrence of seg in s at or
// after pos.
func findSegment(seg, s string, pos int) (end int, ok bool) {
	for q := pos; q <= len(s); q++ {
		if end, ok = matchSegmentAt(seg, s, q); ok {
			return end, true
		}
	}

	return 0, false
}

// matchSegmentAt returns the end of seg matched at pos of s.  A separator
// placeholder matches a single separator character or the end of s.
func matchSegmentAt(seg, s string, pos int) (end int, ok bool) {
	j := pos
	for k := range len(seg) {
		c := seg[k]
		if c == maskSeparator {
			if j == len(s) {
				continue
			} else if !ufnet.IsSeparator(s[j]) {
				return 0, false
			}

			j++

			continue
		}

		if j >= len(s) || s[j] != c {
			return 0, false
		}

		j++
	}

	return j, true
}

// hostBounds returns the bounds of the hostname in url or -1 if there is none.
func hostBounds(url string) (start, end int) {
	i := strings.Index(url, "//")
	if i < 0 {
		return -1, -1
	}

	start = i + 2
	end = len(url)
	if j := strings.IndexAny(url[start:], "/?#"); j >= 0 {
		end = start + j
	}

	if at := strings.LastIndexByte(url[start:end], '@'); at >= 0 {
		start += at + 1
	}

	return start, end
}
