package rules

import (
	"slices"
	"strings"
)

// GenericTag is the index key of the filters without a usable literal.  Every
// request is checked against it.
const GenericTag = ""

// minTagLength is the minimum length of a tag.  Shorter runs are too common to
// narrow down the search.
const minTagLength = 3

// isIgnoredTag returns true for the runs present in most URLs.
func isIgnoredTag(tag string) (ok bool) {
	switch tag {
	case "http", "https", "html", "jpg", "png":
		return true
	default:
		return false
	}
}

// isTagChar returns true if c can be a part of a tag run.  The asterisk is
// included so that runs next to a wildcard are discarded as a whole.
func isTagChar(c byte) (ok bool) {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '%' || c == '*'
}

// forEachRun calls f with every maximal run of tag characters in s along with
// its bounds.
func forEachRun(s string, f func(run string, start, end int)) {
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && isTagChar(s[i]) {
			if start < 0 {
				start = i
			}

			continue
		}

		if start >= 0 {
			f(s[start:i], start, i)
			start = -1
		}
	}
}

// isValidTag returns true if run can be used as a tag.
func isValidTag(run string) (ok bool) {
	return len(run) >= minTagLength && !strings.Contains(run, "*") && !isIgnoredTag(run)
}

// Tags returns the tags of the lower-cased url in the order of appearance,
// without duplicates, followed by [GenericTag].
func Tags(url string) (tags []string) {
	forEachRun(url, func(run string, _, _ int) {
		if isValidTag(run) && !slices.Contains(tags, run) {
			tags = append(tags, run)
		}
	})

	return append(tags, GenericTag)
}

// BestTag returns the longest tag of the pattern that is guaranteed to be a
// whole tag of every URL the pattern matches, or [GenericTag].  startBounded
// and endBounded tell if the literal is anchored at the corresponding end,
// since an unanchored run at the edge of the pattern may be a part of a
// longer run in the URL.
func BestTag(pattern string, startBounded, endBounded bool) (tag string) {
	pattern = strings.ToLower(pattern)
	forEachRun(pattern, func(run string, start, end int) {
		switch {
		case
			start == 0 && !startBounded,
			end == len(pattern) && !endBounded,
			!isValidTag(run),
			len(run) <= len(tag):
			return
		default:
			tag = run
		}
	})

	return tag
}
