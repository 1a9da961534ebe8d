package filterutil

import (
	"net/netip"
	"strings"
)

// isAddrRune returns true if r is a valid rune of string representation of an
// IP address, including the zone separator.
func isAddrRune(r rune) (ok bool) {
	switch {
	case r == '.', r == ':', r == '%',
		r >= '0' && r <= '9',
		r >= 'A' && r <= 'F',
		r >= 'a' && r <= 'f',
		r == '[', r == ']':
		return true
	default:
		return false
	}
}

// IsProbablyIP returns true if s only contains characters that can be part of
// an IP address.  It's needed to avoid unnecessary allocations when parsing
// with [netip.ParseAddr].
func IsProbablyIP(s string) (ok bool) {
	// Zone names such as "lo0" are allowed after the percent sign.
	if i := strings.IndexByte(s, '%'); i > 0 {
		s = s[:i]
	}

	for _, r := range s {
		if !isAddrRune(r) {
			return false
		}
	}

	return len(s) >= len("::")
}

// ParseIP parses s as an IPv4 or IPv6 address, optionally in square brackets
// and with a zone.  ok is false if s is not an IP address.
func ParseIP(s string) (ip netip.Addr, ok bool) {
	if !IsProbablyIP(s) {
		return netip.Addr{}, false
	}

	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}

	return ip, true
}
