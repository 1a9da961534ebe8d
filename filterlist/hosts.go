package filterlist

import (
	"bufio"
	"io"
	"strings"

	"github.com/AdguardTeam/contentfilter/filterutil"
	"github.com/AdguardTeam/contentfilter/internal/ufnet"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// localNames are the names hosts files map to the local machine.  They are
// not blocking entries.
var localNames = map[string]struct{}{
	"0.0.0.0":               {},
	"broadcasthost":         {},
	"ip6-allhosts":          {},
	"ip6-allnodes":          {},
	"ip6-allrouters":        {},
	"ip6-localhost":         {},
	"ip6-localnet":          {},
	"ip6-loopback":          {},
	"ip6-mcastprefix":       {},
	"local":                 {},
	"localhost":             {},
	"localhost.localdomain": {},
}

// hostsLineHosts returns the hostnames of a hosts-file line.  Inline comments
// are removed and the leading IP address, if any, is skipped.
func hostsLineHosts(line string) (hosts []string) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	if _, ok := filterutil.ParseIP(fields[0]); ok {
		fields = fields[1:]
	}

	for _, f := range fields {
		if _, ok := localNames[strings.ToLower(f)]; ok {
			continue
		}

		hosts = append(hosts, f)
	}

	return hosts
}

// ParseHosts reads a hosts file and returns its hostnames in the order of
// appearance.  Duplicates are kept.
func ParseHosts(r io.Reader) (hosts []string, err error) {
	reader := bufio.NewReader(r)
	for {
		line, readErr := reader.ReadString('\n')
		hosts = append(hosts, hostsLineHosts(line)...)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return hosts, nil
			}

			return hosts, errors.Annotate(readErr, "reading hosts: %w")
		}
	}
}

// DecodeHosts decodes a hosts-file line into [rules.KindHost] filters, one per
// valid hostname.  It returns an error if the line only has invalid names.
func DecodeHosts(line string, listID int) (rs []rules.Rule, err error) {
	hosts := hostsLineHosts(line)
	if len(hosts) == 0 {
		return nil, nil
	}

	for _, h := range hosts {
		if !ufnet.IsDomainName(h) {
			err = &rules.RuleSyntaxError{Msg: "invalid hostname", RuleText: h}

			continue
		}

		var f *rules.Filter
		f, err = rules.NewFilter(&rules.FilterConfig{
			Pattern:     h,
			Text:        h,
			ListID:      listID,
			ContentType: rules.TypeAll,
			Kind:        rules.KindHost,
			IgnoreCase:  true,
		})
		if err != nil {
			continue
		}

		rs = append(rs, f)
	}

	if len(rs) > 0 {
		return rs, nil
	}

	return nil, err
}
