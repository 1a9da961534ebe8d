// Package dnsfilter blocks hostnames on the DNS level using the compiled
// filters and forwards the other queries upstream.
package dnsfilter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/miekg/dns"
)

// BlockingMode is the way blocked hostnames are answered.
type BlockingMode string

// BlockingMode values.
const (
	// BlockingModeNullIP answers A and AAAA queries with the unspecified
	// addresses and refuses the other types.
	BlockingModeNullIP BlockingMode = "null_ip"

	// BlockingModeNXDomain answers with NXDOMAIN.
	BlockingModeNXDomain BlockingMode = "nxdomain"
)

// Matcher returns the decision for a hostname.  [*contentfilter.Engine] is an
// implementation.
type Matcher interface {
	MatchHostname(host string) (res *contentfilter.Result)
}

// Upstream resolves the queries that are not blocked.
type Upstream interface {
	Exchange(ctx context.Context, req *dns.Msg) (resp *dns.Msg, err error)
}

// ClientUpstream is an [Upstream] that sends queries to a DNS server using a
// *dns.Client.
type ClientUpstream struct {
	// Client is used for the exchanges.  It must not be nil.
	Client *dns.Client

	// Addr is the host:port address of the server.
	Addr string
}

// type check
var _ Upstream = (*ClientUpstream)(nil)

// Exchange implements the [Upstream] interface for *ClientUpstream.
func (u *ClientUpstream) Exchange(ctx context.Context, req *dns.Msg) (resp *dns.Msg, err error) {
	resp, _, err = u.Client.ExchangeContext(ctx, req, u.Addr)
	if err != nil {
		return nil, fmt.Errorf("exchanging with %s: %w", u.Addr, err)
	}

	return resp, nil
}

// Config is the configuration structure for [New].
type Config struct {
	// Logger is used for logging.  If it's nil, [slog.Default] is used.
	Logger *slog.Logger

	// Matcher decides which hostnames are blocked.  It must not be nil.
	Matcher Matcher

	// Upstream resolves the other queries.  It must not be nil.
	Upstream Upstream

	// BlockingMode is the way blocked hostnames are answered.  Empty means
	// [BlockingModeNullIP].
	BlockingMode BlockingMode

	// BlockedTTL is the TTL of the answers for the blocked hostnames.
	BlockedTTL time.Duration

	// Timeout is the time limit for the upstream exchanges.  Zero means no
	// limit.
	Timeout time.Duration
}

// Handler is a dns.Handler that filters the queries.
type Handler struct {
	logger   *slog.Logger
	matcher  Matcher
	upstream Upstream
	mode     BlockingMode
	ttl      uint32
	timeout  time.Duration
}

// type check
var _ dns.Handler = (*Handler)(nil)

// New returns a new handler.
func New(c *Config) (h *Handler, err error) {
	switch c.BlockingMode {
	case "":
		c.BlockingMode = BlockingModeNullIP
	case BlockingModeNullIP, BlockingModeNXDomain:
		// Go on.
	default:
		return nil, fmt.Errorf("blocking mode: %w: %q", errors.ErrBadEnumValue, c.BlockingMode)
	}

	h = &Handler{
		logger:   c.Logger,
		matcher:  c.Matcher,
		upstream: c.Upstream,
		mode:     c.BlockingMode,
		ttl:      uint32(c.BlockedTTL / time.Second),
		timeout:  c.Timeout,
	}

	if h.logger == nil {
		h.logger = slog.Default()
	}

	return h, nil
}

// ServeDNS implements the [dns.Handler] interface for *Handler.
func (h *Handler) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp := h.Handle(ctx, req)
	if resp == nil {
		return
	}

	err := w.WriteMsg(resp)
	if err != nil {
		h.logger.DebugContext(ctx, "writing response", slogutil.KeyError, err)
	}
}

// Handle returns the response to req.  It returns nil if req has no
// questions.
func (h *Handler) Handle(ctx context.Context, req *dns.Msg) (resp *dns.Msg) {
	if len(req.Question) == 0 {
		return nil
	}

	q := req.Question[0]
	host := strings.ToLower(strings.TrimSuffix(q.Name, "."))

	if res := h.matcher.MatchHostname(host); res.Blocked {
		h.logger.DebugContext(
			ctx,
			"blocked",
			"host", host,
			"qtype", dns.TypeToString[q.Qtype],
			"source", res.Source,
		)

		return h.blockedResponse(req)
	}

	resp, err := h.upstream.Exchange(ctx, req)
	if err != nil {
		h.logger.DebugContext(ctx, "resolving", "host", host, slogutil.KeyError, err)

		resp = &dns.Msg{}
		resp.SetRcode(req, dns.RcodeServerFailure)
		resp.RecursionAvailable = true
	}

	return resp
}

// blockedResponse returns the answer for a blocked query.
func (h *Handler) blockedResponse(req *dns.Msg) (resp *dns.Msg) {
	resp = &dns.Msg{}
	resp.SetReply(req)
	resp.RecursionAvailable = true

	if h.mode == BlockingModeNXDomain {
		resp.SetRcode(req, dns.RcodeNameError)

		return resp
	}

	q := req.Question[0]
	hdr := dns.RR_Header{
		Name:  q.Name,
		Class: dns.ClassINET,
		Ttl:   h.ttl,
	}

	switch q.Qtype {
	case dns.TypeA:
		hdr.Rrtype = dns.TypeA
		resp.Answer = append(resp.Answer, &dns.A{Hdr: hdr, A: net.IPv4zero})
	case dns.TypeAAAA:
		hdr.Rrtype = dns.TypeAAAA
		resp.Answer = append(resp.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.IPv6unspecified})
	default:
		resp.SetRcode(req, dns.RcodeRefused)
	}

	return resp
}
