// Package proxy implements a MITM proxy that filters the requests with the
// engine and hides page elements with an injected stylesheet.
package proxy

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/mitm"
)

// Session property keys.
const (
	sessionPropKey    = "session"
	requestBlockedKey = "blocked"
)

// DefaultInjectionHost is the host of the injected stylesheets used when none
// is configured.
const DefaultInjectionHost = "injections.contentfilter.local"

// Config is the configuration structure for [New].
type Config struct {
	// Logger is used for logging.  If it's nil, [slog.Default] is used.
	Logger *slog.Logger

	// Engine makes the filtering decisions.  It must not be nil.
	Engine *contentfilter.Engine

	// MITMConfig is used for intercepting HTTPS.  If it's nil, HTTPS traffic
	// is tunneled without filtering.
	MITMConfig *mitm.Config

	// ListenAddr is the host:port address to listen on.
	ListenAddr string

	// InjectionHost is used for injecting the element hiding stylesheet.
	//
	// Here's how it works:
	//   - The proxy adds <link rel="stylesheet" href="//INJECTION_HOST/elemhide.css?url=PAGE">
	//     to the HTML documents that have element hiding selectors.
	//   - The proxy handles the requests to this host itself and returns the
	//     selectors of PAGE.
	InjectionHost string
}

// Server is the filtering proxy.
type Server struct {
	logger        *slog.Logger
	engine        *contentfilter.Engine
	proxy         *gomitmproxy.Proxy
	addr          *net.TCPAddr
	injectionHost string

	// createdAt is used for suppressing the HTTP cache after the start.
	createdAt time.Time
}

// New returns a new proxy server.  It doesn't start it.
func New(c *Config) (s *Server, err error) {
	addr, err := net.ResolveTCPAddr("tcp", c.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("proxy listen addr: %w", err)
	}

	s = &Server{
		logger:        c.Logger,
		engine:        c.Engine,
		addr:          addr,
		injectionHost: c.InjectionHost,
		createdAt:     time.Now(),
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.injectionHost == "" {
		s.injectionHost = DefaultInjectionHost
	}

	s.proxy = gomitmproxy.NewProxy(gomitmproxy.Config{
		ListenAddr: addr,
		MITMConfig: c.MITMConfig,
		OnRequest:  s.onRequest,
		OnResponse: s.onResponse,
		OnConnect:  s.onConnect,
	})

	return s, nil
}

// Start starts the proxy server.
func (s *Server) Start() (err error) {
	err = s.proxy.Start()
	if err != nil {
		return fmt.Errorf("starting proxy: %w", err)
	}

	s.logger.Info("proxy started", "addr", s.addr)

	return nil
}

// Close stops the proxy server.
func (s *Server) Close() {
	s.proxy.Close()
}
