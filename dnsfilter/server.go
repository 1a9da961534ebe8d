package dnsfilter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/miekg/dns"
)

// Server serves a handler over UDP and TCP.
type Server struct {
	logger  *slog.Logger
	servers []*dns.Server
}

// NewServer returns a new server for h listening on addr.  logger must not be
// nil.
func NewServer(logger *slog.Logger, addr string, h dns.Handler) (s *Server) {
	s = &Server{
		logger: logger,
	}

	for _, network := range []string{"udp", "tcp"} {
		s.servers = append(s.servers, &dns.Server{
			Addr:    addr,
			Net:     network,
			Handler: h,
		})
	}

	return s
}

// Start starts serving in separate goroutines.  It returns after the
// listeners are ready or one of them fails.
func (s *Server) Start(ctx context.Context) (err error) {
	errCh := make(chan error, len(s.servers))
	for _, srv := range s.servers {
		started := make(chan struct{})
		srv.NotifyStartedFunc = func() { close(started) }

		go func() {
			serveErr := srv.ListenAndServe()
			if serveErr != nil {
				s.logger.ErrorContext(ctx, "serving dns", "net", srv.Net, slogutil.KeyError, serveErr)

				// The channel has room for every server.
				errCh <- fmt.Errorf("%s: %w", srv.Net, serveErr)
			}
		}()

		select {
		case <-started:
			s.logger.InfoContext(ctx, "dns server started", "net", srv.Net, "addr", srv.Addr)
		case err = <-errCh:
			return errors.WithDeferred(fmt.Errorf("starting dns server: %w", err), s.Shutdown(ctx))
		case <-ctx.Done():
			return errors.WithDeferred(fmt.Errorf("starting dns server: %w", ctx.Err()), s.Shutdown(ctx))
		}
	}

	return nil
}

// Shutdown stops the servers that have been started.
func (s *Server) Shutdown(ctx context.Context) (err error) {
	var errs []error
	for _, srv := range s.servers {
		shutdownErr := srv.ShutdownContext(ctx)
		if shutdownErr != nil && !isNotStarted(shutdownErr) {
			errs = append(errs, fmt.Errorf("%s: %w", srv.Net, shutdownErr))
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("shutting down dns server: %w", err)
	}

	return nil
}

// isNotStarted returns true if err is returned by shutting down a server that
// isn't running.
func isNotStarted(err error) (ok bool) {
	return err.Error() == "dns: server not started"
}
