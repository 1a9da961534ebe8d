package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/dnsfilter"
	"github.com/AdguardTeam/contentfilter/internal/api"
	"github.com/AdguardTeam/contentfilter/internal/config"
	"github.com/AdguardTeam/contentfilter/proxy"
	"github.com/AdguardTeam/contentfilter/userrules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy/mitm"
	"github.com/miekg/dns"
)

// services are the started services.
type services struct {
	proxy *proxy.Server
	dns   *dnsfilter.Server
	api   *api.Server
}

// startServices starts the enabled services.  On error, svcs contains the
// services started so far.
func startServices(
	ctx context.Context,
	logger *slog.Logger,
	conf *config.Config,
	engine *contentfilter.Engine,
	user *userrules.Overlay,
) (svcs *services, err error) {
	svcs = &services{}

	if conf.DNS.Enabled {
		svcs.dns, err = startDNS(ctx, logger, conf.DNS, engine)
		if err != nil {
			return svcs, fmt.Errorf("dns: %w", err)
		}
	}

	if conf.API.Enabled {
		s := api.New(&api.Config{
			Logger:     logger.With(slogutil.KeyPrefix, "api"),
			Engine:     engine,
			UserRules:  user,
			ListenAddr: conf.API.ListenAddr,
		})

		err = s.Start(ctx)
		if err != nil {
			return svcs, fmt.Errorf("api: %w", err)
		}

		svcs.api = s
	}

	if conf.Proxy.Enabled {
		svcs.proxy, err = startProxy(logger, conf.Proxy, engine)
		if err != nil {
			return svcs, fmt.Errorf("proxy: %w", err)
		}
	}

	return svcs, nil
}

// startDNS starts the DNS filter.
func startDNS(
	ctx context.Context,
	logger *slog.Logger,
	c *config.DNSConfig,
	engine *contentfilter.Engine,
) (s *dnsfilter.Server, err error) {
	dnsLogger := logger.With(slogutil.KeyPrefix, "dnsfilter")

	h, err := dnsfilter.New(&dnsfilter.Config{
		Logger:  dnsLogger,
		Matcher: engine,
		Upstream: &dnsfilter.ClientUpstream{
			Client: &dns.Client{Timeout: c.Timeout},
			Addr:   c.Upstream,
		},
		BlockingMode: dnsfilter.BlockingMode(c.BlockingMode),
		BlockedTTL:   c.BlockedTTL,
		Timeout:      c.Timeout,
	})
	if err != nil {
		return nil, err
	}

	s = dnsfilter.NewServer(dnsLogger, c.ListenAddr, h)

	return s, s.Start(ctx)
}

// startProxy starts the filtering proxy.
func startProxy(logger *slog.Logger, c *config.ProxyConfig, engine *contentfilter.Engine) (s *proxy.Server, err error) {
	var mitmConfig *mitm.Config
	if c.CertPath != "" {
		mitmConfig, err = newMITMConfig(c.CertPath, c.KeyPath)
		if err != nil {
			return nil, err
		}
	}

	s, err = proxy.New(&proxy.Config{
		Logger:        logger.With(slogutil.KeyPrefix, "proxy"),
		Engine:        engine,
		MITMConfig:    mitmConfig,
		ListenAddr:    c.ListenAddr,
		InjectionHost: c.InjectionHost,
	})
	if err != nil {
		return nil, err
	}

	return s, s.Start()
}

// newMITMConfig returns the MITM configuration with the CA from the files.
// Only RSA keys are supported.
func newMITMConfig(certPath, keyPath string) (c *mitm.Config, err error) {
	tlsCert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading root ca: %w", err)
	}

	privateKey, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("root ca key: %w: %T", errors.ErrBadEnumValue, tlsCert.PrivateKey)
	}

	x509c, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing root ca: %w", err)
	}

	c, err = mitm.NewConfig(x509c, privateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating mitm config: %w", err)
	}

	c.SetValidity(7 * 24 * time.Hour)
	c.SetOrganization("contentfilter")

	return c, nil
}

// shutdown stops the started services.
func (svcs *services) shutdown(ctx context.Context, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if svcs.proxy != nil {
		svcs.proxy.Close()
	}

	var errs []error
	if svcs.api != nil {
		errs = append(errs, svcs.api.Shutdown(ctx))
	}

	if svcs.dns != nil {
		errs = append(errs, svcs.dns.Shutdown(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		logger.ErrorContext(ctx, "shutting down", slogutil.KeyError, err)
	}
}
