// Package api contains the HTTP API for checking requests and managing the
// user rules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/userrules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Config is the configuration structure for [New].
type Config struct {
	// Logger is used for logging.  It must not be nil.
	Logger *slog.Logger

	// Engine is used for checks.  It must not be nil.
	Engine *contentfilter.Engine

	// UserRules are the user rules to manage.  It must not be nil.
	UserRules *userrules.Overlay

	// ListenAddr is the host:port address to listen on.
	ListenAddr string
}

// Server is the HTTP API server.
type Server struct {
	logger *slog.Logger
	engine *contentfilter.Engine
	user   *userrules.Overlay
	echo   *echo.Echo
	addr   string
}

// New returns a new API server.
func New(c *Config) (s *Server) {
	s = &Server{
		logger: c.Logger,
		engine: c.Engine,
		user:   c.UserRules,
		addr:   c.ListenAddr,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &customValidator{validator: validator.New(validator.WithRequiredStructEnabled())}

	e.GET("/check", s.check)
	e.GET("/selectors", s.selectors)
	e.GET("/userrules", s.userRules)
	e.PUT("/userrules", s.putUserRule)
	e.GET("/stats", s.stats)

	s.echo = e

	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() (h http.Handler) {
	return s.echo
}

// Start starts serving in a separate goroutine.
func (s *Server) Start(ctx context.Context) (err error) {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	s.echo.Listener = ln

	go func() {
		serveErr := s.echo.Start("")
		if !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "serving api", slogutil.KeyError, serveErr)
		}
	}()

	s.logger.InfoContext(ctx, "api server started", "addr", ln.Addr())

	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) (err error) {
	err = s.echo.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}

	return nil
}

// customValidator validates the bound requests.
type customValidator struct {
	validator *validator.Validate
}

// type check
var _ echo.Validator = (*customValidator)(nil)

// Validate implements the [echo.Validator] interface for *customValidator.
func (cv *customValidator) Validate(i any) (err error) {
	err = cv.validator.Struct(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}
