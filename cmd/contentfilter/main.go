// Command contentfilter runs the filtering proxy, the DNS filter, and the HTTP
// API with the filter lists from the configuration file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/internal/config"
	"github.com/AdguardTeam/contentfilter/mining"
	"github.com/AdguardTeam/contentfilter/userrules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/shirou/gopsutil/v3/process"
)

// shutdownTimeout is the time limit for stopping the services.
const shutdownTimeout = 10 * time.Second

// Options are the console arguments.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string `short:"c" long:"config" description:"Path to the configuration file." default:"contentfilter.yaml"`

	// Verbose enables debug logging regardless of the configuration.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`
}

func main() {
	var options Options
	parser := goFlags.NewParser(&options, goFlags.Default)

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *goFlags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	os.Exit(run(&options))
}

// run runs the services until a termination signal and returns the exit code.
func run(options *Options) (code int) {
	conf, err := config.Read(options.ConfigPath)
	if err != nil {
		slog.Error("reading configuration", slogutil.KeyError, err)

		return 1
	}

	logger, err := newLogger(conf.Log, options.Verbose)
	if err != nil {
		slog.Error("creating logger", slogutil.KeyError, err)

		return 1
	}

	ctx := context.Background()

	user, err := newUserRules(ctx, logger, conf.UserRules)
	if err != nil {
		logger.ErrorContext(ctx, "loading user rules", slogutil.KeyError, err)

		return 1
	}
	defer closeLogged(ctx, logger, "user rules", user.Close)

	db, err := loadDatabase(ctx, logger, conf)
	if err != nil {
		logger.ErrorContext(ctx, "loading filters", slogutil.KeyError, err)

		return 1
	}

	engineConf := &contentfilter.EngineConfig{
		Logger:    logger.With(slogutil.KeyPrefix, "engine"),
		Database:  db,
		UserRules: user,
		CacheSize: conf.Engine.DecisionCacheSize,
	}

	if conf.Engine.Mining {
		engineConf.Mining = mining.New()
	}

	engine, err := contentfilter.NewEngine(engineConf)
	if err != nil {
		logger.ErrorContext(ctx, "creating engine", slogutil.KeyError, err)

		return 1
	}

	reportMemory(ctx, logger)

	rl := &reloader{
		logger: logger,
		conf:   conf,
		engine: engine,
		mu:     &sync.Mutex{},
	}

	scheduler, err := rl.schedule(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "scheduling reloads", slogutil.KeyError, err)

		return 1
	}
	defer shutdownScheduler(ctx, logger, scheduler)

	svcs, err := startServices(ctx, logger, conf, engine, user)
	if err != nil {
		logger.ErrorContext(ctx, "starting services", slogutil.KeyError, err)
		svcs.shutdown(ctx, logger)

		return 1
	}

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range signalChannel {
		if sig != syscall.SIGHUP {
			logger.InfoContext(ctx, "received signal, shutting down", "signal", sig)

			break
		}

		rl.reload(ctx)
	}

	svcs.shutdown(ctx, logger)

	return 0
}

// newLogger returns the logger for the configuration.
func newLogger(c *config.LogConfig, verbose bool) (logger *slog.Logger, err error) {
	format, err := slogutil.NewFormat(c.Format)
	if err != nil {
		return nil, fmt.Errorf("log format: %w", err)
	}

	lvl := slog.LevelInfo
	if verbose || c.Verbose {
		lvl = slog.LevelDebug
	}

	return slogutil.New(&slogutil.Config{
		Output:       os.Stdout,
		Format:       format,
		Level:        lvl,
		AddTimestamp: true,
	}), nil
}

// newUserRules returns the user rules overlay with the store configured by
// c.
func newUserRules(
	ctx context.Context,
	logger *slog.Logger,
	c *config.UserRulesConfig,
) (o *userrules.Overlay, err error) {
	var store userrules.Store
	if c.Path != "" {
		store, err = userrules.NewSQLiteStore(ctx, c.Path)
		if err != nil {
			return nil, err
		}
	}

	o, err = userrules.New(ctx, &userrules.Config{
		Logger: logger.With(slogutil.KeyPrefix, "userrules"),
		Store:  store,
	})
	if err != nil && store != nil {
		err = errors.WithDeferred(err, store.Close())
	}

	return o, err
}

// reportMemory writes the memory usage of the process to the log.
func reportMemory(ctx context.Context, logger *slog.Logger) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		logger.DebugContext(ctx, "getting process", slogutil.KeyError, err)

		return
	}

	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		logger.DebugContext(ctx, "getting memory info", slogutil.KeyError, err)

		return
	}

	logger.InfoContext(ctx, "memory usage", "rss_kb", mi.RSS/1024, "vms_kb", mi.VMS/1024)
}

// closeLogged calls closeFunc and logs the error, if any.
func closeLogged(ctx context.Context, logger *slog.Logger, what string, closeFunc func() error) {
	err := closeFunc()
	if err != nil {
		logger.ErrorContext(ctx, "closing "+what, slogutil.KeyError, err)
	}
}
