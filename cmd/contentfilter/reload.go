package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/internal/config"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/go-co-op/gocron/v2"
)

// reloader recompiles the lists and replaces the filters of the engine.
type reloader struct {
	logger *slog.Logger
	conf   *config.Config
	engine *contentfilter.Engine

	// mu serializes the reloads from the signal handler and the scheduler.
	mu *sync.Mutex
}

// reload compiles the lists again and replaces the filters of the engine.
// The current filters are kept on error.
func (rl *reloader) reload(ctx context.Context) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.logger.InfoContext(ctx, "reloading filters")

	db, err := compile(ctx, rl.logger, rl.conf)
	if err != nil {
		rl.logger.ErrorContext(ctx, "reloading filters", slogutil.KeyError, err)

		return
	}

	rl.engine.Swap(db)
	saveCache(ctx, rl.logger, rl.conf.Cache, db)
	reportMemory(ctx, rl.logger)
}

// schedule starts the periodic reloads if they are enabled.  s is nil if they
// are not.
func (rl *reloader) schedule(ctx context.Context) (s gocron.Scheduler, err error) {
	ivl := rl.conf.Engine.ReloadInterval
	if ivl == 0 {
		return nil, nil
	}

	s, err = gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(ivl),
		gocron.NewTask(rl.reload, ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling reload: %w", errors.WithDeferred(err, s.Shutdown()))
	}

	s.Start()
	rl.logger.InfoContext(ctx, "scheduled reloads", "interval", ivl)

	return s, nil
}

// shutdownScheduler stops s if it's not nil.
func shutdownScheduler(ctx context.Context, logger *slog.Logger, s gocron.Scheduler) {
	if s == nil {
		return
	}

	err := s.Shutdown()
	if err != nil {
		logger.ErrorContext(ctx, "stopping scheduler", slogutil.KeyError, err)
	}
}
