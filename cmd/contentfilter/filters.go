package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/filtercache"
	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/internal/config"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// loadDatabase returns the filters from the cache file if it's enabled and
// fresh.  Otherwise, it compiles the lists and saves the cache.
func loadDatabase(ctx context.Context, logger *slog.Logger, conf *config.Config) (db *contentfilter.Database, err error) {
	if conf.Cache.Enabled && isCacheFresh(conf.Cache.Path, conf.Lists) {
		db, err = filtercache.Load(conf.Cache.Path)
		if err == nil {
			logger.InfoContext(ctx, "loaded filters from cache", "path", conf.Cache.Path, "rules", db.Len())

			return db, nil
		}

		logger.WarnContext(ctx, "loading filters cache", slogutil.KeyError, err)
	}

	db, err = compile(ctx, logger, conf)
	if err != nil {
		return nil, err
	}

	saveCache(ctx, logger, conf.Cache, db)

	return db, nil
}

// isCacheFresh returns true if the cache file exists and is newer than all of
// the lists.
func isCacheFresh(cachePath string, lists []config.ListConfig) (ok bool) {
	ci, err := os.Stat(cachePath)
	if err != nil {
		return false
	}

	for _, l := range lists {
		li, statErr := os.Stat(l.Path)
		if statErr != nil || li.ModTime().After(ci.ModTime()) {
			return false
		}
	}

	return true
}

// compile reads the lists and compiles them.
func compile(ctx context.Context, logger *slog.Logger, conf *config.Config) (db *contentfilter.Database, err error) {
	lists := make([]filterlist.RuleList, 0, len(conf.Lists))
	defer func() {
		for _, l := range lists {
			err = errors.WithDeferred(err, l.Close())
		}
	}()

	for i := range conf.Lists {
		var l *filterlist.FileRuleList
		l, err = conf.Lists[i].Open()
		if err != nil {
			return nil, fmt.Errorf("opening lists: %w", err)
		}

		lists = append(lists, l)
	}

	return contentfilter.Compile(ctx, logger.With(slogutil.KeyPrefix, "compile"), lists)
}

// saveCache writes db to the cache file if it's enabled.  Errors are logged,
// since the filters work without the cache.
func saveCache(ctx context.Context, logger *slog.Logger, c *config.CacheConfig, db *contentfilter.Database) {
	if !c.Enabled {
		return
	}

	err := filtercache.Save(c.Path, db)
	if err != nil {
		logger.WarnContext(ctx, "saving filters cache", slogutil.KeyError, err)

		return
	}

	logger.DebugContext(ctx, "saved filters cache", "path", c.Path)
}
