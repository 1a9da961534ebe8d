package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdguardTeam/contentfilter/internal/config"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig returns a configuration with a single list in a temporary
// directory.
func newTestConfig(tb testing.TB) (conf *config.Config) {
	tb.Helper()

	dir := tb.TempDir()
	listPath := filepath.Join(dir, "list.txt")
	err := os.WriteFile(listPath, []byte("||ads.example.org^\nexample.org##.ad\n"), 0o600)
	require.NoError(tb, err)

	conf = config.Default()
	conf.Cache.Path = filepath.Join(dir, "filters.bin")
	conf.Lists = []config.ListConfig{{
		Path: listPath,
		ID:   1,
	}}

	return conf
}

func TestLoadDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slogutil.NewDiscardLogger()
	conf := newTestConfig(t)

	assert.False(t, isCacheFresh(conf.Cache.Path, conf.Lists))

	db, err := loadDatabase(ctx, logger, conf)
	require.NoError(t, err)

	assert.Equal(t, 2, db.Len())
	require.FileExists(t, conf.Cache.Path)
	assert.True(t, isCacheFresh(conf.Cache.Path, conf.Lists))

	cached, err := loadDatabase(ctx, logger, conf)
	require.NoError(t, err)

	assert.Equal(t, db.Len(), cached.Len())

	// A list changed after the cache makes it stale.
	future := time.Now().Add(time.Hour)
	err = os.Chtimes(conf.Lists[0].Path, future, future)
	require.NoError(t, err)

	assert.False(t, isCacheFresh(conf.Cache.Path, conf.Lists))
}

func TestLoadDatabase_noCache(t *testing.T) {
	t.Parallel()

	conf := newTestConfig(t)
	conf.Cache.Enabled = false

	db, err := loadDatabase(context.Background(), slogutil.NewDiscardLogger(), conf)
	require.NoError(t, err)

	assert.Equal(t, 2, db.Len())
	assert.NoFileExists(t, conf.Cache.Path)
}

func TestLoadDatabase_corruptCache(t *testing.T) {
	t.Parallel()

	conf := newTestConfig(t)

	// Make the broken cache newer than the list.
	err := os.WriteFile(conf.Cache.Path, []byte("garbage"), 0o600)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	err = os.Chtimes(conf.Cache.Path, future, future)
	require.NoError(t, err)

	db, err := loadDatabase(context.Background(), slogutil.NewDiscardLogger(), conf)
	require.NoError(t, err)

	assert.Equal(t, 2, db.Len())
}

func TestLoadDatabase_badList(t *testing.T) {
	t.Parallel()

	conf := newTestConfig(t)
	conf.Lists = append(conf.Lists, config.ListConfig{
		Path: filepath.Join(t.TempDir(), "none.txt"),
		ID:   2,
	})

	_, err := loadDatabase(context.Background(), slogutil.NewDiscardLogger(), conf)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger, err := newLogger(&config.LogConfig{Format: "text"}, true)
	require.NoError(t, err)

	assert.NotNil(t, logger)

	_, err = newLogger(&config.LogConfig{Format: "xml"}, false)
	assert.Error(t, err)
}
