// Package userrules contains the per-host user decisions that override the
// compiled filters.
package userrules

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
)

// Config is the configuration structure for [New].
type Config struct {
	// Logger is used for logging the changes.  If it's nil, [slog.Default] is
	// used.
	Logger *slog.Logger

	// Store persists the rules.  If it's nil, a [MemoryStore] is used.
	Store Store
}

// Overlay keeps the user rules.  Writers are serialized while readers run
// concurrently.  Rules are scoped to the exact host: an allowed host doesn't
// allow its subdomains.
type Overlay struct {
	logger *slog.Logger
	store  Store

	// mu protects rules.
	mu    *sync.RWMutex
	rules map[string]Action

	// version is incremented on every change.
	version *atomic.Uint64
}

// New returns a new overlay with the rules loaded from the store.
func New(ctx context.Context, c *Config) (o *Overlay, err error) {
	o = &Overlay{
		logger:  c.Logger,
		store:   c.Store,
		mu:      &sync.RWMutex{},
		rules:   map[string]Action{},
		version: &atomic.Uint64{},
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.store == nil {
		o.store = NewMemoryStore()
	}

	rs, err := o.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading user rules: %w", err)
	}

	for _, r := range rs {
		o.rules[r.Host] = r.Action
	}

	o.logger.DebugContext(ctx, "loaded user rules", "count", len(rs))

	return o, nil
}

// hostOf returns the lower-cased host of uri, which may also be a bare
// hostname.
func hostOf(uri string) (host string) {
	if strings.Contains(uri, "//") {
		host = ufnet.ExtractHostname(uri)
	} else {
		host, _, _ = strings.Cut(uri, "/")
	}

	return strings.ToLower(host)
}

// AllowPage records an explicit allow for the host of uri if add is true, or
// removes it otherwise.
func (o *Overlay) AllowPage(ctx context.Context, uri string, add bool) (err error) {
	return o.set(ctx, hostOf(uri), ActionAllow, add)
}

// BlockPage records an explicit block for the host of uri if add is true, or
// removes it otherwise.
func (o *Overlay) BlockPage(ctx context.Context, uri string, add bool) (err error) {
	return o.set(ctx, hostOf(uri), ActionBlock, add)
}

// set adds or removes the rule with the action for host.  Removing a rule
// with another action is a no-op.
func (o *Overlay) set(ctx context.Context, host string, a Action, add bool) (err error) {
	if host == "" {
		return fmt.Errorf("%s: empty host", a)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	cur, ok := o.rules[host]
	if add {
		if ok && cur == a {
			return nil
		}

		err = o.store.Put(ctx, Rule{Host: host, Action: a})
		if err != nil {
			return err
		}

		o.rules[host] = a
	} else {
		if !ok || cur != a {
			return nil
		}

		err = o.store.Delete(ctx, host)
		if err != nil {
			return err
		}

		delete(o.rules, host)
	}

	o.version.Add(1)
	o.logger.InfoContext(ctx, "user rule changed", "host", host, "action", a, "add", add)

	return nil
}

// IsAllowed returns true if the exact host of uri has an allow rule.
func (o *Overlay) IsAllowed(uri string) (ok bool) {
	return o.action(hostOf(uri)) == ActionAllow
}

// IsBlocked returns true if the exact host of uri has a block rule.
func (o *Overlay) IsBlocked(uri string) (ok bool) {
	return o.action(hostOf(uri)) == ActionBlock
}

// IsHostAllowed is like [Overlay.IsAllowed] for a lower-cased hostname.
func (o *Overlay) IsHostAllowed(host string) (ok bool) {
	return o.action(host) == ActionAllow
}

// IsHostBlocked is like [Overlay.IsBlocked] for a lower-cased hostname.
func (o *Overlay) IsHostBlocked(host string) (ok bool) {
	return o.action(host) == ActionBlock
}

// action returns the action for host or zero.
func (o *Overlay) action(host string) (a Action) {
	if host == "" {
		return 0
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.rules[host]
}

// Rules returns all the rules sorted by host.
func (o *Overlay) Rules() (rs []Rule) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, host := range slices.Sorted(maps.Keys(o.rules)) {
		rs = append(rs, Rule{Host: host, Action: o.rules[host]})
	}

	return rs
}

// Version returns a number that changes every time the rules do.
func (o *Overlay) Version() (v uint64) {
	return o.version.Load()
}

// Close closes the underlying store.
func (o *Overlay) Close() (err error) {
	return o.store.Close()
}
