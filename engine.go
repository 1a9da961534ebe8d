// Package contentfilter implements a content-filtering engine: it compiles
// Adblock Plus, legacy, and hosts-file filter lists into an immutable database
// and matches resource requests and pages against it.
package contentfilter

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
	"github.com/AdguardTeam/contentfilter/mining"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/contentfilter/userrules"
	"github.com/maypok86/otter"
)

// Source is the stage of [Engine.MatchRequest] that made the decision.
type Source uint8

// Source values.
const (
	// SourceNone means that nothing matched and the request is allowed.
	SourceNone Source = iota
	// SourceUserAllow is a user allow rule for the page.
	SourceUserAllow
	// SourceUserBlock is a user block rule for the request host.
	SourceUserBlock
	// SourceMining is the built-in mining protection.
	SourceMining
	// SourceImportantAllow is an allowlist filter with $important.
	SourceImportantAllow
	// SourceImportant is a blocking filter with $important.
	SourceImportant
	// SourceDocumentAllow is an allowlist filter for the whole page.
	SourceDocumentAllow
	// SourceAllow is an allowlist filter.
	SourceAllow
	// SourceBlock is a blocking filter.
	SourceBlock
)

// String implements the [fmt.Stringer] interface for Source.
func (s Source) String() (str string) {
	switch s {
	case SourceNone:
		return "none"
	case SourceUserAllow:
		return "user_allow"
	case SourceUserBlock:
		return "user_block"
	case SourceMining:
		return "mining"
	case SourceImportantAllow:
		return "important_allow"
	case SourceImportant:
		return "important"
	case SourceDocumentAllow:
		return "document_allow"
	case SourceAllow:
		return "allow"
	case SourceBlock:
		return "block"
	default:
		return fmt.Sprintf("!bad_source_%d", s)
	}
}

// Result is the decision for a request.  Results may be shared between
// callers, so they must not be modified.
type Result struct {
	// Filter is the filter that made the decision.  It's nil for the user
	// rules and if nothing matched.
	Filter *rules.Filter

	// Source is the stage that made the decision.
	Source Source

	// Blocked is true if the request must be blocked.
	Blocked bool
}

// resultNone is the result for requests nothing matched.
var resultNone = &Result{}

// CosmeticResult is the element hiding decision for a page.
type CosmeticResult struct {
	// Selectors are the CSS selectors of the elements to hide.
	Selectors []string

	// Generic is false if the generic rules were disabled for the page.
	Generic bool
}

// EngineConfig is the configuration structure for [NewEngine].
type EngineConfig struct {
	// Logger is used for logging the database changes.  If it's nil,
	// [slog.Default] is used.
	Logger *slog.Logger

	// Database is the initial database.  It may be nil, in which case the
	// compiled filters block nothing until [Engine.Swap] is called.
	Database *Database

	// UserRules are the user decisions.  It may be nil.
	UserRules *userrules.Overlay

	// Mining is the mining protection.  It may be nil.
	Mining *mining.Protector

	// CacheSize is the number of decisions to cache.  Zero disables the
	// cache.
	CacheSize int
}

// Engine matches requests and pages against the compiled database and the
// user rules.  It is safe for concurrent use.
type Engine struct {
	logger *slog.Logger
	db     *atomic.Pointer[Database]
	user   *userrules.Overlay

	// gen is increased on every [Engine.Swap] after the new database is
	// stored.  It's a part of the cache keys, so that a decision computed
	// with a previous database is never returned after a swap.
	gen *atomic.Uint64

	mining *mining.Protector

	// cache maps request keys to the decisions.  It's nil if disabled.
	cache *otter.Cache[string, *Result]
}

// NewEngine returns a new engine.  c must not be nil.
func NewEngine(c *EngineConfig) (e *Engine, err error) {
	e = &Engine{
		logger: c.Logger,
		db:     &atomic.Pointer[Database]{},
		user:   c.UserRules,
		mining: c.Mining,
		gen:    &atomic.Uint64{},
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	if c.CacheSize > 0 {
		var cache otter.Cache[string, *Result]
		cache, err = otter.MustBuilder[string, *Result](c.CacheSize).CollectStats().Build()
		if err != nil {
			return nil, fmt.Errorf("creating decision cache: %w", err)
		}

		e.cache = &cache
	}

	e.db.Store(c.Database)

	return e, nil
}

// Database returns the current database.  It may be nil.
func (e *Engine) Database() (db *Database) {
	return e.db.Load()
}

// Swap atomically replaces the database and returns the previous one.  The
// cached decisions are dropped.
func (e *Engine) Swap(db *Database) (prev *Database) {
	prev = e.db.Swap(db)
	e.gen.Add(1)
	if e.cache != nil {
		e.cache.Clear()
	}

	n := 0
	if db != nil {
		n = db.Len()
	}

	e.logger.Info("database swapped", "rules", n)

	return prev
}

// cacheKey returns the key of the decision for r.  The database generation
// and the user rules version are a part of it, so that the decisions made
// before a swap or a user rule change are not used.  It must be called before
// the database is loaded.
func (e *Engine) cacheKey(r *rules.Request) (key string) {
	var version uint64
	if e.user != nil {
		version = e.user.Version()
	}

	var sb strings.Builder
	sb.Grow(len(r.URL) + len(r.PageURL) + 40)
	sb.WriteString(strconv.FormatUint(e.gen.Load(), 16))
	sb.WriteByte(0)
	sb.WriteString(strconv.FormatUint(version, 16))
	sb.WriteByte(0)
	sb.WriteString(strconv.FormatUint(uint64(r.ContentType), 16))
	sb.WriteByte(0)
	sb.WriteString(r.URL)
	sb.WriteByte(0)
	sb.WriteString(r.PageURL)

	return sb.String()
}

// MatchRequest returns the decision for r.  The stages are tried in order:
//
//  1. user allow rules for the page;
//  2. user block rules for the request host;
//  3. mining protection;
//  4. important allowlist filters;
//  5. important blocking filters, unless the page is allowlisted;
//  6. allowlist filters, including the ones for the whole page;
//  7. blocking filters.
func (e *Engine) MatchRequest(r *rules.Request) (res *Result) {
	if e.cache == nil {
		return e.matchRequest(r)
	}

	key := e.cacheKey(r)
	if res, ok := e.cache.Get(key); ok {
		return res
	}

	res = e.matchRequest(r)
	e.cache.Set(key, res)

	return res
}

// matchRequest returns the decision for r without using the cache.
func (e *Engine) matchRequest(r *rules.Request) (res *Result) {
	if e.user != nil {
		if e.user.IsHostAllowed(r.PageHostname) {
			return &Result{Source: SourceUserAllow}
		}

		if e.user.IsHostBlocked(r.Hostname) {
			return &Result{Source: SourceUserBlock, Blocked: true}
		}
	}

	if e.mining != nil {
		if f := e.mining.Match(r); f != nil {
			return &Result{Filter: f, Source: SourceMining, Blocked: true}
		}
	}

	db := e.db.Load()
	if db == nil {
		return resultNone
	}

	if f := db.ImportantAllow.Match(r); f != nil {
		return &Result{Filter: f, Source: SourceImportantAllow}
	}

	docAllow := db.pageAllow(r.PageURL, rules.TypeDocument)
	if f := db.Important.Match(r); f != nil {
		if docAllow != nil {
			return &Result{Filter: docAllow, Source: SourceDocumentAllow}
		}

		return &Result{Filter: f, Source: SourceImportant, Blocked: true}
	}

	if f := db.Allow.Match(r); f != nil {
		return &Result{Filter: f, Source: SourceAllow}
	}

	if docAllow != nil {
		return &Result{Filter: docAllow, Source: SourceDocumentAllow}
	}

	useGeneric := db.pageAllow(r.PageURL, rules.TypeGenericBlock) == nil
	if f := db.Block.MatchGeneric(r, useGeneric); f != nil {
		return &Result{Filter: f, Source: SourceBlock, Blocked: true}
	}

	return resultNone
}

// pageAllow returns the first page-level allowlist filter of the types for
// the page or nil.
func (db *Database) pageAllow(pageURL string, ct rules.ContentType) (f *rules.Filter) {
	if pageURL == "" {
		return nil
	}

	r := rules.NewRequest(pageURL, pageURL, ct)
	for _, idx := range []*FilterIndex{db.ImportantAllow, db.Allow} {
		for _, f = range idx.MatchAll(r) {
			if f.IsDocumentLevel() {
				return f
			}
		}
	}

	return nil
}

// MatchHostname returns the decision for a hostname without a page, for
// example for DNS filtering.
func (e *Engine) MatchHostname(host string) (res *Result) {
	return e.MatchRequest(rules.NewRequestForHostname(host))
}

// CosmeticResult returns the element hiding decision for the page.  Pages
// allowlisted by the user or with $document or $elemhide allowlist filters get
// no selectors.  $generichide allowlist filters disable the generic rules.
func (e *Engine) CosmeticResult(pageURL string) (res *CosmeticResult) {
	res = &CosmeticResult{Generic: true}

	host := strings.ToLower(ufnet.ExtractHostname(pageURL))
	if host == "" {
		return res
	}

	if e.user != nil && e.user.IsHostAllowed(host) {
		return res
	}

	db := e.db.Load()
	if db == nil || db.pageAllow(pageURL, rules.TypeDocument|rules.TypeElementHide) != nil {
		return res
	}

	res.Generic = db.pageAllow(pageURL, rules.TypeGenericHide) == nil
	res.Selectors = db.Elements.SelectorsFor(host, res.Generic)

	return res
}

// CacheStats are the statistics of the decision cache.
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Ratio    float64 `json:"ratio"`
	Evicted  int64   `json:"evicted"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// CacheStats returns the statistics of the decision cache.  It returns nil if
// the cache is disabled.
func (e *Engine) CacheStats() (s *CacheStats) {
	if e.cache == nil {
		return nil
	}

	stats := e.cache.Stats()

	return &CacheStats{
		Hits:     stats.Hits(),
		Misses:   stats.Misses(),
		Ratio:    stats.Ratio(),
		Evicted:  stats.EvictedCount(),
		Size:     e.cache.Size(),
		Capacity: e.cache.Capacity(),
	}
}
