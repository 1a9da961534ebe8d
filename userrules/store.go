package userrules

import (
	"context"
	"encoding"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
)

// Action is the decision a user rule makes for a host.  The values are
// persisted and must not change.
type Action uint8

// Action values.
const (
	// ActionAllow allows every request on the pages of the host.
	ActionAllow Action = 1
	// ActionBlock blocks every request to the host.
	ActionBlock Action = 2
)

// String implements the [fmt.Stringer] interface for Action.
func (a Action) String() (s string) {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionBlock:
		return "block"
	default:
		return fmt.Sprintf("!bad_action_%d", a)
	}
}

// type check
var _ encoding.TextMarshaler = Action(0)

// MarshalText implements the [encoding.TextMarshaler] interface for Action.
func (a Action) MarshalText() (b []byte, err error) {
	switch a {
	case ActionAllow, ActionBlock:
		return []byte(a.String()), nil
	default:
		return nil, fmt.Errorf("action: %w: %d", errors.ErrBadEnumValue, a)
	}
}

// Rule is a user decision for a single host.
type Rule struct {
	// Host is the lower-cased hostname.
	Host string `json:"host"`

	// Action is the decision.
	Action Action `json:"action"`
}

// Store persists the user rules.  All methods must be safe for concurrent
// use.
type Store interface {
	// Load returns all stored rules.
	Load(ctx context.Context) (rs []Rule, err error)

	// Put stores r, replacing the rule for the same host.
	Put(ctx context.Context, r Rule) (err error)

	// Delete removes the rule for host.  It's not an error if there is none.
	Delete(ctx context.Context, host string) (err error)

	// Close releases the resources of the store.
	Close() (err error)
}

// MemoryStore is a [Store] that keeps the rules in memory only.
type MemoryStore struct {
	mu    *sync.Mutex
	rules map[string]Action
}

// NewMemoryStore returns a new empty memory store.
func NewMemoryStore() (s *MemoryStore) {
	return &MemoryStore{
		mu:    &sync.Mutex{},
		rules: map[string]Action{},
	}
}

// type check
var _ Store = (*MemoryStore)(nil)

// Load implements the [Store] interface for *MemoryStore.  The rules are
// sorted by host.
func (s *MemoryStore) Load(_ context.Context) (rs []Rule, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, host := range slices.Sorted(maps.Keys(s.rules)) {
		rs = append(rs, Rule{Host: host, Action: s.rules[host]})
	}

	return rs, nil
}

// Put implements the [Store] interface for *MemoryStore.
func (s *MemoryStore) Put(_ context.Context, r Rule) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[r.Host] = r.Action

	return nil
}

// Delete implements the [Store] interface for *MemoryStore.
func (s *MemoryStore) Delete(_ context.Context, host string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rules, host)

	return nil
}

// Close implements the [Store] interface for *MemoryStore.
func (s *MemoryStore) Close() (err error) {
	return nil
}
