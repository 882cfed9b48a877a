package registry

import (
	"strings"
	"sync"
)

// Snapshot is the derived subscription set: deduplicated, insertion-ordered,
// with a canonical key used to detect real membership changes.
type Snapshot struct {
	Symbols []string
	Key     string
}

// Registry derives the active subscription set from an optional focus symbol
// plus the watchlist. The focus symbol, when set, always leads the set.
// Downstream components receive a Snapshot only when the set's canonical key
// actually changes, so unrelated updates never trigger reconnects.
type Registry struct {
	mu        sync.Mutex
	focus     string
	hasFocus  bool
	watchlist []string
	key       string
	changes   chan Snapshot
}

func New() *Registry {
	return &Registry{changes: make(chan Snapshot, 1)}
}

// SetFocus selects a focus symbol. A blank symbol is treated as no selection.
func (r *Registry) SetFocus(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		r.hasFocus = false
		r.focus = ""
	} else {
		r.hasFocus = true
		r.focus = symbol
	}
	r.recompute()
}

// ClearFocus removes the focus selection.
func (r *Registry) ClearFocus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasFocus = false
	r.focus = ""
	r.recompute()
}

// Focus reports the current focus symbol, if one is selected.
func (r *Registry) Focus() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focus, r.hasFocus
}

// SetWatchlist replaces the watchlist symbols (order preserved).
func (r *Registry) SetWatchlist(symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchlist = append([]string(nil), symbols...)
	r.recompute()
}

// Snapshot returns the current subscription set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Changes delivers a Snapshot each time the set's membership changes.
// The channel holds only the most recent unconsumed change.
func (r *Registry) Changes() <-chan Snapshot {
	return r.changes
}

func (r *Registry) snapshotLocked() Snapshot {
	var symbols []string
	seen := make(map[string]struct{})
	add := func(sym string) {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			return
		}
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	if r.hasFocus {
		add(r.focus)
	}
	for _, sym := range r.watchlist {
		add(sym)
	}
	return Snapshot{Symbols: symbols, Key: strings.Join(symbols, ",")}
}

func (r *Registry) recompute() {
	snap := r.snapshotLocked()
	if snap.Key == r.key {
		return
	}
	r.key = snap.Key

	// Coalesce: an unconsumed older change is superseded by this one.
	select {
	case <-r.changes:
	default:
	}
	r.changes <- snap
}
