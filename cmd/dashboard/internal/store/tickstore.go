package store

import (
	"sync"

	"github.com/seanzhanng/tradestream/pkg/models"
)

const (
	// MaxTickHistory bounds every per-symbol history buffer (H).
	MaxTickHistory = 120
	// MaxStreamEvents bounds the event log (E).
	MaxStreamEvents = 500
)

// TickStore is the authoritative per-symbol state: the latest tick and a
// bounded ordered history, merged from backfill and live-stream writes.
//
// Writes are tagged with an epoch. Every subscription-set change advances the
// epoch; a write carrying a superseded epoch is discarded without mutating
// anything, which is what makes stale in-flight fetches and late frames from
// a closed connection harmless.
type TickStore struct {
	mu      sync.RWMutex
	epoch   uint64
	latest  map[string]models.Tick
	history map[string][]models.Tick
}

func NewTickStore() *TickStore {
	return &TickStore{
		latest:  make(map[string]models.Tick),
		history: make(map[string][]models.Tick),
	}
}

// Advance invalidates all writes tagged with earlier epochs and returns the
// new current epoch.
func (s *TickStore) Advance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

func (s *TickStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// ApplyBackfill union-merges fetched histories into the store. Symbols absent
// from the result are left untouched. Per symbol, the backfill is merged with
// any live ticks that arrived first, ordered by timestamp (backfill wins ties),
// identical ticks collapse, and the buffer is capped to MaxTickHistory.
// Reapplying the same backfill with no intervening live ticks is a no-op.
func (s *TickStore) ApplyBackfill(epoch uint64, histories map[string][]models.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	for symbol, incoming := range histories {
		merged := mergeByTimestamp(incoming, s.history[symbol])
		if len(merged) > MaxTickHistory {
			merged = merged[len(merged)-MaxTickHistory:]
		}
		s.history[symbol] = merged
	}
}

// ApplyLive records one live tick: it replaces the symbol's latest tick and
// appends to its bounded history. Out-of-order ticks are appended as-is.
func (s *TickStore) ApplyLive(epoch uint64, tick models.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	s.latest[tick.Symbol] = tick
	buf := append(s.history[tick.Symbol], tick)
	if len(buf) > MaxTickHistory {
		buf = buf[len(buf)-MaxTickHistory:]
	}
	s.history[tick.Symbol] = buf
}

// Latest returns the most recent live tick for a symbol, if any.
func (s *TickStore) Latest(symbol string) (models.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.latest[symbol]
	return t, ok
}

// LatestAll returns a copy of the latest-tick map.
func (s *TickStore) LatestAll() map[string]models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Tick, len(s.latest))
	for sym, t := range s.latest {
		out[sym] = t
	}
	return out
}

// History returns a copy of the symbol's history, oldest first.
func (s *TickStore) History(symbol string) []models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := s.history[symbol]
	out := make([]models.Tick, len(buf))
	copy(out, buf)
	return out
}

// HistoryAll returns a copy of every symbol's history.
func (s *TickStore) HistoryAll() map[string][]models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]models.Tick, len(s.history))
	for sym, buf := range s.history {
		cp := make([]models.Tick, len(buf))
		copy(cp, buf)
		out[sym] = cp
	}
	return out
}

// mergeByTimestamp merges two timestamp-ordered slices into one, collapsing
// ticks that are identical in every field. Ties on timestamp alone keep the
// backfill entry first.
func mergeByTimestamp(backfill, live []models.Tick) []models.Tick {
	if len(live) == 0 {
		out := make([]models.Tick, len(backfill))
		copy(out, backfill)
		return out
	}
	out := make([]models.Tick, 0, len(backfill)+len(live))
	i, j := 0, 0
	for i < len(backfill) && j < len(live) {
		if backfill[i] == live[j] {
			out = append(out, backfill[i])
			i++
			j++
			continue
		}
		if backfill[i].Timestamp <= live[j].Timestamp {
			out = append(out, backfill[i])
			i++
		} else {
			out = append(out, live[j])
			j++
		}
	}
	out = append(out, backfill[i:]...)
	out = append(out, live[j:]...)
	return out
}
