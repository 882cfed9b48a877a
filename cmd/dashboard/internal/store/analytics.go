package store

import (
	"sync"

	"github.com/seanzhanng/tradestream/pkg/models"
)

// AnalyticsStore keeps the latest analytics snapshot per symbol. Each write
// fully replaces the previous snapshot; a snapshot, once present, stays
// present for the rest of the session.
type AnalyticsStore struct {
	mu        sync.RWMutex
	snapshots map[string]models.AnalyticsSnapshot
}

func NewAnalyticsStore() *AnalyticsStore {
	return &AnalyticsStore{snapshots: make(map[string]models.AnalyticsSnapshot)}
}

func (s *AnalyticsStore) Apply(snap models.AnalyticsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Symbol] = snap
}

func (s *AnalyticsStore) Latest(symbol string) (models.AnalyticsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[symbol]
	return snap, ok
}
