package store

import (
	"fmt"
	"sync"

	"github.com/seanzhanng/tradestream/pkg/models"
)

// EventLog is the capped newest-first log shown in the stream panel.
type EventLog struct {
	mu      sync.Mutex
	seq     uint64
	entries []models.StreamEvent // newest first
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append prepends one entry, assigning it a unique id, and evicts the oldest
// entries beyond MaxStreamEvents.
func (l *EventLog) Append(kind models.StreamEventKind, text, symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	ev := models.StreamEvent{
		ID:     fmt.Sprintf("%s-%d", kind, l.seq),
		Kind:   kind,
		Text:   text,
		Symbol: symbol,
	}
	l.entries = append([]models.StreamEvent{ev}, l.entries...)
	if len(l.entries) > MaxStreamEvents {
		l.entries = l.entries[:MaxStreamEvents]
	}
}

// Entries returns a newest-first copy of the log.
func (l *EventLog) Entries() []models.StreamEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.StreamEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
