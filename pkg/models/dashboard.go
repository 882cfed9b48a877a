package models

// Placeholder is rendered wherever no data has arrived yet.
const Placeholder = "—"

// StreamEventKind tags an event-log entry.
type StreamEventKind string

const (
	EventKindTick      StreamEventKind = "tick"
	EventKindAnalytics StreamEventKind = "analytics"
)

// StreamEvent is one entry of the capped chronological event log.
type StreamEvent struct {
	ID     string          `json:"id"`
	Kind   StreamEventKind `json:"kind"`
	Text   string          `json:"text"`
	Symbol string          `json:"symbol,omitempty"` // empty means global
}

// ChangeColor classifies a watchlist row's daily move.
type ChangeColor string

const (
	ColorEmerald ChangeColor = "emerald" // pct change above +0.001
	ColorSky     ChangeColor = "sky"     // flat, or baseline unknown
	ColorRose    ChangeColor = "rose"    // pct change below -0.001
)

// WatchlistRow is a derived row; it is recomputed, never mutated in place.
type WatchlistRow struct {
	Symbol      string      `json:"symbol"`
	Name        string      `json:"name"`
	Price       string      `json:"price"`
	Change      string      `json:"change"`
	ChangeColor ChangeColor `json:"change_color"`
}

// NewWatchlistRow returns a row in its initial placeholder state.
func NewWatchlistRow(symbol, name string) WatchlistRow {
	if name == "" {
		name = symbol
	}
	return WatchlistRow{
		Symbol:      symbol,
		Name:        name,
		Price:       Placeholder,
		Change:      Placeholder,
		ChangeColor: ColorSky,
	}
}
