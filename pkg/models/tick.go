package models

import (
	"encoding/json"
	"fmt"
)

// Tick represents a single trade/quote event for a symbol
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Timestamp float64 `json:"timestamp"` // seconds since epoch
}

// RawTickRecord is the wire shape of a historical tick. Exactly one of
// TimestampMs / Timestamp is authoritative; TimestampMs wins when both
// are present.
type RawTickRecord struct {
	Symbol      string   `json:"symbol,omitempty"`
	Price       float64  `json:"price"`
	Volume      int64    `json:"volume"`
	TimestampMs *int64   `json:"timestamp_ms,omitempty"`
	Timestamp   *float64 `json:"timestamp,omitempty"`
}

// Normalize converts a raw record to a canonical Tick. fallbackSymbol is
// used when the record carries no symbol of its own. Records with neither
// timestamp field fail closed.
func (r RawTickRecord) Normalize(fallbackSymbol string) (Tick, error) {
	var ts float64
	switch {
	case r.TimestampMs != nil:
		ts = float64(*r.TimestampMs) / 1000.0
	case r.Timestamp != nil:
		ts = *r.Timestamp
	default:
		return Tick{}, fmt.Errorf("tick record has no timestamp field")
	}

	sym := r.Symbol
	if sym == "" {
		sym = fallbackSymbol
	}

	return Tick{
		Symbol:    sym,
		Price:     r.Price,
		Volume:    r.Volume,
		Timestamp: ts,
	}, nil
}

// ParseTick decodes one live websocket tick message.
func ParseTick(payload []byte) (Tick, error) {
	var t Tick
	if err := json.Unmarshal(payload, &t); err != nil {
		return Tick{}, fmt.Errorf("malformed tick message: %w", err)
	}
	if t.Symbol == "" {
		return Tick{}, fmt.Errorf("tick message missing symbol")
	}
	return t, nil
}
