package models

import (
	"encoding/json"
	"fmt"
)

// AnalyticsSnapshot is the latest computed analytics for one symbol.
// Each new snapshot fully replaces the previous; no history is kept.
type AnalyticsSnapshot struct {
	Symbol      string  `json:"symbol"`
	VWAP        float64 `json:"vwap"`
	Volatility  float64 `json:"volatility"`
	PctChange   float64 `json:"pct_change"`
	AvgVolume   float64 `json:"avg_volume"`
	VolumeSpike bool    `json:"volume_spike"`
	Timestamp   float64 `json:"timestamp,omitempty"`
}

// ParseAnalyticsSnapshot decodes one live websocket analytics message.
func ParseAnalyticsSnapshot(payload []byte) (AnalyticsSnapshot, error) {
	var s AnalyticsSnapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return AnalyticsSnapshot{}, fmt.Errorf("malformed analytics message: %w", err)
	}
	if s.Symbol == "" {
		return AnalyticsSnapshot{}, fmt.Errorf("analytics message missing symbol")
	}
	return s, nil
}
