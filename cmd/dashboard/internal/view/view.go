package view

import (
	"fmt"
	"time"

	"github.com/seanzhanng/tradestream/pkg/models"
)

// PricePoint is one chart sample for the focus symbol.
type PricePoint struct {
	Timestamp float64
	Price     float64
}

// Summary is the OHLC + percent-change view over the selected window.
// PctValid is false when open was zero.
type Summary struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	PctChange float64
	PctValid  bool
}

// Metric is one dashboard tile.
type Metric struct {
	Label  string
	Value  string
	Accent string
}

// PriceSeries filters a symbol's history down to ticks within the last
// windowMinutes. Any positive window is accepted; 1, 5 and 60 are the presets.
func PriceSeries(history []models.Tick, now time.Time, windowMinutes int) []PricePoint {
	if len(history) == 0 || windowMinutes <= 0 {
		return nil
	}
	cutoff := float64(now.UnixNano())/float64(time.Second) - float64(windowMinutes)*60
	series := make([]PricePoint, 0, len(history))
	for _, tick := range history {
		if tick.Timestamp >= cutoff {
			series = append(series, PricePoint{Timestamp: tick.Timestamp, Price: tick.Price})
		}
	}
	return series
}

// Summarize computes open/high/low/close and percent change over a series.
// An empty series yields no summary at all rather than zeros.
func Summarize(series []PricePoint) (Summary, bool) {
	if len(series) == 0 {
		return Summary{}, false
	}
	s := Summary{
		Open:  series[0].Price,
		Close: series[len(series)-1].Price,
		High:  series[0].Price,
		Low:   series[0].Price,
	}
	for _, p := range series {
		if p.Price > s.High {
			s.High = p.Price
		}
		if p.Price < s.Low {
			s.Low = p.Price
		}
	}
	if s.Open != 0 {
		s.PctChange = (s.Close - s.Open) / s.Open * 100
		s.PctValid = true
	}
	return s, true
}

// Metrics renders the fixed tile list for the focus symbol. Tiles fall back
// to the placeholder until their data source has produced something.
func Metrics(last *models.Tick, snap *models.AnalyticsSnapshot) []Metric {
	tiles := []Metric{
		{Label: "VWAP", Value: models.Placeholder, Accent: "emerald"},
		{Label: "Spread", Value: models.Placeholder, Accent: "sky"},
		{Label: "Volatility (5m)", Value: models.Placeholder, Accent: "amber"},
		{Label: "Last Tick", Value: models.Placeholder, Accent: "fuchsia"},
	}
	if last != nil {
		tiles[3].Value = fmt.Sprintf("$%.2f • %d", last.Price, last.Volume)
	}
	if snap != nil {
		tiles[0].Value = fmt.Sprintf("$%.2f", snap.VWAP)
		tiles[1].Value = fmt.Sprintf("%+.2f%%", snap.PctChange*100)
		tiles[2].Value = fmt.Sprintf("%.2f%%", snap.Volatility)
	}
	return tiles
}

// FilterEvents keeps entries that are global (no symbol tag) or tagged with
// the focus symbol. With no focus selected only global entries remain.
func FilterEvents(events []models.StreamEvent, focus string, hasFocus bool) []models.StreamEvent {
	out := make([]models.StreamEvent, 0, len(events))
	for _, ev := range events {
		if ev.Symbol == "" || (hasFocus && ev.Symbol == focus) {
			out = append(out, ev)
		}
	}
	return out
}

// ClassifyChange maps a percent change onto the tri-state row color.
func ClassifyChange(pctChange float64) models.ChangeColor {
	switch {
	case pctChange > 0.001:
		return models.ColorEmerald
	case pctChange < -0.001:
		return models.ColorRose
	default:
		return models.ColorSky
	}
}

// WatchlistRows recomputes each row from the live tick and the daily
// baseline. Rows whose symbol has no live tick yet are passed through
// untouched, keeping whatever they showed before.
//
// Baseline priority per symbol: fetched daily baseline, then the earliest
// known history price, then the live price itself.
func WatchlistRows(
	prev []models.WatchlistRow,
	latest map[string]models.Tick,
	history map[string][]models.Tick,
	baselines map[string]float64,
) []models.WatchlistRow {
	rows := make([]models.WatchlistRow, len(prev))
	for i, row := range prev {
		tick, ok := latest[row.Symbol]
		if !ok {
			rows[i] = row
			continue
		}

		baseline, haveBaseline := baselines[row.Symbol]
		if !haveBaseline {
			if hist := history[row.Symbol]; len(hist) > 0 {
				baseline = hist[0].Price
			} else {
				baseline = tick.Price
			}
		}

		row.Price = fmt.Sprintf("%.2f", tick.Price)
		if baseline > 0 {
			pct := (tick.Price - baseline) / baseline * 100
			row.Change = fmt.Sprintf("%+.2f%%", pct)
			row.ChangeColor = ClassifyChange(pct)
		}
		rows[i] = row
	}
	return rows
}
