package processor

import (
	"math"
	"time"

	"github.com/seanzhanng/tradestream/pkg/models"
)

// window is a per-symbol rolling tick window. Each worker owns the windows
// for its sharded symbols, so no locking is needed.
type window struct {
	ticks []models.Tick
	span  time.Duration
}

func newWindow(span time.Duration) *window {
	return &window{span: span}
}

func (w *window) add(tick models.Tick) {
	w.ticks = append(w.ticks, tick)
	cutoff := tick.Timestamp - w.span.Seconds()
	drop := 0
	for drop < len(w.ticks) && w.ticks[drop].Timestamp < cutoff {
		drop++
	}
	if drop > 0 {
		w.ticks = w.ticks[drop:]
	}
}

// snapshot condenses the window into the derived metrics published on the
// analytics channel. Returns false when the window is empty.
func (w *window) snapshot() (models.AnalyticsSnapshot, bool) {
	n := len(w.ticks)
	if n == 0 {
		return models.AnalyticsSnapshot{}, false
	}

	var sumPV, sumVol, sumPrice float64
	for _, t := range w.ticks {
		sumPV += t.Price * float64(t.Volume)
		sumVol += float64(t.Volume)
		sumPrice += t.Price
	}

	last := w.ticks[n-1]
	snap := models.AnalyticsSnapshot{
		Symbol:    last.Symbol,
		AvgVolume: sumVol / float64(n),
		Timestamp: last.Timestamp,
	}

	if sumVol > 0 {
		snap.VWAP = sumPV / sumVol
	} else {
		snap.VWAP = last.Price
	}

	if first := w.ticks[0].Price; first != 0 {
		snap.PctChange = (last.Price - first) / first
	}

	// Relative standard deviation of prices over the window, in percent.
	mean := sumPrice / float64(n)
	if mean != 0 && n > 1 {
		var sq float64
		for _, t := range w.ticks {
			d := t.Price - mean
			sq += d * d
		}
		snap.Volatility = math.Sqrt(sq/float64(n)) / mean * 100
	}

	snap.VolumeSpike = float64(last.Volume) > 2*snap.AvgVolume

	return snap, true
}
