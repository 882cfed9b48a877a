package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/history"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/registry"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/store"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/stream"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/view"
	"github.com/seanzhanng/tradestream/pkg/models"
)

// Session coordinates the registry, the history loader, both live streams and
// the stores into one consistent per-symbol view.
//
// Lifecycle rule: every subscription-set change advances the tick-store epoch,
// cancels the in-flight fetch for the old set, and closes the old connections
// (including their reconnect timers) before anything starts for the new set.
// Consumer detach (Close) leaves no background work running.
type Session struct {
	wsBase string
	logger *zap.Logger

	Registry  *registry.Registry
	ticks     *store.TickStore
	analytics *store.AnalyticsStore
	events    *store.EventLog
	loader    *history.Loader
	dialer    stream.Dialer

	mu          sync.Mutex
	tickConn    *stream.Conn
	anConn      *stream.Conn
	cancelFetch context.CancelFunc
	fetchWG     sync.WaitGroup

	baseMu    sync.RWMutex
	baselines map[string]float64

	rowMu sync.Mutex
	rows  []models.WatchlistRow

	quit chan struct{}
	done chan struct{}
}

func New(wsBase string, loader *history.Loader, dialer stream.Dialer, logger *zap.Logger) *Session {
	s := &Session{
		wsBase:    strings.TrimRight(wsBase, "/"),
		logger:    logger,
		Registry:  registry.New(),
		ticks:     store.NewTickStore(),
		analytics: store.NewAnalyticsStore(),
		events:    store.NewEventLog(),
		loader:    loader,
		dialer:    dialer,
		baselines: map[string]float64{},
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.loop()
	return s
}

// SetWatchlist replaces the watchlist and rebuilds the placeholder rows for
// symbols not seen before (existing rows keep their current display state).
func (s *Session) SetWatchlist(symbols []string) {
	s.rowMu.Lock()
	prev := make(map[string]models.WatchlistRow, len(s.rows))
	for _, row := range s.rows {
		prev[row.Symbol] = row
	}
	rows := make([]models.WatchlistRow, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if row, ok := prev[sym]; ok {
			rows = append(rows, row)
		} else {
			rows = append(rows, models.NewWatchlistRow(sym, ""))
		}
	}
	s.rows = rows
	s.rowMu.Unlock()

	s.Registry.SetWatchlist(symbols)
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case snap := <-s.Registry.Changes():
			s.rotate(snap)
		}
	}
}

// rotate tears down everything keyed to the previous subscription set and,
// if the new set is non-empty, starts the backfill and both streams for it.
func (s *Session) rotate(snap registry.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	epoch := s.ticks.Advance()

	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	if s.tickConn != nil {
		s.tickConn.Close()
		s.tickConn = nil
	}
	if s.anConn != nil {
		s.anConn.Close()
		s.anConn = nil
	}

	if len(snap.Symbols) == 0 {
		s.logger.Info("subscription set empty, detached")
		return
	}

	s.logger.Info("subscription set changed", zap.String("key", snap.Key))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFetch = cancel
	symbols := snap.Symbols
	s.fetchWG.Add(1)
	go func() {
		defer s.fetchWG.Done()
		histories := s.loader.LoadHistory(ctx, symbols)
		if ctx.Err() != nil {
			return
		}
		s.ticks.ApplyBackfill(epoch, histories)

		baselines := s.loader.LoadBaselines(ctx, symbols)
		if ctx.Err() != nil {
			return
		}
		s.baseMu.Lock()
		s.baselines = baselines
		s.baseMu.Unlock()
	}()

	csv := url.QueryEscape(strings.Join(symbols, ","))
	s.tickConn = stream.New(stream.KindTicks,
		s.wsBase+"/ws/ticks?symbols="+csv,
		s.dialer, s.logger,
		func(payload []byte) { s.handleTick(epoch, payload) })
	s.anConn = stream.New(stream.KindAnalytics,
		s.wsBase+"/ws/analytics?symbols="+csv,
		s.dialer, s.logger,
		func(payload []byte) { s.handleAnalytics(payload) })
	s.tickConn.Open()
	s.anConn.Open()
}

func (s *Session) handleTick(epoch uint64, payload []byte) {
	tick, err := models.ParseTick(payload)
	if err != nil {
		s.logger.Warn("dropping tick message", zap.Error(err))
		return
	}
	s.ticks.ApplyLive(epoch, tick)

	at := time.Unix(int64(tick.Timestamp), 0).Format("15:04:05")
	text := fmt.Sprintf("[%s] %s • $%.2f @ %d", at, tick.Symbol, tick.Price, tick.Volume)
	s.events.Append(models.EventKindTick, text, tick.Symbol)
}

func (s *Session) handleAnalytics(payload []byte) {
	snap, err := models.ParseAnalyticsSnapshot(payload)
	if err != nil {
		s.logger.Warn("dropping analytics message", zap.Error(err))
		return
	}
	s.analytics.Apply(snap)
}

// Close detaches the consumer: both streams closed, timers cancelled,
// in-flight fetches abandoned.
func (s *Session) Close() {
	close(s.quit)
	<-s.done

	s.mu.Lock()
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	if s.tickConn != nil {
		s.tickConn.Close()
		s.tickConn = nil
	}
	if s.anConn != nil {
		s.anConn.Close()
		s.anConn = nil
	}
	s.mu.Unlock()

	s.fetchWG.Wait()
}

// View assembles the UI-facing values for the current focus symbol.
type View struct {
	FocusSymbol string
	Series      []view.PricePoint
	Summary     view.Summary
	HasSummary  bool
	Metrics     []view.Metric
	Events      []models.StreamEvent
	Watchlist   []models.WatchlistRow
}

// View derives the dashboard values at the given window size. It is read-only
// and safe to call from any goroutine.
func (s *Session) View(now time.Time, windowMinutes int) View {
	focus, hasFocus := s.Registry.Focus()

	var series []view.PricePoint
	var lastPtr *models.Tick
	var snapPtr *models.AnalyticsSnapshot
	if hasFocus {
		series = view.PriceSeries(s.ticks.History(focus), now, windowMinutes)
		if last, ok := s.ticks.Latest(focus); ok {
			lastPtr = &last
		}
		if snap, ok := s.analytics.Latest(focus); ok {
			snapPtr = &snap
		}
	}
	summary, hasSummary := view.Summarize(series)

	s.baseMu.RLock()
	baselines := s.baselines
	s.baseMu.RUnlock()

	s.rowMu.Lock()
	s.rows = view.WatchlistRows(s.rows, s.ticks.LatestAll(), s.ticks.HistoryAll(), baselines)
	rows := make([]models.WatchlistRow, len(s.rows))
	copy(rows, s.rows)
	s.rowMu.Unlock()

	return View{
		FocusSymbol: focus,
		Series:      series,
		Summary:     summary,
		HasSummary:  hasSummary,
		Metrics:     view.Metrics(lastPtr, snapPtr),
		Events:      view.FilterEvents(s.events.Entries(), focus, hasFocus),
		Watchlist:   rows,
	}
}

// Stores exposes the underlying stores for inspection (read-only use).
func (s *Session) Stores() (*store.TickStore, *store.AnalyticsStore, *store.EventLog) {
	return s.ticks, s.analytics, s.events
}
