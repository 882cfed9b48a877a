package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/store"
	"github.com/seanzhanng/tradestream/pkg/models"
)

// LookbackHours is the fixed historical window requested per symbol.
const LookbackHours = 24

// HTTPClient abstracts the transport so tests can stub responses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Loader performs the one-shot historical fetch and the daily-baseline fetch
// for a subscription set. Failures are strictly per symbol: one bad response
// never aborts the batch.
type Loader struct {
	baseURL string
	client  HTTPClient
	logger  *zap.Logger
}

func NewLoader(baseURL string, client HTTPClient, logger *zap.Logger) *Loader {
	return &Loader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// LoadHistory fetches up to store.MaxTickHistory recent ticks per symbol, in
// parallel. Symbols whose fetch fails are simply absent from the result.
func (l *Loader) LoadHistory(ctx context.Context, symbols []string) map[string][]models.Tick {
	results := make(map[string][]models.Tick)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			ticks, err := l.fetchSymbol(ctx, sym)
			if err != nil {
				l.logger.Warn("history fetch failed", zap.String("symbol", sym), zap.Error(err))
				return
			}
			mu.Lock()
			results[sym] = ticks
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return results
}

func (l *Loader) fetchSymbol(ctx context.Context, symbol string) ([]models.Tick, error) {
	u := fmt.Sprintf("%s/api/ticks?symbol=%s&lookback_hours=%d",
		l.baseURL, url.QueryEscape(symbol), LookbackHours)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var raw []models.RawTickRecord
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	ticks := make([]models.Tick, 0, len(raw))
	for _, rec := range raw {
		tick, err := rec.Normalize(symbol)
		if err != nil {
			// Records without a usable timestamp are dropped, not zero-filled.
			continue
		}
		ticks = append(ticks, tick)
	}
	if len(ticks) > store.MaxTickHistory {
		ticks = ticks[len(ticks)-store.MaxTickHistory:]
	}
	return ticks, nil
}

// LoadBaselines fetches the per-symbol daily reference prices in one request.
// On any failure it returns an empty map; callers fall back to history/live
// prices per row.
func (l *Loader) LoadBaselines(ctx context.Context, symbols []string) map[string]float64 {
	u := fmt.Sprintf("%s/api/baselines?symbols=%s",
		l.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		l.logger.Warn("baseline request failed", zap.Error(err))
		return map[string]float64{}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Warn("baseline fetch failed", zap.Error(err))
		return map[string]float64{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.logger.Warn("baseline fetch failed", zap.Int("status", resp.StatusCode))
		return map[string]float64{}
	}

	var baselines map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&baselines); err != nil {
		l.logger.Warn("baseline decode failed", zap.Error(err))
		return map[string]float64{}
	}
	return baselines
}
