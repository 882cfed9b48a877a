package session_test

import (
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/history"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/session"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/testutils"
	"github.com/seanzhanng/tradestream/pkg/models"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met in time")
}

func emptyHistoryClient() *testutils.MockHTTPClient {
	return &testutils.MockHTTPClient{
		Handler: func(req *http.Request) (*http.Response, error) {
			if strings.Contains(req.URL.Path, "baselines") {
				return testutils.JSONResponse(http.StatusOK, `{}`), nil
			}
			return testutils.JSONResponse(http.StatusOK, `[]`), nil
		},
	}
}

func TestSession_LiveTickReachesStoreAndLog(t *testing.T) {
	dialer := &testutils.MockDialer{
		Script: func(attempt int, urlstr string, server net.Conn) {
			if !strings.Contains(urlstr, "/ws/ticks") {
				time.Sleep(200 * time.Millisecond)
				return
			}
			wsutil.WriteServerText(server, []byte(`{"symbol":"AAPL","price":189.3,"volume":500,"timestamp":1700000000}`))
			time.Sleep(200 * time.Millisecond)
		},
	}
	loader := history.NewLoader("http://api", emptyHistoryClient(), zap.NewNop())

	s := session.New("ws://feed", loader, dialer, zap.NewNop())
	defer s.Close()
	s.SetWatchlist([]string{"AAPL"})

	ticks, _, events := s.Stores()
	waitFor(t, 2*time.Second, func() bool {
		_, ok := ticks.Latest("AAPL")
		return ok && events.Len() >= 1
	})

	latest, _ := ticks.Latest("AAPL")
	if latest.Price != 189.3 {
		t.Errorf("Latest tick wrong: %+v", latest)
	}
	entry := events.Entries()[0]
	if entry.Kind != models.EventKindTick || entry.Symbol != "AAPL" {
		t.Errorf("Event entry wrong: %+v", entry)
	}
	if !strings.Contains(entry.Text, "AAPL") || !strings.Contains(entry.Text, "$189.30") {
		t.Errorf("Rendered text wrong: %q", entry.Text)
	}
}

func TestSession_AnalyticsSnapshotApplied(t *testing.T) {
	dialer := &testutils.MockDialer{
		Script: func(attempt int, urlstr string, server net.Conn) {
			if !strings.Contains(urlstr, "/ws/analytics") {
				time.Sleep(200 * time.Millisecond)
				return
			}
			wsutil.WriteServerText(server, []byte(`{"symbol":"AAPL","vwap":189.18,"pct_change":0.01,"avg_volume":300,"volume_spike":true,"volatility":12.4,"timestamp":1700000000}`))
			time.Sleep(200 * time.Millisecond)
		},
	}
	loader := history.NewLoader("http://api", emptyHistoryClient(), zap.NewNop())

	s := session.New("ws://feed", loader, dialer, zap.NewNop())
	defer s.Close()
	s.SetWatchlist([]string{"AAPL"})

	_, analytics, events := s.Stores()
	waitFor(t, 2*time.Second, func() bool {
		_, ok := analytics.Latest("AAPL")
		return ok
	})

	snap, _ := analytics.Latest("AAPL")
	if snap.VWAP != 189.18 || !snap.VolumeSpike {
		t.Errorf("Snapshot wrong: %+v", snap)
	}
	// Analytics messages never hit the event log.
	if events.Len() != 0 {
		t.Errorf("Expected empty event log, got %d entries", events.Len())
	}
}

func TestSession_MalformedFrameDropped(t *testing.T) {
	dialer := &testutils.MockDialer{
		Script: func(attempt int, urlstr string, server net.Conn) {
			if !strings.Contains(urlstr, "/ws/ticks") {
				time.Sleep(200 * time.Millisecond)
				return
			}
			wsutil.WriteServerText(server, []byte(`{not json`))
			wsutil.WriteServerText(server, []byte(`{"symbol":"AAPL","price":1,"volume":1,"timestamp":1}`))
			time.Sleep(200 * time.Millisecond)
		},
	}
	loader := history.NewLoader("http://api", emptyHistoryClient(), zap.NewNop())

	s := session.New("ws://feed", loader, dialer, zap.NewNop())
	defer s.Close()
	s.SetWatchlist([]string{"AAPL"})

	ticks, _, _ := s.Stores()
	waitFor(t, 2*time.Second, func() bool {
		_, ok := ticks.Latest("AAPL")
		return ok
	})
	// The connection survived the bad frame and delivered the next one.
	if latest, _ := ticks.Latest("AAPL"); latest.Price != 1 {
		t.Errorf("Expected tick after malformed frame, got %+v", latest)
	}
}

func TestSession_StaleBackfillDiscarded(t *testing.T) {
	release := make(chan struct{})
	client := &testutils.MockHTTPClient{
		Handler: func(req *http.Request) (*http.Response, error) {
			if strings.Contains(req.URL.Path, "baselines") {
				return testutils.JSONResponse(http.StatusOK, `{}`), nil
			}
			if strings.Contains(req.URL.RawQuery, "symbol=OLD") {
				// Simulate a slow fetch that resolves after the set changed.
				select {
				case <-release:
				case <-req.Context().Done():
					return nil, req.Context().Err()
				}
				return testutils.JSONResponse(http.StatusOK,
					`[{"price": 42, "volume": 1, "timestamp": 10}]`), nil
			}
			return testutils.JSONResponse(http.StatusOK, `[]`), nil
		},
	}
	dialer := &testutils.MockDialer{
		Script: func(attempt int, urlstr string, server net.Conn) {
			time.Sleep(100 * time.Millisecond)
		},
	}
	loader := history.NewLoader("http://api", client, zap.NewNop())

	s := session.New("ws://feed", loader, dialer, zap.NewNop())
	defer s.Close()

	s.SetWatchlist([]string{"OLD"})
	waitFor(t, 2*time.Second, func() bool { return dialer.Dials() >= 1 })

	// Supersede the set while OLD's history fetch is still in flight. Only
	// release the blocked fetch once the rotation has visibly happened.
	s.SetWatchlist([]string{"NEW"})
	waitFor(t, 2*time.Second, func() bool {
		for _, u := range dialer.URLs() {
			if strings.Contains(u, "NEW") {
				return true
			}
		}
		return false
	})
	close(release)

	time.Sleep(100 * time.Millisecond)
	ticks, _, _ := s.Stores()
	if len(ticks.History("OLD")) != 0 {
		t.Error("History for a superseded subscription set was applied")
	}
}

func TestSession_EmptySetDetaches(t *testing.T) {
	dialer := &testutils.MockDialer{
		Script: func(attempt int, urlstr string, server net.Conn) {
			time.Sleep(50 * time.Millisecond)
		},
	}
	loader := history.NewLoader("http://api", emptyHistoryClient(), zap.NewNop())

	s := session.New("ws://feed", loader, dialer, zap.NewNop())
	defer s.Close()

	s.SetWatchlist([]string{"AAPL"})
	waitFor(t, 2*time.Second, func() bool { return dialer.Dials() >= 2 })

	s.SetWatchlist(nil)
	// Give the teardown a moment, then confirm dialing stopped for good.
	time.Sleep(100 * time.Millisecond)
	settled := dialer.Dials()
	time.Sleep(300 * time.Millisecond)
	if dialer.Dials() != settled {
		t.Error("Transport still dialing after the subscription set emptied")
	}
}

func TestSession_ViewPlaceholdersBeforeData(t *testing.T) {
	dialer := &testutils.MockDialer{
		Script: func(attempt int, urlstr string, server net.Conn) {
			time.Sleep(100 * time.Millisecond)
		},
	}
	loader := history.NewLoader("http://api", emptyHistoryClient(), zap.NewNop())

	s := session.New("ws://feed", loader, dialer, zap.NewNop())
	defer s.Close()
	s.SetWatchlist([]string{"AAPL", "MSFT"})
	s.Registry.SetFocus("AAPL")

	v := s.View(time.Now(), 5)
	if v.HasSummary {
		t.Error("Expected no summary with no data")
	}
	for _, tile := range v.Metrics {
		if tile.Value != models.Placeholder {
			t.Errorf("Tile %s should be a placeholder, got %q", tile.Label, tile.Value)
		}
	}
	for _, row := range v.Watchlist {
		if row.Price != models.Placeholder {
			t.Errorf("Row %s should be a placeholder, got %q", row.Symbol, row.Price)
		}
	}
}
