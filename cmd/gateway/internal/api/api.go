package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/gateway/internal/gateway"
	"github.com/seanzhanng/tradestream/cmd/gateway/internal/hub"
	"github.com/seanzhanng/tradestream/cmd/gateway/internal/protocol"
	"github.com/seanzhanng/tradestream/cmd/gateway/internal/repository"
	"github.com/seanzhanng/tradestream/pkg/metrics"
)

const defaultLookbackHours = 24

var (
	apiRequests = metrics.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_api_requests_total",
		Help: "REST API requests served, by endpoint and status.",
	}, []string{"endpoint", "status"})
	wsConnections = metrics.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_ws_connections",
		Help: "Websocket connections currently open.",
	})
)

// NewMux wires the gateway's HTTP surface: tick history and baselines over
// REST, the two live feeds over websocket, plus health and metrics.
func NewMux(repo repository.FeedStore, wsHub *hub.Hub, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ticks", func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
		if symbol == "" {
			apiRequests.WithLabelValues("ticks", "400").Inc()
			http.Error(w, `{"error":"symbol is required"}`, http.StatusBadRequest)
			return
		}

		lookback := defaultLookbackHours
		if raw := r.URL.Query().Get("lookback_hours"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				lookback = parsed
			}
		}

		members, err := repo.History(r.Context(), symbol, time.Duration(lookback)*time.Hour)
		if err != nil {
			apiRequests.WithLabelValues("ticks", "500").Inc()
			logger.Error("History lookup failed", zap.String("symbol", symbol), zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		apiRequests.WithLabelValues("ticks", "200").Inc()
		w.Header().Set("Content-Type", "application/json")
		// Members are already JSON encoded tick objects, splice them.
		w.Write([]byte("[" + strings.Join(members, ",") + "]"))
	})

	mux.HandleFunc("/api/baselines", func(w http.ResponseWriter, r *http.Request) {
		symbols := protocol.ParseSymbols(r.URL.Query().Get("symbols"))
		if len(symbols) == 0 {
			apiRequests.WithLabelValues("baselines", "400").Inc()
			http.Error(w, `{"error":"symbols is required"}`, http.StatusBadRequest)
			return
		}

		baselines, err := repo.Baselines(r.Context(), symbols, time.Now())
		if err != nil {
			apiRequests.WithLabelValues("baselines", "500").Inc()
			logger.Error("Baseline lookup failed", zap.Error(err))
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		apiRequests.WithLabelValues("baselines", "200").Inc()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(baselines)
	})

	mux.HandleFunc("/ws/ticks", feedHandler(wsHub, logger, protocol.TickChannelPrefix))
	mux.HandleFunc("/ws/analytics", feedHandler(wsHub, logger, protocol.AnalyticsChannelPrefix))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", metrics.Handler())

	return mux
}

func feedHandler(wsHub *hub.Hub, logger *zap.Logger, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbols := protocol.ParseSymbols(r.URL.Query().Get("symbols"))
		if len(symbols) == 0 {
			http.Error(w, `{"error":"symbols is required"}`, http.StatusBadRequest)
			return
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Warn("Upgrade failed", zap.Error(err))
			return
		}

		wsConnections.Inc()
		client := gateway.NewClient(conn, wsHub, logger, wsConnections.Dec)
		client.Start(protocol.Channels(prefix, symbols))
	}
}
