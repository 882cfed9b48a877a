package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/history"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/session"
	"github.com/seanzhanng/tradestream/cmd/dashboard/internal/stream"
	"github.com/seanzhanng/tradestream/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := config.NewLogger(cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	loader := history.NewLoader(cfg.Dashboard.APIBaseURL, &http.Client{Timeout: 10 * time.Second}, logger)
	dialer := &stream.WSDialer{}

	sess := session.New(cfg.Dashboard.WSBaseURL, loader, dialer, logger)
	sess.SetWatchlist(cfg.Dashboard.Watchlist)
	sess.Registry.SetFocus(cfg.Dashboard.FocusSymbol)

	logger.Info("Dashboard client started",
		zap.String("api", cfg.Dashboard.APIBaseURL),
		zap.String("ws", cfg.Dashboard.WSBaseURL),
		zap.Strings("watchlist", cfg.Dashboard.Watchlist))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v := sess.View(time.Now(), cfg.Dashboard.WindowMinutes)
			fields := []zap.Field{
				zap.String("focus", v.FocusSymbol),
				zap.Int("series_points", len(v.Series)),
				zap.Int("events", len(v.Events)),
			}
			if v.HasSummary {
				fields = append(fields,
					zap.Float64("open", v.Summary.Open),
					zap.Float64("close", v.Summary.Close),
					zap.Float64("high", v.Summary.High),
					zap.Float64("low", v.Summary.Low))
				if v.Summary.PctValid {
					fields = append(fields, zap.Float64("pct_change", v.Summary.PctChange))
				}
			}
			logger.Info("dashboard view", fields...)
			for _, row := range v.Watchlist {
				logger.Debug("watchlist row",
					zap.String("symbol", row.Symbol),
					zap.String("price", row.Price),
					zap.String("change", row.Change),
					zap.String("color", string(row.ChangeColor)))
			}
		case <-stop:
			logger.Info("Shutdown signal received")
			sess.Close()
			logger.Info("Dashboard client exited cleanly")
			return
		}
	}
}
