package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/gateway/internal/api"
	"github.com/seanzhanng/tradestream/cmd/gateway/internal/hub"
	"github.com/seanzhanng/tradestream/cmd/gateway/internal/repository"
	"github.com/seanzhanng/tradestream/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, _ := config.NewLogger(cfg.App.Env)
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	repo := repository.NewRedisStore(rdb)
	defer repo.Close()

	wsHub := hub.NewHub(repo, logger)

	srv := &http.Server{
		Addr:    cfg.App.Port,
		Handler: api.NewMux(repo, wsHub, logger),
	}

	go func() {
		logger.Info("Gateway started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	srv.Shutdown(context.Background())
	logger.Info("Shutdown Complete")
}
