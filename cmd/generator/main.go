package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/generator/internal/generator"
	"github.com/seanzhanng/tradestream/pkg/config"
	"github.com/seanzhanng/tradestream/pkg/metrics"
)

// Starting prices for the well-known symbols; anything else walks from 100.
var basePrices = map[string]float64{
	"AAPL": 190.0,
	"MSFT": 420.0,
	"AMZN": 180.0,
	"TSLA": 250.0,
	"GOOG": 175.0,
}

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

	// Ensure the topic exists before the first write.
	creator := generator.NewTopicCreator(logger, &generator.RealKafkaDialer{Dialer: kafka.DefaultDialer}, generator.RealClock{})
	creator.Create(cfg.Kafka.Brokers, cfg.Kafka.Topic, 4)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
		// Batching keeps network IO off the tick cadence.
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	metrics.NewServer(cfg.App.MetricsPort).Start()

	gen := generator.NewTickGenerator(
		logger,
		writer,
		cfg.Generator.Symbols,
		basePrices,
		generator.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		generator.RealClock{},
		time.Duration(cfg.Generator.IntervalMs)*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go gen.Run(ctx)

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	// Flush the async writer buffer before exiting.
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
