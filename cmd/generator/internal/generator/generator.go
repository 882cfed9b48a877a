package generator

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/pkg/metrics"
	"github.com/seanzhanng/tradestream/pkg/models"
)

const (
	// Random walk shape: gaussian step as a fraction of the base price,
	// pull-back toward the base, and a hard band around it.
	stepSigma     = 0.002
	meanReversion = 0.05
	maxDeviation  = 0.10

	minVolume = 10
	maxVolume = 1000
)

var ticksEmitted = metrics.NewCounterVec(prometheus.CounterOpts{
	Name: "generator_ticks_emitted_total",
	Help: "Ticks written to Kafka, by symbol.",
}, []string{"symbol"})

// TickGenerator produces a synthetic tick stream: each symbol follows a
// mean-reverting random walk around its base price.
type TickGenerator struct {
	logger   *zap.Logger
	writer   KafkaWriter
	symbols  []string
	base     map[string]float64
	prices   map[string]float64
	rand     Rand
	clock    Clock
	interval time.Duration
}

func NewTickGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	symbols []string,
	basePrices map[string]float64,
	rnd Rand,
	clock Clock,
	interval time.Duration,
) *TickGenerator {
	prices := make(map[string]float64, len(symbols))
	base := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		b, ok := basePrices[sym]
		if !ok || b <= 0 {
			b = 100.0
		}
		base[sym] = b
		prices[sym] = b
	}
	return &TickGenerator{
		logger:   logger,
		writer:   writer,
		symbols:  symbols,
		base:     base,
		prices:   prices,
		rand:     rnd,
		clock:    clock,
		interval: interval,
	}
}

func (g *TickGenerator) Run(ctx context.Context) {
	g.logger.Info("Generator Started", zap.Strings("symbols", g.symbols))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(g.symbols) == 0 {
				g.clock.Sleep(1 * time.Second)
				continue
			}

			now := g.clock.Now()
			for _, symbol := range g.symbols {
				tick := g.nextTick(symbol, now)
				payload, _ := json.Marshal(tick) // Error ignored for simplicity in loop

				err := g.writer.WriteMessages(ctx, kafka.Message{
					Key:   []byte(symbol), // Key ensures partition ordering
					Value: payload,
				})
				if err != nil {
					g.logger.Error("Kafka Write Error", zap.Error(err))
					continue
				}
				ticksEmitted.WithLabelValues(symbol).Inc()
			}

			g.clock.Sleep(g.interval)
		}
	}
}

// nextTick advances the symbol's walk by one step and snapshots it.
func (g *TickGenerator) nextTick(symbol string, now time.Time) models.Tick {
	base := g.base[symbol]
	price := g.prices[symbol]

	price += g.rand.NormFloat64() * base * stepSigma
	price += (base - price) * meanReversion

	low, high := base*(1-maxDeviation), base*(1+maxDeviation)
	price = math.Max(low, math.Min(high, price))

	g.prices[symbol] = price

	return models.Tick{
		Symbol:    symbol,
		Price:     math.Round(price*100) / 100,
		Volume:    int64(minVolume + g.rand.Intn(maxVolume-minVolume)),
		Timestamp: float64(now.UnixMilli()) / 1000.0,
	}
}
