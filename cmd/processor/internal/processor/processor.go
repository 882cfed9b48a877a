package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/pkg/config"
	"github.com/seanzhanng/tradestream/pkg/metrics"
	"github.com/seanzhanng/tradestream/pkg/models"
)

const (
	tickKeyPrefix          = "ticks:"
	tickChannelPrefix      = "ticks."
	analyticsChannelPrefix = "analytics."
	historyRetention       = 24 * time.Hour
)

var (
	ticksProcessed = metrics.NewCounter(prometheus.CounterOpts{
		Name: "processor_ticks_processed_total",
		Help: "Ticks written to the store and published.",
	})
	ticksDropped = metrics.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_ticks_dropped_total",
		Help: "Ticks discarded before processing, by reason.",
	}, []string{"reason"})
	analyticsPublished = metrics.NewCounter(prometheus.CounterOpts{
		Name: "processor_analytics_published_total",
		Help: "Analytics snapshots published.",
	})
)

// Processor consumes raw ticks from Kafka, persists them into the per-symbol
// history sets, republishes them on the live channel and derives rolling
// analytics. Symbols are sharded across workers by key hash so each symbol
// is always handled by the same worker, which keeps per-symbol state local.
type Processor struct {
	cfg        *config.Config
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	numWorkers int

	analyticsWindow  time.Duration
	analyticsCadence time.Duration
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	return &Processor{
		cfg:              cfg,
		logger:           logger,
		rdb:              rdb,
		reader:           reader,
		numWorkers:       cfg.Processor.NumWorkers,
		analyticsWindow:  time.Duration(cfg.Processor.AnalyticsWindowS) * time.Second,
		analyticsCadence: time.Duration(cfg.Processor.AnalyticsCadenceS) * time.Second,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, 100)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	go func() {
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Deterministic sharding: same symbol always goes to same worker
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				ticksDropped.WithLabelValues("backpressure").Inc()
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	ctx := context.Background()

	// Per-worker state, safe without locks thanks to deterministic sharding.
	lastTS := make(map[string]float64)
	windows := make(map[string]*window)
	lastPublish := make(map[string]time.Time)

	for payload := range msgs {
		var raw models.RawTickRecord
		if err := json.Unmarshal(payload, &raw); err != nil {
			ticksDropped.WithLabelValues("malformed").Inc()
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		tick, err := raw.Normalize("")
		if err != nil {
			ticksDropped.WithLabelValues("no_timestamp").Inc()
			p.logger.Warn("Dropping tick without usable timestamp", zap.String("symbol", raw.Symbol))
			continue
		}
		if tick.Symbol == "" {
			ticksDropped.WithLabelValues("no_symbol").Inc()
			continue
		}

		// At-least-once delivery: a redelivered or out-of-order tick has a
		// timestamp at or before the last one processed for its symbol.
		if last, seen := lastTS[tick.Symbol]; seen && tick.Timestamp <= last {
			ticksDropped.WithLabelValues("duplicate").Inc()
			p.logger.Debug("Skipping duplicate tick", zap.String("symbol", tick.Symbol), zap.Float64("timestamp", tick.Timestamp))
			continue
		}

		if err := p.storeAndPublish(ctx, tick); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", tick.Symbol))
			continue
		}
		lastTS[tick.Symbol] = tick.Timestamp
		ticksProcessed.Inc()
		p.logger.Debug("Processed", zap.String("symbol", tick.Symbol), zap.Int("worker_id", id))

		w, exists := windows[tick.Symbol]
		if !exists {
			w = newWindow(p.analyticsWindow)
			windows[tick.Symbol] = w
		}
		w.add(tick)

		if now := time.Now(); now.Sub(lastPublish[tick.Symbol]) >= p.analyticsCadence {
			if snap, ok := w.snapshot(); ok {
				if err := p.publishAnalytics(ctx, snap); err != nil {
					p.logger.Error("Analytics Publish Error", zap.Error(err), zap.String("symbol", tick.Symbol))
				} else {
					analyticsPublished.Inc()
					lastPublish[tick.Symbol] = now
				}
			}
		}
	}
}

// storeAndPublish appends the tick to the symbol's history set, trims
// entries past the retention horizon and republishes on the live channel,
// all in one pipeline.
func (p *Processor) storeAndPublish(ctx context.Context, tick models.Tick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return err
	}

	key := tickKeyPrefix + tick.Symbol
	scoreMs := tick.Timestamp * 1000
	horizon := scoreMs - historyRetention.Seconds()*1000

	pipe := p.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: scoreMs, Member: string(payload)})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(horizon, 'f', 0, 64))
	pipe.Publish(ctx, tickChannelPrefix+tick.Symbol, payload)

	_, err = pipe.Exec(ctx)
	return err
}

func (p *Processor) publishAnalytics(ctx context.Context, snap models.AnalyticsSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, analyticsChannelPrefix+snap.Symbol, payload)
	_, err = pipe.Exec(ctx)
	return err
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32()) % numWorkers
}
