package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seanzhanng/tradestream/pkg/models"
)

const tickKeyPrefix = "ticks:"

// Compile-time check to ensure RedisStore implements FeedStore
var _ FeedStore = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // Protects the shared pubsub subscription set
}

func NewRedisStore(client *redis.Client) *RedisStore {
	ps := client.Subscribe(context.Background())
	return &RedisStore{
		client: client,
		pubsub: ps,
	}
}

// History returns the raw tick payloads for a symbol within the lookback
// window, oldest first. Members are scored by timestamp in milliseconds.
func (r *RedisStore) History(ctx context.Context, symbol string, lookback time.Duration) ([]string, error) {
	minScore := time.Now().Add(-lookback).UnixMilli()
	return r.client.ZRangeByScore(ctx, tickKeyPrefix+symbol, &redis.ZRangeBy{
		Min: strconv.FormatInt(minScore, 10),
		Max: "+inf",
	}).Result()
}

// Baselines resolves each symbol's baseline price: the first tick recorded
// on or after midnight UTC of the given day. Symbols with no tick today are
// simply absent from the result.
func (r *RedisStore) Baselines(ctx context.Context, symbols []string, now time.Time) (map[string]float64, error) {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	minScore := strconv.FormatInt(midnight.UnixMilli(), 10)

	baselines := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		members, err := r.client.ZRangeByScore(ctx, tickKeyPrefix+sym, &redis.ZRangeBy{
			Min:   minScore,
			Max:   "+inf",
			Count: 1,
		}).Result()
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			continue
		}
		var tick models.Tick
		if err := json.Unmarshal([]byte(members[0]), &tick); err != nil {
			continue
		}
		baselines[sym] = tick.Price
	}
	return baselines, nil
}

// SubscribeToFeed tells Redis we want to listen to this channel
func (r *RedisStore) SubscribeToFeed(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, channel)
}

// UnsubscribeFromFeed tells Redis to stop sending messages for this channel
func (r *RedisStore) UnsubscribeFromFeed(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, channel)
}

// RunPubSub is a blocking loop that reads messages from Redis and triggers the callback
func (r *RedisStore) RunPubSub(ctx context.Context, onMessage func(channel string, payload string)) {
	ch := r.pubsub.Channel()
	for msg := range ch {
		onMessage(msg.Channel, msg.Payload)
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
