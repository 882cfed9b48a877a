package repository

import (
	"context"
	"time"
)

// FeedStore is the read-side contract the gateway needs from the tick store:
// historical lookups for the REST API and a fan-in pubsub feed for the hub.
type FeedStore interface {
	History(ctx context.Context, symbol string, lookback time.Duration) ([]string, error)
	Baselines(ctx context.Context, symbols []string, now time.Time) (map[string]float64, error)
	SubscribeToFeed(ctx context.Context, channel string) error
	UnsubscribeFromFeed(ctx context.Context, channel string) error
	RunPubSub(ctx context.Context, onMessage func(channel string, payload string))
	Close() error
}
