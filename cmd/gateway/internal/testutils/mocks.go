package testutils

import (
	"context"
	"sync"
	"time"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	RawBytes []string // Stores raw frames, in arrival order
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) Frames() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.RawBytes))
	copy(out, m.RawBytes)
	return out
}

// MockFeedStore simulates the Redis feed store
type MockFeedStore struct {
	SubscribedChannels map[string]int // channel -> count
	HistoryPayloads    map[string][]string
	BaselinePrices     map[string]float64
	Mu                 sync.Mutex
}

func NewMockStore() *MockFeedStore {
	return &MockFeedStore{
		SubscribedChannels: make(map[string]int),
		HistoryPayloads:    make(map[string][]string),
		BaselinePrices:     make(map[string]float64),
	}
}

func (m *MockFeedStore) History(ctx context.Context, symbol string, lookback time.Duration) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.HistoryPayloads[symbol], nil
}

func (m *MockFeedStore) Baselines(ctx context.Context, symbols []string, now time.Time) (map[string]float64, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make(map[string]float64)
	for _, sym := range symbols {
		if price, ok := m.BaselinePrices[sym]; ok {
			out[sym] = price
		}
	}
	return out, nil
}

func (m *MockFeedStore) SubscribeToFeed(ctx context.Context, channel string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[channel]++
	return nil
}

func (m *MockFeedStore) UnsubscribeFromFeed(ctx context.Context, channel string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[channel]--
	if m.SubscribedChannels[channel] <= 0 {
		delete(m.SubscribedChannels, channel)
	}
	return nil
}

func (m *MockFeedStore) RunPubSub(ctx context.Context, onMessage func(channel string, payload string)) {
	// No-op for unit tests
}

func (m *MockFeedStore) Close() error { return nil }

func (m *MockFeedStore) SubCount(channel string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.SubscribedChannels[channel]
}
