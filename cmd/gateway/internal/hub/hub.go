package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/gateway/internal/repository"
)

type ClientInterface interface {
	ID() string
	SendBytes(b []byte)
	Close()
}

// Hub fans Redis pubsub messages out to websocket clients. A client's
// channel set is fixed at connect time (it comes from the request query),
// so there is no subscription protocol: Register on accept, Unregister on
// disconnect. Upstream Redis subscriptions are reference counted across
// clients so each channel is subscribed at most once.
type Hub struct {
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool

	store    repository.FeedStore
	logger   *zap.Logger
	mu       sync.RWMutex
	refCount map[string]int
}

func NewHub(store repository.FeedStore, logger *zap.Logger) *Hub {
	h := &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		store:       store,
		logger:      logger,
		refCount:    make(map[string]int),
	}

	go h.store.RunPubSub(context.Background(), h.Broadcast)

	return h
}

// Register attaches a client to its channels for the connection's lifetime.
// Registering the same channel twice for one client is a no-op.
func (h *Hub) Register(client ClientInterface, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}

	for _, ch := range channels {
		if h.clientSubs[client][ch] {
			continue
		}
		h.clientSubs[client][ch] = true
		if h.subscribers[ch] == nil {
			h.subscribers[ch] = make(map[ClientInterface]bool)
		}
		h.subscribers[ch][client] = true

		// Manage upstream subscription (ref counting)
		h.refCount[ch]++
		if h.refCount[ch] == 1 {
			if err := h.store.SubscribeToFeed(context.Background(), ch); err != nil {
				h.logger.Error("Failed to subscribe upstream", zap.String("channel", ch), zap.Error(err))
			}
		}
	}
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for ch := range subs {
			delete(h.subscribers[ch], client)
			h.decreaseRefCount(ch)
		}
		delete(h.clientSubs, client)
	}
	client.Close()
}

func (h *Hub) Broadcast(channel string, payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.subscribers[channel]; ok {
		msgBytes := []byte(payload)
		for client := range clients {
			client.SendBytes(msgBytes)
		}
	}
}

func (h *Hub) decreaseRefCount(channel string) {
	h.refCount[channel]--
	if h.refCount[channel] <= 0 {
		if err := h.store.UnsubscribeFromFeed(context.Background(), channel); err != nil {
			h.logger.Error("Failed to unsubscribe upstream", zap.String("channel", channel), zap.Error(err))
		}
		delete(h.refCount, channel)
		delete(h.subscribers, channel)
	}
}
