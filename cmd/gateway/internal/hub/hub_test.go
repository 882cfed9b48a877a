package hub_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/gateway/internal/hub"
	"github.com/seanzhanng/tradestream/cmd/gateway/internal/testutils"
)

func setup() (*hub.Hub, *testutils.MockFeedStore) {
	store := testutils.NewMockStore()
	return hub.NewHub(store, zap.NewNop()), store
}

func TestHub_Register_SubscribesUpstreamOnce(t *testing.T) {
	h, store := setup()
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")

	h.Register(c1, []string{"ticks.AAPL", "ticks.TSLA"})
	h.Register(c2, []string{"ticks.AAPL"})

	if store.SubCount("ticks.AAPL") != 1 {
		t.Errorf("Expected a single upstream subscription for ticks.AAPL, got %d", store.SubCount("ticks.AAPL"))
	}
	if store.SubCount("ticks.TSLA") != 1 {
		t.Errorf("Expected upstream subscription for ticks.TSLA")
	}
}

func TestHub_Register_Idempotent(t *testing.T) {
	h, store := setup()
	client := testutils.NewMockClient("c1")

	h.Register(client, []string{"ticks.AAPL"})
	h.Register(client, []string{"ticks.AAPL"})

	if store.SubCount("ticks.AAPL") != 1 {
		t.Errorf("Duplicate registration must not subscribe upstream twice")
	}
}

func TestHub_Broadcast_OnlyToSubscribedChannel(t *testing.T) {
	h, _ := setup()
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")

	h.Register(c1, []string{"ticks.AAPL"})
	h.Register(c2, []string{"analytics.AAPL"})

	h.Broadcast("ticks.AAPL", `{"symbol":"AAPL","price":150}`)

	if len(c1.Frames()) != 1 {
		t.Errorf("Tick subscriber should have received the frame")
	}
	if len(c2.Frames()) != 0 {
		t.Errorf("Analytics subscriber must not receive tick frames")
	}
}

func TestHub_Unregister_ReleasesUpstream(t *testing.T) {
	h, store := setup()
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")

	h.Register(c1, []string{"ticks.AAPL"})
	h.Register(c2, []string{"ticks.AAPL"})

	h.Unregister(c1)
	if store.SubCount("ticks.AAPL") != 1 {
		t.Errorf("Upstream subscription should survive while another client remains")
	}
	if !c1.Closed {
		t.Errorf("Unregistered client should be closed")
	}

	h.Unregister(c2)
	if store.SubCount("ticks.AAPL") != 0 {
		t.Errorf("Last unregister should release the upstream subscription")
	}
}

func TestHub_Broadcast_AfterUnregister(t *testing.T) {
	h, _ := setup()
	client := testutils.NewMockClient("c1")

	h.Register(client, []string{"ticks.AAPL"})
	h.Unregister(client)
	h.Broadcast("ticks.AAPL", `{"symbol":"AAPL","price":150}`)

	if len(client.Frames()) != 0 {
		t.Errorf("Unregistered client must not receive frames")
	}
}

func TestHub_RaceCondition(t *testing.T) {
	// Run with `go test -race ./...`
	h, _ := setup()
	client := testutils.NewMockClient("c1")

	go func() {
		h.Register(client, []string{"ticks.AAPL"})
	}()
	go func() {
		h.Broadcast("ticks.AAPL", `{"symbol":"AAPL","price":1}`)
	}()
	go func() {
		h.Unregister(client)
	}()
}
