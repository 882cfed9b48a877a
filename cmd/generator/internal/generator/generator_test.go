package generator_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/generator/internal/generator"
	"github.com/seanzhanng/tradestream/cmd/generator/internal/testutils"
	"github.com/seanzhanng/tradestream/pkg/models"
)

func TestGenerator_Logic(t *testing.T) {
	logger := zap.NewNop()
	mockWriter := &testutils.MockKafkaWriter{}

	// Fix randomness: zero gaussian step keeps the walk exactly at base.
	mockRand := &testutils.MockRand{ValInt: 0, ValNorm: 0}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(1700000000, 0)}

	symbols := []string{"AAPL"}
	basePrices := map[string]float64{"AAPL": 100.0}

	gen := generator.NewTickGenerator(logger, mockWriter, symbols, basePrices, mockRand, mockClock, 250*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gen.Run(ctx)

	mockWriter.Mu.Lock()
	defer mockWriter.Mu.Unlock()

	if len(mockWriter.Messages) == 0 {
		t.Fatal("Expected messages to be generated")
	}

	var tick models.Tick
	if err := json.Unmarshal(mockWriter.Messages[0].Value, &tick); err != nil {
		t.Fatalf("Generated invalid JSON: %v", err)
	}

	if tick.Symbol != "AAPL" {
		t.Errorf("Expected AAPL, got %s", tick.Symbol)
	}
	// With a zero step and price at base, mean reversion moves nothing.
	if tick.Price != 100.0 {
		t.Errorf("Expected Price 100.0, got %f", tick.Price)
	}
	if tick.Timestamp != 1700000000 {
		t.Errorf("Expected epoch-seconds timestamp, got %f", tick.Timestamp)
	}
	if string(mockWriter.Messages[0].Key) != "AAPL" {
		t.Errorf("Message key should be the symbol for partition ordering")
	}
}

func TestGenerator_ClampsDeviation(t *testing.T) {
	logger := zap.NewNop()
	mockWriter := &testutils.MockKafkaWriter{}

	// A huge positive step on every tick must pin the price at the band cap.
	mockRand := &testutils.MockRand{ValInt: 0, ValNorm: 1000}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}

	gen := generator.NewTickGenerator(logger, mockWriter, []string{"AAPL"},
		map[string]float64{"AAPL": 100.0}, mockRand, mockClock, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gen.Run(ctx)

	mockWriter.Mu.Lock()
	defer mockWriter.Mu.Unlock()

	if len(mockWriter.Messages) < 2 {
		t.Fatal("Expected several messages")
	}
	last := mockWriter.Messages[len(mockWriter.Messages)-1]
	var tick models.Tick
	json.Unmarshal(last.Value, &tick)
	if tick.Price > 110.0 {
		t.Errorf("Price escaped the deviation band: %f", tick.Price)
	}
}

func TestGenerator_UnknownSymbolDefaultsBase(t *testing.T) {
	logger := zap.NewNop()
	mockWriter := &testutils.MockKafkaWriter{}
	mockRand := &testutils.MockRand{}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}

	gen := generator.NewTickGenerator(logger, mockWriter, []string{"ZZZZ"},
		nil, mockRand, mockClock, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gen.Run(ctx)

	mockWriter.Mu.Lock()
	defer mockWriter.Mu.Unlock()
	if len(mockWriter.Messages) == 0 {
		t.Fatal("Expected messages for an unknown symbol")
	}
	var tick models.Tick
	json.Unmarshal(mockWriter.Messages[0].Value, &tick)
	if tick.Price != 100.0 {
		t.Errorf("Unknown symbols should walk from 100, got %f", tick.Price)
	}
}

func TestTopicCreator_Flow(t *testing.T) {
	logger := zap.NewNop()
	mockDialer := &testutils.MockKafkaDialer{} // Will auto-create ConnSpy
	mockClock := &testutils.MockClock{}

	tc := generator.NewTopicCreator(logger, mockDialer, mockClock)

	tc.Create([]string{"broker:9092"}, "my-topic", 4)

	if mockDialer.ConnSpy == nil {
		t.Fatal("Dialer was never called")
	}
	if len(mockDialer.ConnSpy.CreatedTopics) == 0 {
		t.Error("No topics created")
	}
	if mockDialer.ConnSpy.CreatedTopics[0] != "my-topic" {
		t.Errorf("Expected topic 'my-topic', got %s", mockDialer.ConnSpy.CreatedTopics[0])
	}
}
