package processor_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/seanzhanng/tradestream/cmd/processor/internal/processor"
	"github.com/seanzhanng/tradestream/cmd/processor/internal/testutils"
	"github.com/seanzhanng/tradestream/pkg/config"
)

func testConfig(workers int) *config.Config {
	cfg := &config.Config{}
	cfg.Processor = config.ProcessorConfig{
		NumWorkers:        workers,
		AnalyticsWindowS:  300,
		AnalyticsCadenceS: 2,
	}
	return cfg
}

func tickMsg(symbol, body string) kafka.Message {
	return kafka.Message{Key: []byte(symbol), Value: []byte(body)}
}

func countPrefix(cmds []string, prefix string) int {
	n := 0
	for _, c := range cmds {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestProcessor_WorkerLogic(t *testing.T) {
	msgs := []kafka.Message{
		tickMsg("AAPL", `{"symbol":"AAPL","price":100,"volume":10,"timestamp":1700000000}`),
		tickMsg("AAPL", `{"symbol":"AAPL","price":100,"volume":10,"timestamp":1700000000}`), // duplicate
		tickMsg("AAPL", `{"symbol":"AAPL","price":101,"volume":10,"timestamp":1700000001}`),
		tickMsg("TSLA", `{"symbol":"TSLA","price":900,"volume":5,"timestamp":1700000000}`),
	}

	mockReader := &testutils.MockKafkaReader{Messages: msgs}
	mockRedis := testutils.NewMockRedisClient()

	proc := processor.NewProcessor(testConfig(2), zap.NewNop(), mockRedis, mockReader)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	proc.Run(ctx)

	cmds := mockRedis.PipelineSpy.Commands()

	if n := countPrefix(cmds, "ZADD ticks:AAPL"); n != 2 {
		t.Errorf("Expected 2 AAPL writes (duplicate skipped), got %d: %v", n, cmds)
	}
	if n := countPrefix(cmds, "ZADD ticks:TSLA"); n != 1 {
		t.Errorf("Expected 1 TSLA write, got %d", n)
	}
	if countPrefix(cmds, "PUBLISH ticks.AAPL") != 2 {
		t.Errorf("Each stored tick should be republished: %v", cmds)
	}
	if countPrefix(cmds, "ZREMRANGEBYSCORE ticks:AAPL") == 0 {
		t.Errorf("History writes must trim the retention horizon: %v", cmds)
	}
	if countPrefix(cmds, "PUBLISH analytics.AAPL") == 0 {
		t.Errorf("Expected an analytics snapshot for AAPL: %v", cmds)
	}
}

func TestProcessor_MillisecondTimestampPriority(t *testing.T) {
	// timestamp_ms wins over timestamp, so the second message is a duplicate
	// of the first even though the seconds field differs.
	msgs := []kafka.Message{
		tickMsg("AAPL", `{"symbol":"AAPL","price":100,"volume":1,"timestamp_ms":1700000000000,"timestamp":999}`),
		tickMsg("AAPL", `{"symbol":"AAPL","price":100,"volume":1,"timestamp_ms":1700000000000,"timestamp":1}`),
	}

	mockReader := &testutils.MockKafkaReader{Messages: msgs}
	mockRedis := testutils.NewMockRedisClient()
	proc := processor.NewProcessor(testConfig(1), zap.NewNop(), mockRedis, mockReader)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	proc.Run(ctx)

	if n := countPrefix(mockRedis.PipelineSpy.Commands(), "ZADD ticks:AAPL"); n != 1 {
		t.Errorf("Expected a single write, got %d", n)
	}
}

func TestProcessor_InvalidJSON(t *testing.T) {
	msgs := []kafka.Message{
		tickMsg("AAPL", "{broken-json"),
	}

	mockReader := &testutils.MockKafkaReader{Messages: msgs}
	mockRedis := testutils.NewMockRedisClient()
	proc := processor.NewProcessor(testConfig(1), zap.NewNop(), mockRedis, mockReader)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	proc.Run(ctx)

	if mockRedis.PipelineSpy.ExecCount > 0 {
		t.Error("Should not execute Redis commands for invalid JSON")
	}
}

func TestProcessor_DropsTickWithoutTimestamp(t *testing.T) {
	msgs := []kafka.Message{
		tickMsg("AAPL", `{"symbol":"AAPL","price":100,"volume":1}`),
	}

	mockReader := &testutils.MockKafkaReader{Messages: msgs}
	mockRedis := testutils.NewMockRedisClient()
	proc := processor.NewProcessor(testConfig(1), zap.NewNop(), mockRedis, mockReader)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	proc.Run(ctx)

	if mockRedis.PipelineSpy.ExecCount > 0 {
		t.Error("Ticks without a timestamp must be dropped before Redis")
	}
}
