package export_test

import (
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/export"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/testutils"
	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

func TestPublisher_KeysByTicker(t *testing.T) {
	writer := &testutils.MockKafkaWriter{}
	pub := export.NewPublisher(writer, zap.NewNop())

	price := models.PricePoint{Ticker: "AAPL", Price: 175.5, Timestamp: 1, Change: 0.5, ChangePercent: 0.29}
	pub.Publish(price)

	writer.Mu.Lock()
	defer writer.Mu.Unlock()

	if len(writer.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(writer.Messages))
	}
	msg := writer.Messages[0]
	if string(msg.Key) != "AAPL" {
		t.Errorf("Message must be keyed by ticker, got %q", msg.Key)
	}

	var decoded models.PricePoint
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("Published invalid JSON: %v", err)
	}
	if decoded != price {
		t.Errorf("Round-tripped price mismatch: %+v vs %+v", decoded, price)
	}
}

func TestPublisher_WriteErrorIsSwallowed(t *testing.T) {
	writer := &testutils.MockKafkaWriter{Err: errors.New("broker down")}
	pub := export.NewPublisher(writer, zap.NewNop())

	// Must log and return; a broker failure never reaches the feed.
	pub.Publish(models.PricePoint{Ticker: "TSLA", Price: 180})
}
