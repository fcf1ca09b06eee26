package export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

// KafkaWriter abstracts the output stream for deterministic testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher mirrors every price update onto a Kafka topic for downstream
// consumers. It is a plain feed subscriber; a write failure is logged and
// never reaches the feed or the connected clients.
type Publisher struct {
	writer KafkaWriter
	logger *zap.Logger
}

func NewPublisher(writer KafkaWriter, logger *zap.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

// Publish writes one update, keyed by ticker so per-ticker ordering
// survives partitioning.
func (p *Publisher) Publish(price models.PricePoint) {
	payload, err := json.Marshal(price)
	if err != nil {
		p.logger.Error("Failed to encode price for export", zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(price.Ticker),
		Value: payload,
	})
	if err != nil {
		p.logger.Error("Kafka Write Error", zap.String("ticker", price.Ticker), zap.Error(err))
	}
}

func (p *Publisher) Close() error { return p.writer.Close() }

// NewWriter builds the production writer, batched and async so a slow
// broker cannot stall the tick sweep.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
}
