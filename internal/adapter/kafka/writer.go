// Package kafka publishes ingested health facts as events for downstream
// consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/health-data-etl-service/internal/config"
	"github.com/couchcryptid/health-data-etl-service/internal/domain"
)

// Writer produces fact events to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured facts topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaFactsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishFacts serializes and publishes multiple facts in a single
// WriteMessages call for efficiency.
func (w *Writer) PublishFacts(ctx context.Context, facts []domain.HealthFact) error {
	if len(facts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(facts))
	for i := range facts {
		msg, err := serializeToMessage(facts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a HealthFact into a Kafka message. The key
// groups messages for the same country, indicator, and year on one partition.
func serializeToMessage(fact domain.HealthFact) (kafkago.Message, error) {
	data, err := json.Marshal(fact)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize health fact: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%s|%s|%d", fact.CountryCode, fact.Indicator, fact.Year)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "indicator", Value: []byte(fact.Indicator)},
			{Key: "ingested_at", Value: []byte(fact.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}
