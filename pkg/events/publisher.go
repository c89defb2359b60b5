package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/polaris-foundation/polaris-locations-api/config"
)

// Event names.
const (
	LocationsCreated = "locations.created"
	LocationUpdated  = "location.updated"
)

// LocationEvent is the message body written after a committed mutation.
type LocationEvent struct {
	Event string    `json:"event"`
	UUIDs []string  `json:"uuids"`
	Actor string    `json:"actor,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher writes location events to kafka.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(cfg *config.KafkaConfig) *Publisher {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Publish writes ev keyed by its first uuid so events for one location keep their order.
func (p *Publisher) Publish(ctx context.Context, ev LocationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var key []byte
	if len(ev.UUIDs) > 0 {
		key = []byte(ev.UUIDs[0])
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: body,
		Time:  ev.At,
	})
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
