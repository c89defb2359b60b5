package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polaris-foundation/polaris-locations-api/config"
)

func TestNewPublisher_DisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewPublisher(&config.KafkaConfig{Topic: "location.changed"}))
}

func TestNewPublisher_ConfiguresWriter(t *testing.T) {
	p := NewPublisher(&config.KafkaConfig{
		Brokers: []string{"kafka-1:9092", "kafka-2:9092"},
		Topic:   "location.changed",
	})
	require.NotNil(t, p)
	assert.Equal(t, "location.changed", p.writer.Topic)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", p.writer.Addr.String())
}
