package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynhanx03/go-thumb/pkg/settings"
)

func TestNewProducerConfig(t *testing.T) {
	c := NewProducerConfig(&settings.Kafka{
		Timeout:         2,
		MaxRetries:      4,
		RetryBackoff:    250,
		FlushFrequency:  50,
		MaxMessageBytes: 2048,
	})

	require.NoError(t, c.Validate())
	assert.True(t, c.Producer.Return.Errors)
	assert.Equal(t, sarama.WaitForAll, c.Producer.RequiredAcks)
	assert.Equal(t, 2*time.Second, c.Producer.Timeout)
	assert.Equal(t, 4, c.Producer.Retry.Max)
	assert.Equal(t, 250*time.Millisecond, c.Producer.Retry.Backoff)
	assert.Equal(t, 50*time.Millisecond, c.Producer.Flush.Frequency)
	assert.Equal(t, 2048, c.Producer.MaxMessageBytes)
}

func TestNewProducerConfig_Defaults(t *testing.T) {
	c := NewProducerConfig(&settings.Kafka{})
	require.NoError(t, c.Validate())
	assert.Equal(t, 5*time.Second, c.Producer.Timeout)
	assert.Equal(t, 100*time.Millisecond, c.Producer.Retry.Backoff)
	assert.Equal(t, 0, c.Producer.Retry.Max)
}

func TestNewConsumerConfig(t *testing.T) {
	c := NewConsumerConfig(&settings.Kafka{MaxProcessingTime: 3000})
	require.NoError(t, c.Validate())
	assert.Equal(t, sarama.OffsetOldest, c.Consumer.Offsets.Initial)
	assert.Equal(t, 3*time.Second, c.Consumer.MaxProcessingTime)
}
