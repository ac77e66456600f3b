package kafka

import (
	"github.com/IBM/sarama"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const (
	defaultTimeout           = 5   // seconds
	defaultRetryBackoff      = 100 // millis
	defaultMaxProcessingTime = 1000
	clientID                 = "go-thumb"
)

// NewProducerConfig builds an async producer config. Errors are always
// returned so failed deliveries can be compensated.
func NewProducerConfig(cfg *settings.Kafka) *sarama.Config {
	c := sarama.NewConfig()
	c.ClientID = clientID

	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Partitioner = sarama.NewHashPartitioner
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Return.Errors = true
	c.Producer.Return.Successes = true

	c.Producer.Timeout = utils.ToDuration(orDefault(cfg.Timeout, defaultTimeout))
	c.Producer.Retry.Max = cfg.MaxRetries
	c.Producer.Retry.Backoff = utils.ToDurationMs(orDefault(cfg.RetryBackoff, defaultRetryBackoff))

	if cfg.FlushFrequency > 0 {
		c.Producer.Flush.Frequency = utils.ToDurationMs(cfg.FlushFrequency)
	}
	if cfg.FlushBytes > 0 {
		c.Producer.Flush.Bytes = cfg.FlushBytes
	}
	if cfg.MaxMessageBytes > 0 {
		c.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}
	return c
}

// NewConsumerConfig builds a consumer group config that starts from the
// oldest offset and commits only what handlers mark.
func NewConsumerConfig(cfg *settings.Kafka) *sarama.Config {
	c := sarama.NewConfig()
	c.ClientID = clientID

	c.Consumer.Return.Errors = true
	c.Consumer.Offsets.Initial = sarama.OffsetOldest
	c.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	c.Consumer.MaxProcessingTime = utils.ToDurationMs(orDefault(cfg.MaxProcessingTime, defaultMaxProcessingTime))
	return c
}

// NewAsyncProducer connects an async producer to cfg.Brokers.
func NewAsyncProducer(cfg *settings.Kafka) (sarama.AsyncProducer, error) {
	p, err := sarama.NewAsyncProducer(cfg.Brokers, NewProducerConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return p, nil
}

// NewConsumerGroup joins cfg.GroupID on cfg.Brokers.
func NewConsumerGroup(cfg *settings.Kafka) (sarama.ConsumerGroup, error) {
	g, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, NewConsumerConfig(cfg))
	if err != nil {
		return nil, errors.Wrapf(err, "join consumer group %s", cfg.GroupID)
	}
	return g, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
