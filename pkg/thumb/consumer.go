package thumb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/job"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
)

const (
	defaultConsumerBatchSize     = 1000
	defaultConsumerBatchInterval = 10 * time.Second
)

// PartitionSyncer flushes one date partition to the durable store.
type PartitionSyncer interface {
	SyncByDatePartition(ctx context.Context, date string) (job.Result, error)
}

type ConsumerConfig struct {
	BatchSize     int
	BatchInterval time.Duration
}

// Consumer reads toggle events in batches and syncs the partitions they
// touched. Offsets are marked only after every partition in the batch
// synced, so a failed batch is retried on the next flush.
type Consumer struct {
	syncer  PartitionSyncer
	cfg     ConsumerConfig
	keys    keys.Keys
	log     *zap.Logger
	metrics *metrics.Metrics
}

var _ sarama.ConsumerGroupHandler = (*Consumer)(nil)

func NewConsumer(syncer PartitionSyncer, cfg ConsumerConfig, k keys.Keys, log *zap.Logger, m *metrics.Metrics) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultConsumerBatchSize
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = defaultConsumerBatchInterval
	}
	return &Consumer{syncer: syncer, cfg: cfg, keys: k, log: log.Named("consumer"), metrics: m}
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ticker := time.NewTicker(c.cfg.BatchInterval)
	defer ticker.Stop()

	batch := make([]*sarama.ConsumerMessage, 0, c.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.process(sess.Context(), batch); err != nil {
			c.log.Error("batch sync failed, will retry",
				zap.Int32("partition", claim.Partition()),
				zap.Int("messages", len(batch)),
				zap.Error(err))
			return
		}
		sess.MarkMessage(batch[len(batch)-1], "")
		batch = batch[:0]
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= c.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, batch []*sarama.ConsumerMessage) error {
	c.metrics.EventsConsumed(len(batch))

	for _, date := range c.dates(batch) {
		if _, err := c.syncer.SyncByDatePartition(ctx, date); err != nil {
			return err
		}
	}
	return nil
}

// dates returns the distinct partitions of the decodable events, oldest
// first. Undecodable messages are logged and skipped.
func (c *Consumer) dates(batch []*sarama.ConsumerMessage) []string {
	seen := make(map[string]struct{})
	for _, msg := range batch {
		var ev ToggleEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Warn("skipping undecodable event",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		seen[c.keys.Partition(ev.EventTime)] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
