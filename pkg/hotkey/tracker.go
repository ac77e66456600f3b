package hotkey

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/datastructs/topk"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/mq/batcher"
)

const defaultDrainInterval = time.Second

type Config struct {
	StripeSize    int
	DrainInterval time.Duration
}

// Tracker feeds item accesses to a HeavyKeeper through a striped batcher,
// so the estimator sees one Add per distinct key per flushed batch.
type Tracker struct {
	hk       *topk.HeavyKeeper
	feed     *batcher.StripedBatcher[string]
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewTracker batches accesses in stripes of cfg.StripeSize. A stripe
// reaches the estimator when it fills up or, for partly filled stripes, on
// the next drain tick of Run, so a quiet node lags by at most one
// DrainInterval.
func NewTracker(hk *topk.HeavyKeeper, cfg Config, log *zap.Logger, m *metrics.Metrics) *Tracker {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = defaultDrainInterval
	}
	t := &Tracker{
		hk:       hk,
		interval: cfg.DrainInterval,
		log:      log.Named("hotkey"),
		metrics:  m,
	}
	t.feed = batcher.New[string](batcher.ConsumerFunc[string](t.consume), batcher.Config{
		StripeSize: cfg.StripeSize,
		OnError: func(err error) {
			t.log.Warn("hot-key batch dropped", zap.Error(err))
		},
	})
	return t
}

// Record counts one access of itemID.
func (t *Tracker) Record(itemID int64) {
	t.feed.Push(strconv.FormatInt(itemID, 10))
}

func (t *Tracker) consume(batch []string) error {
	counts := make(map[string]uint32, len(batch))
	for _, key := range batch {
		counts[key]++
	}
	for key, n := range counts {
		t.hk.Add(key, n)
	}
	return nil
}

// Decay halves every count in the estimator.
func (t *Tracker) Decay(context.Context) error {
	t.hk.DecayAll()
	t.log.Debug("hot-key counts decayed", zap.Uint64("total", t.hk.Total()))
	return nil
}

// Hot returns the current hot set, hottest first.
func (t *Tracker) Hot() []topk.Item {
	return t.hk.List()
}

// IsHot reports whether itemID is in the hot set.
func (t *Tracker) IsHot(itemID int64) bool {
	return t.hk.Contains(strconv.FormatInt(itemID, 10))
}

// Run flushes buffered accesses and drains evictions every interval until
// ctx is done, then does both once more.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.feed.Flush()
			t.drain()
			return
		case <-ticker.C:
			t.feed.Flush()
			t.drain()
		}
	}
}

func (t *Tracker) drain() int {
	n := 0
	for item := range t.hk.DrainEvicted() {
		n++
		t.log.Debug("key left the hot set", zap.String("key", item.Key), zap.Uint32("count", item.Count))
	}
	if n > 0 {
		t.metrics.Evicted(n)
	}
	return n
}
