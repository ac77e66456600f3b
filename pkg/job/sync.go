package job

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/huynhanx03/go-thumb/pkg/database"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
	"github.com/huynhanx03/go-thumb/pkg/tracing"
	"github.com/huynhanx03/go-thumb/pkg/unique"
)

// PartitionStore is the partition side of the fast store.
type PartitionStore interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	ClaimPartition(ctx context.Context, pendingKey, claimKey string) (bool, error)
	ReadPartition(ctx context.Context, key string) (map[string]int64, error)
	DeleteKeys(ctx context.Context, keys ...string) error
}

// Result summarizes one partition sync.
type Result struct {
	Date    string
	Keys    int // claimed keys processed and deleted
	Items   int // distinct items with a non-zero delta
	Applied int // batches written; replays of applied batches are not counted
}

// SyncJob moves pending toggle deltas of one date partition into the
// durable store.
type SyncJob struct {
	store   PartitionStore
	applier database.CountApplier
	ids     unique.Generator
	keys    keys.Keys
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	flight singleflight.Group
}

func NewSyncJob(store PartitionStore, applier database.CountApplier, ids unique.Generator, k keys.Keys, log *zap.Logger, m *metrics.Metrics) *SyncJob {
	return &SyncJob{
		store:   store,
		applier: applier,
		ids:     ids,
		keys:    k,
		log:     log.Named("sync"),
		metrics: m,
		tracer:  tracing.Tracer("job"),
	}
}

// SyncByDatePartition claims the pending partition of date, picks up any
// claimed keys an earlier run left behind, and applies them. Concurrent
// calls for the same date share one run; other dates run independently.
// The run is not cancelled when ctx is; only the wait is.
func (j *SyncJob) SyncByDatePartition(ctx context.Context, date string) (Result, error) {
	ch := j.flight.DoChan(date, func() (any, error) {
		return j.sync(context.WithoutCancel(ctx), date)
	})

	select {
	case res := <-ch:
		r, _ := res.Val.(Result)
		return r, res.Err
	case <-ctx.Done():
		return Result{Date: date}, ctx.Err()
	}
}

func (j *SyncJob) sync(ctx context.Context, date string) (res Result, err error) {
	ctx, span := j.tracer.Start(ctx, "SyncByDatePartition",
		trace.WithAttributes(attribute.String("thumb.partition", date)))
	start := time.Now()
	defer func() {
		j.metrics.ObserveSync(time.Since(start).Seconds())
		span.SetAttributes(attribute.Int("thumb.keys", res.Keys), attribute.Int("thumb.items", res.Items))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res.Date = date

	claimed, err := j.store.ScanKeys(ctx, j.keys.SyncingPatternFor(date))
	if err != nil {
		return res, err
	}
	if len(claimed) > 0 {
		j.log.Info("resuming claimed partitions", zap.String("date", date), zap.Strings("keys", claimed))
	}

	claimKey := j.keys.Syncing(date, j.ids.Generate())
	ok, err := j.store.ClaimPartition(ctx, j.keys.Pending(date), claimKey)
	if err != nil {
		return res, err
	}
	if ok {
		claimed = append(claimed, claimKey)
	}

	if len(claimed) == 0 {
		j.log.Debug("nothing to sync", zap.String("date", date))
		return res, nil
	}

	for _, key := range claimed {
		items, applied, kerr := j.syncKey(ctx, date, key)
		if kerr != nil {
			j.metrics.PartitionSynced(metrics.OutcomeError, 0)
			j.log.Error("partition sync failed, key kept for retry",
				zap.String("date", date),
				zap.String("key", key),
				zap.Error(kerr))
			err = multierr.Append(err, kerr)
			continue
		}

		res.Keys++
		res.Items += items
		if applied {
			res.Applied++
			j.metrics.PartitionSynced(metrics.OutcomeSuccess, items)
		} else {
			j.metrics.PartitionSynced(metrics.OutcomeNoop, 0)
		}
	}

	j.log.Info("partition synced",
		zap.String("date", date),
		zap.Int("keys", res.Keys),
		zap.Int("items", res.Items),
		zap.Int("applied", res.Applied))
	return res, err
}

// syncKey applies one claimed key under the batch id embedded in it, so a
// retry after a crash between apply and delete is a no-op for the store.
func (j *SyncJob) syncKey(ctx context.Context, date, key string) (items int, applied bool, err error) {
	batchID, ok := j.keys.BatchIDOf(key)
	if !ok {
		j.log.Warn("claimed key without batch id, generating one", zap.String("key", key))
		batchID = j.ids.Generate()
	}

	fields, err := j.store.ReadPartition(ctx, key)
	if err != nil {
		return 0, false, err
	}

	batch := j.buildBatch(batchID, date, fields)
	if !batch.Empty() {
		if applied, err = j.applier.ApplyBatch(ctx, batch); err != nil {
			return 0, false, err
		}
	}

	if err := j.store.DeleteKeys(ctx, key); err != nil {
		return 0, applied, err
	}
	return len(batch.Deltas), applied, nil
}

// buildBatch aggregates {user}:{item} -> delta fields into per-item deltas
// and relation changes. A positive net delta is a like, a negative one an
// unlike, zero leaves the relation as it was. Each relation carries the
// stamp of its latest toggle.
func (j *SyncJob) buildBatch(id int64, date string, fields map[string]int64) *database.Batch {
	batch := &database.Batch{
		ID:        id,
		Partition: date,
		Deltas:    make(map[int64]int64),
	}

	stamps := make(map[string]int64)
	for field, v := range fields {
		if pair, ok := keys.PairOfStamp(field); ok {
			stamps[pair] = v
		}
	}

	for field, delta := range fields {
		if _, ok := keys.PairOfStamp(field); ok || delta == 0 {
			continue
		}
		userID, itemID, err := keys.ParsePairField(field)
		if err != nil {
			j.log.Warn("skipping malformed field", zap.String("field", field), zap.Error(err))
			continue
		}

		batch.Deltas[itemID] += delta
		rel := database.Relation{UserID: userID, ItemID: itemID, At: stamps[field]}
		if delta > 0 {
			batch.Likes = append(batch.Likes, rel)
		} else {
			batch.Unlikes = append(batch.Unlikes, rel)
		}
	}

	for id, d := range batch.Deltas {
		if d == 0 {
			delete(batch.Deltas, id)
		}
	}
	return batch
}
