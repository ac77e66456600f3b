package job

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
	"github.com/huynhanx03/go-thumb/pkg/tracing"
)

// Syncer is the part of SyncJob the sweep drives.
type Syncer interface {
	SyncByDatePartition(ctx context.Context, date string) (Result, error)
}

// KeyScanner lists fast-store keys by pattern.
type KeyScanner interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// Reconciler finds every partition that still holds pending or claimed
// data and syncs it. It never deletes keys itself.
type Reconciler struct {
	scanner KeyScanner
	syncer  Syncer
	keys    keys.Keys
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewReconciler(scanner KeyScanner, syncer Syncer, k keys.Keys, log *zap.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		scanner: scanner,
		syncer:  syncer,
		keys:    k,
		log:     log.Named("reconcile"),
		metrics: m,
		tracer:  tracing.Tracer("job"),
	}
}

// Run scans all partitions first, then syncs each distinct date one at a
// time, oldest first. A failing date does not stop the others; all errors
// are returned together once every date was tried.
func (r *Reconciler) Run(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "Reconcile")
	defer span.End()

	start := time.Now()
	defer func() { r.metrics.ObserveSweep(time.Since(start).Seconds()) }()

	dates, err := r.dates(ctx)
	if err != nil {
		r.log.Error("sweep scan failed", zap.Error(err))
		return err
	}
	span.SetAttributes(attribute.Int("thumb.partitions", len(dates)))

	if len(dates) == 0 {
		r.log.Info("no partitions to reconcile")
		return nil
	}
	r.log.Info("reconciling partitions", zap.Strings("dates", dates))

	for _, date := range dates {
		if ctx.Err() != nil {
			return multierr.Append(err, ctx.Err())
		}
		res, serr := r.syncer.SyncByDatePartition(ctx, date)
		if serr != nil {
			r.log.Error("reconcile partition failed", zap.String("date", date), zap.Error(serr))
			err = multierr.Append(err, serr)
			continue
		}
		r.log.Debug("reconciled partition",
			zap.String("date", date),
			zap.Int("keys", res.Keys),
			zap.Int("applied", res.Applied))
	}
	return err
}

// dates returns the distinct partition dates present in the fast store,
// oldest first.
func (r *Reconciler) dates(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range []string{r.keys.PendingPattern(), r.keys.SyncingPattern()} {
		found, err := r.scanner.ScanKeys(ctx, pattern)
		if err != nil {
			return nil, err
		}
		for _, key := range found {
			if date, ok := r.keys.DateOf(key); ok {
				seen[date] = struct{}{}
			} else {
				r.log.Warn("ignoring key outside the partition scheme", zap.String("key", key))
			}
		}
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}
