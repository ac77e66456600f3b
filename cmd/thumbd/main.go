package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/database"
	"github.com/huynhanx03/go-thumb/pkg/database/mongodb"
	"github.com/huynhanx03/go-thumb/pkg/database/postgres"
	"github.com/huynhanx03/go-thumb/pkg/database/redis"
	"github.com/huynhanx03/go-thumb/pkg/datastructs/topk"
	"github.com/huynhanx03/go-thumb/pkg/hotkey"
	"github.com/huynhanx03/go-thumb/pkg/job"
	"github.com/huynhanx03/go-thumb/pkg/logger"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/mq/kafka"
	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/thumb"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
	"github.com/huynhanx03/go-thumb/pkg/timer"
	"github.com/huynhanx03/go-thumb/pkg/tracing"
	"github.com/huynhanx03/go-thumb/pkg/unique"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config/local.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := settings.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("thumbd stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("thumbd stopped")
}

func run(ctx context.Context, cfg *settings.Config, log *zap.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}
	k := keys.New(cfg.Thumb.KeyPrefix, loc)

	clock := timer.NewCachedTimer(time.Millisecond)
	defer clock.Stop()

	ids, err := unique.NewSnowflakeNode(cfg.SnowflakeNode, clock)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Fast store.
	rdb, err := redis.NewConnection(&cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	store := redis.NewThumbStore(rdb.Client())

	// Durable store.
	applier, closeDB, err := openApplier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	// Hot keys.
	hk := topk.New(topk.Options{
		K:                cfg.HotKey.K,
		Width:            cfg.HotKey.Width,
		Depth:            cfg.HotKey.Depth,
		Decay:            cfg.HotKey.Decay,
		MinCount:         cfg.HotKey.MinCount,
		EvictionCapacity: cfg.HotKey.EvictionCapacity,
		SeededRows:       cfg.HotKey.SeededRows,
	})
	prometheus.MustRegister(metrics.NewHotSetCollector(hk))
	tracker := hotkey.NewTracker(hk, hotkey.Config{
		StripeSize:    cfg.HotKey.StripeSize,
		DrainInterval: utils.ToDurationMs(cfg.HotKey.DrainInterval),
	}, log, m)

	// Event bus.
	producer, err := kafka.NewAsyncProducer(&cfg.Kafka)
	if err != nil {
		return err
	}
	emitter := thumb.NewEmitter(producer, thumb.EmitterConfig{
		Topic:     cfg.Kafka.Topic,
		QueueSize: cfg.Kafka.EmitQueueSize,
	}, store, k, log, m)
	defer func() {
		if err := emitter.Close(); err != nil {
			log.Warn("emitter close", zap.Error(err))
		}
	}()

	group, err := kafka.NewConsumerGroup(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer func() { _ = group.Close() }()

	syncJob := job.NewSyncJob(store, applier, ids, k, log, m)
	reconciler := job.NewReconciler(store, syncJob, k, log, m)
	consumer := thumb.NewConsumer(syncJob, thumb.ConsumerConfig{
		BatchSize:     cfg.Kafka.ConsumerBatchSize,
		BatchInterval: utils.ToDurationMs(cfg.Kafka.ConsumerBatchInterval),
	}, k, log, m)

	sched := job.NewScheduler(ctx, loc, log)
	if err := sched.AddCron("sweep", cfg.Schedule.SweepCron, reconciler.Run); err != nil {
		return err
	}
	if err := sched.AddEvery("decay", utils.ToDuration(cfg.Schedule.DecayInterval), tracker.Decay); err != nil {
		return err
	}

	svc := thumb.NewService(store, emitter, tracker, k, clock, log, m)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           newRouter(cfg.Server.Mode, thumb.NewHandler(svc)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		tracker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		consume(ctx, group, cfg.Kafka.Topic, consumer, log)
	}()
	go func() {
		defer wg.Done()
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
		}
	}()
	sched.Start()

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	select {
	case <-sched.Stop().Done():
	case <-sctx.Done():
		log.Warn("scheduled jobs still running at shutdown")
	}
	wg.Wait()
	return nil
}

// openApplier connects the configured durable store and returns its applier
// with a release func.
func openApplier(ctx context.Context, cfg *settings.Config, log *zap.Logger) (database.CountApplier, func(), error) {
	switch cfg.Database.Driver {
	case "mongodb":
		engine, err := mongodb.NewConnection(ctx, &cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		applier := mongodb.NewApplier(engine)
		if err := applier.EnsureIndexes(ctx); err != nil {
			_ = engine.Close(context.Background())
			return nil, nil, err
		}
		log.Info("durable store ready", zap.String("driver", "mongodb"))
		return applier, func() { _ = engine.Close(context.Background()) }, nil
	default:
		engine, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := engine.RunMigrations(); err != nil {
			engine.Close()
			return nil, nil, err
		}
		log.Info("durable store ready", zap.String("driver", "postgres"))
		return postgres.NewApplier(engine.Pool()), engine.Close, nil
	}
}

func newRouter(mode string, h *thumb.Handler) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	h.Register(r)
	return r
}

// consume joins the consumer group until ctx ends. Consume returns on every
// rebalance, so it is called in a loop.
func consume(ctx context.Context, group sarama.ConsumerGroup, topic string, h sarama.ConsumerGroupHandler, log *zap.Logger) {
	go func() {
		for err := range group.Errors() {
			log.Warn("consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := group.Consume(ctx, []string{topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			log.Error("consume", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
