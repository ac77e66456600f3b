package thumb

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/database/redis"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
)

const (
	defaultEnqueueTimeout = 5 * time.Second
	defaultQueueSize      = 1024
	compensateTimeout     = 5 * time.Second
)

var (
	ErrEnqueueTimeout = errors.New("producer input full")
	ErrQueueFull      = errors.New("emit queue full")
	ErrEmitterClosed  = errors.New("emitter closed")
)

// Compensator undoes a toggle whose event was never delivered.
type Compensator interface {
	RollbackLike(ctx context.Context, t redis.Toggle) (bool, error)
	RollbackUnlike(ctx context.Context, t redis.Toggle) (bool, error)
}

type EmitterConfig struct {
	Topic string
	// QueueSize bounds the events waiting for the producer.
	QueueSize int
	// EnqueueTimeout bounds how long one queued event waits for the
	// producer to accept it.
	EnqueueTimeout time.Duration
}

// Emitter publishes toggle events on an async producer. Emit never blocks
// the caller: events go through a bounded queue to a forwarding goroutine.
// Every event that overflows the queue, times out on the producer input or
// is given up on by the producer after its own retries is compensated on
// the fast store in the partition the toggle was recorded in.
type Emitter struct {
	producer sarama.AsyncProducer
	cfg      EmitterConfig
	store    Compensator
	keys     keys.Keys
	log      *zap.Logger
	metrics  *metrics.Metrics

	queue  chan ToggleEvent
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Publisher = (*Emitter)(nil)

func NewEmitter(producer sarama.AsyncProducer, cfg EmitterConfig, store Compensator, k keys.Keys, log *zap.Logger, m *metrics.Metrics) *Emitter {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = defaultEnqueueTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	e := &Emitter{
		producer: producer,
		cfg:      cfg,
		store:    store,
		keys:     k,
		log:      log.Named("emitter"),
		metrics:  m,
		queue:    make(chan ToggleEvent, cfg.QueueSize),
	}

	e.wg.Add(3)
	go e.forward()
	go e.handleErrors()
	go e.drainSuccesses()
	return e
}

// Emit queues ev and returns. The toggle is already committed, so the
// caller's ctx does not apply to delivery. An event that does not fit in
// the queue is compensated in the background.
func (e *Emitter) Emit(_ context.Context, ev ToggleEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.fail(ev, ErrEmitterClosed)
		return
	}

	select {
	case e.queue <- ev:
	default:
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.fail(ev, ErrQueueFull)
		}()
	}
}

// forward moves queued events to the producer and closes it once the
// queue is closed and drained.
func (e *Emitter) forward() {
	defer e.wg.Done()
	defer e.producer.AsyncClose()

	t := time.NewTimer(e.cfg.EnqueueTimeout)
	defer t.Stop()

	for ev := range e.queue {
		msg, err := e.message(ev)
		if err != nil {
			e.fail(ev, err)
			continue
		}

		t.Reset(e.cfg.EnqueueTimeout)
		select {
		case e.producer.Input() <- msg:
		case <-t.C:
			e.fail(ev, ErrEnqueueTimeout)
		}
	}
}

func (e *Emitter) message(ev ToggleEvent) (*sarama.ProducerMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "encode event")
	}
	return &sarama.ProducerMessage{
		Topic:     e.cfg.Topic,
		Key:       sarama.StringEncoder(strconv.FormatInt(ev.ItemID, 10)),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: ev.EventTime,
		Metadata:  ev,
	}, nil
}

func (e *Emitter) handleErrors() {
	defer e.wg.Done()
	for perr := range e.producer.Errors() {
		ev, ok := perr.Msg.Metadata.(ToggleEvent)
		if !ok {
			e.log.Error("failed message without event metadata", zap.Error(perr.Err))
			continue
		}
		e.fail(ev, perr.Err)
	}
}

func (e *Emitter) drainSuccesses() {
	defer e.wg.Done()
	for range e.producer.Successes() {
	}
}

func (e *Emitter) fail(ev ToggleEvent, cause error) {
	e.metrics.PublishFailed()
	e.log.Warn("toggle event not delivered, compensating",
		zap.String("type", string(ev.Type)),
		zap.Int64("user_id", ev.UserID),
		zap.Int64("blog_id", ev.ItemID),
		zap.Error(cause))

	undone, err := e.compensate(ev)
	switch {
	case err != nil:
		e.metrics.Compensation(metrics.OutcomeError)
		e.log.Error("compensation failed",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("blog_id", ev.ItemID),
			zap.Error(err))
	case !undone:
		// A later toggle already moved the record; nothing to undo.
		e.metrics.Compensation(metrics.OutcomeNoop)
	default:
		e.metrics.Compensation(metrics.OutcomeSuccess)
	}
}

func (e *Emitter) compensate(ev ToggleEvent) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	// The rollback lands in the toggle's partition but must stamp later
	// than the toggle it undoes.
	t := toggleOf(e.keys, ev.UserID, ev.ItemID, ev.EventTime)
	t.At = max(time.Now().UnixMilli(), t.At+1)

	switch ev.Type {
	case EventIncr:
		return e.store.RollbackLike(ctx, t)
	case EventDecr:
		return e.store.RollbackUnlike(ctx, t)
	default:
		return false, errors.Errorf("unknown event type %q", ev.Type)
	}
}

// Close stops accepting events, forwards what is queued, flushes the
// producer and waits until every outstanding failure has been compensated.
func (e *Emitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}
