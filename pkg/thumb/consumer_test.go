package thumb

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/job"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
)

type fakeSyncer struct {
	mu    sync.Mutex
	dates []string
	err   error
}

func (s *fakeSyncer) SyncByDatePartition(_ context.Context, date string) (job.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates = append(s.dates, date)
	return job.Result{Date: date}, s.err
}

func (s *fakeSyncer) synced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dates...)
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, msg.Offset)
	s.mu.Unlock()
}

func (s *fakeSession) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "thumb-topic" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventMessage(t *testing.T, offset int64, at time.Time) *sarama.ConsumerMessage {
	t.Helper()
	payload, err := json.Marshal(ToggleEvent{ItemID: 42, UserID: offset, Type: EventIncr, EventTime: at})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Offset: offset, Value: payload}
}

// consume feeds msgs to a consumer and returns once the claim is drained.
func consume(t *testing.T, c *Consumer, msgs ...*sarama.ConsumerMessage) *fakeSession {
	t.Helper()
	sess := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, len(msgs))}
	for _, m := range msgs {
		claim.msgs <- m
	}
	close(claim.msgs)

	require.NoError(t, c.ConsumeClaim(sess, claim))
	return sess
}

func newTestConsumer(syncer PartitionSyncer, size int) *Consumer {
	return NewConsumer(syncer, ConsumerConfig{BatchSize: size, BatchInterval: time.Hour},
		keys.New("thumb", time.UTC), zap.NewNop(), nil)
}

func TestConsumer_SyncsDistinctDatesPerBatch(t *testing.T) {
	syncer := &fakeSyncer{}
	c := newTestConsumer(syncer, 3)

	day1 := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)
	sess := consume(t, c,
		eventMessage(t, 1, day2),
		eventMessage(t, 2, day1),
		eventMessage(t, 3, day1),
		eventMessage(t, 4, day2),
	)

	// One full batch of three, then the remainder when the claim closes.
	assert.Equal(t, []string{"2024-05-01", "2024-05-02", "2024-05-02"}, syncer.synced())
	assert.Equal(t, []int64{3, 4}, sess.offsets())
}

func TestConsumer_SkipsUndecodableMessages(t *testing.T) {
	syncer := &fakeSyncer{}
	c := newTestConsumer(syncer, 10)

	sess := consume(t, c,
		&sarama.ConsumerMessage{Offset: 1, Value: []byte("not json")},
		eventMessage(t, 2, testNow),
	)

	assert.Equal(t, []string{"2024-05-01"}, syncer.synced())
	assert.Equal(t, []int64{2}, sess.offsets())
}

func TestConsumer_FailedBatchIsNotMarked(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("db down")}
	c := newTestConsumer(syncer, 1)

	sess := consume(t, c, eventMessage(t, 1, testNow))

	assert.NotEmpty(t, syncer.synced())
	assert.Empty(t, sess.offsets())
}

func TestConsumer_FailedBatchRetriedWithNextFlush(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("db down")}
	c := newTestConsumer(syncer, 1)

	sess := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage)}
	done := make(chan error, 1)
	go func() { done <- c.ConsumeClaim(sess, claim) }()

	claim.msgs <- eventMessage(t, 1, testNow)
	require.Eventually(t, func() bool { return len(syncer.synced()) == 1 }, time.Second, time.Millisecond)

	syncer.mu.Lock()
	syncer.err = nil
	syncer.mu.Unlock()

	claim.msgs <- eventMessage(t, 2, testNow)
	close(claim.msgs)
	require.NoError(t, <-done)

	assert.Equal(t, []int64{2}, sess.offsets(), "the retried batch covers both messages")
}

func TestConsumer_StopsWithSession(t *testing.T) {
	syncer := &fakeSyncer{}
	c := newTestConsumer(syncer, 10)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &fakeSession{ctx: ctx}
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage)}
	done := make(chan error, 1)
	go func() { done <- c.ConsumeClaim(sess, claim) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop with its session")
	}
	assert.Empty(t, syncer.synced())
}
