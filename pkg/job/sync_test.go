package job

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisV9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/database"
	"github.com/huynhanx03/go-thumb/pkg/database/redis"
	"github.com/huynhanx03/go-thumb/pkg/thumb/keys"
)

const date = "2024-05-01"

type counterIDs struct{ n atomic.Int64 }

func (c *counterIDs) Generate() int64 { return 1000 + c.n.Add(1) }

type relationState struct {
	liked bool
	at    int64
}

// fakeApplier keeps a ledger of applied batch ids and the latest relation
// state like the real stores.
type fakeApplier struct {
	mu        sync.Mutex
	ledger    map[int64]bool
	batches   []*database.Batch
	counts    map[int64]int64
	relations map[[2]int64]relationState
	calls     atomic.Int32
	err       error
	block     chan struct{}
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{
		ledger:    map[int64]bool{},
		counts:    map[int64]int64{},
		relations: map[[2]int64]relationState{},
	}
}

func (f *fakeApplier) setRelations(rels []database.Relation, liked bool) {
	for _, r := range rels {
		key := [2]int64{r.UserID, r.ItemID}
		if cur, ok := f.relations[key]; ok && cur.at > r.At {
			continue
		}
		f.relations[key] = relationState{liked: liked, at: r.At}
	}
}

func (f *fakeApplier) liked(userID, itemID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relations[[2]int64{userID, itemID}].liked
}

func (f *fakeApplier) ApplyBatch(_ context.Context, b *database.Batch) (bool, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.ledger[b.ID] {
		return false, nil
	}
	f.ledger[b.ID] = true
	f.batches = append(f.batches, b)
	for id, d := range b.Deltas {
		f.counts[id] += d
	}
	f.setRelations(b.Likes, true)
	f.setRelations(b.Unlikes, false)
	return true, nil
}

func (f *fakeApplier) Close(context.Context) error { return nil }

func newTestJob(t *testing.T) (*SyncJob, *fakeApplier, *miniredis.Miniredis, keys.Keys) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisV9.NewClient(&redisV9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	k := keys.New("thumb", time.UTC)
	applier := newFakeApplier()
	j := NewSyncJob(redis.NewThumbStore(client), applier, &counterIDs{}, k, zap.NewNop(), nil)
	return j, applier, mr, k
}

func sortRelations(rels []database.Relation) []database.Relation {
	sort.Slice(rels, func(i, j int) bool { return rels[i].UserID < rels[j].UserID })
	return rels
}

func TestSync_EmptyPartitionIsNoop(t *testing.T) {
	j, applier, _, _ := newTestJob(t)

	res, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, Result{Date: date}, res)
	assert.Zero(t, applier.calls.Load())
}

func TestSync_AppliesAggregatedBatch(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "7:42", "1", "8:42", "1", "9:43", "-1", "10:44", "0")

	res, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, Result{Date: date, Keys: 1, Items: 2, Applied: 1}, res)

	require.Len(t, applier.batches, 1)
	b := applier.batches[0]
	assert.Equal(t, date, b.Partition)
	assert.Equal(t, map[int64]int64{42: 2, 43: -1}, b.Deltas)
	assert.Equal(t, []database.Relation{{UserID: 7, ItemID: 42}, {UserID: 8, ItemID: 42}}, sortRelations(b.Likes))
	assert.Equal(t, []database.Relation{{UserID: 9, ItemID: 43}}, b.Unlikes)

	assert.False(t, mr.Exists(k.Pending(date)))
	assert.Empty(t, mr.Keys())
}

func TestSync_NetZeroItemDropped(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "7:42", "1", "8:42", "-1")

	res, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Items)

	require.Len(t, applier.batches, 1)
	assert.Empty(t, applier.batches[0].Deltas)
	assert.Len(t, applier.batches[0].Likes, 1)
	assert.Len(t, applier.batches[0].Unlikes, 1)
}

func TestSync_ResumesLeftoverClaimWithItsBatchID(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Syncing(date, 555), "7:42", "1")
	mr.HSet(k.Pending(date), "8:42", "1")

	res, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Keys)
	assert.Equal(t, 2, res.Applied)
	assert.True(t, applier.ledger[555])
	assert.Equal(t, int64(2), applier.counts[42])
	assert.Empty(t, mr.Keys())
}

func TestSync_ReplayAfterCrashDoesNotDoubleCount(t *testing.T) {
	j, applier, mr, k := newTestJob(t)

	// Batch 555 was applied but the process died before deleting the key.
	applier.ledger[555] = true
	mr.HSet(k.Syncing(date, 555), "7:42", "1")

	res, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, Result{Date: date, Keys: 1, Items: 1, Applied: 0}, res)
	assert.Zero(t, applier.counts[42])
	assert.Empty(t, mr.Keys())
}

func TestSync_ApplyFailureKeepsClaim(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "7:42", "1")
	applier.err = errors.New("db down")

	_, err := j.SyncByDatePartition(context.Background(), date)
	require.Error(t, err)

	left := mr.Keys()
	require.Len(t, left, 1)
	claimID, ok := k.BatchIDOf(left[0])
	require.True(t, ok, "pending data must stay claimed, got %v", left)

	applier.err = nil
	res, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, applier.ledger[claimID], "retry must reuse the claimed batch id")
	assert.Equal(t, int64(1), applier.counts[42])
	assert.Empty(t, mr.Keys())
}

func TestSync_SkipsMalformedFields(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "garbage", "1", "7:42", "1")

	_, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, applier.batches, 1)
	assert.Equal(t, map[int64]int64{42: 1}, applier.batches[0].Deltas)
}

func TestSync_ConcurrentCallsShareOneRun(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "7:42", "1")
	applier.block = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]Result, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = j.SyncByDatePartition(context.Background(), date)
		}(i)
	}

	require.Eventually(t, func() bool { return applier.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(applier.block)
	wg.Wait()

	assert.Equal(t, int32(1), applier.calls.Load())
	assert.Equal(t, int64(1), applier.counts[42])
}

func TestSync_CallerCancelDoesNotAbortRun(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "7:42", "1")
	applier.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := j.SyncByDatePartition(ctx, date)
		done <- err
	}()

	require.Eventually(t, func() bool { return applier.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(applier.block)
	require.Eventually(t, func() bool { return len(mr.Keys()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), applier.counts[42])
}

func TestSync_SecondSyncAfterDataIsNoop(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "7:42", "1", "8:43", "-1")

	first, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, 1, first.Applied)

	second, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, Result{Date: date}, second)
	assert.Equal(t, int32(1), applier.calls.Load(), "no new batch")
	assert.Len(t, applier.batches, 1)
	assert.Equal(t, map[int64]int64{42: 1, 43: -1}, applier.counts)
	assert.Empty(t, mr.Keys())
}

func TestSync_RelationsCarryToggleStamp(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	mr.HSet(k.Pending(date), "7:42", "1", "7:42:at", "1714557600000", "8:42", "-1")

	_, err := j.SyncByDatePartition(context.Background(), date)
	require.NoError(t, err)

	require.Len(t, applier.batches, 1)
	b := applier.batches[0]
	assert.Equal(t, []database.Relation{{UserID: 7, ItemID: 42, At: 1714557600000}}, b.Likes)
	assert.Equal(t, []database.Relation{{UserID: 8, ItemID: 42}}, b.Unlikes)
	assert.Empty(t, b.Deltas, "stamps are not deltas")
}

func TestSync_DatesSyncedOutOfOrderKeepLatestRelation(t *testing.T) {
	j, applier, mr, k := newTestJob(t)
	client := redisV9.NewClient(&redisV9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redis.NewThumbStore(client)
	ctx := context.Background()

	toggle := func(at time.Time) redis.Toggle {
		return redis.Toggle{
			UserKey:    k.User(7),
			PendingKey: k.Pending(k.Partition(at)),
			ItemField:  keys.ItemField(42),
			PairField:  keys.PairField(7, 42),
			StampField: keys.StampField(7, 42),
			At:         at.UnixMilli(),
		}
	}
	liked := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	unliked := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	status, err := store.TryLike(ctx, toggle(liked))
	require.NoError(t, err)
	require.Equal(t, redis.LuaSuccess, status)
	status, err = store.TryUnlike(ctx, toggle(unliked))
	require.NoError(t, err)
	require.Equal(t, redis.LuaSuccess, status)

	// The later date reaches the durable store first.
	_, err = j.SyncByDatePartition(ctx, "2024-05-02")
	require.NoError(t, err)
	_, err = j.SyncByDatePartition(ctx, "2024-05-01")
	require.NoError(t, err)

	assert.Zero(t, applier.counts[42])
	assert.False(t, applier.liked(7, 42), "the unlike is the latest toggle")

	has, err := store.HasLiked(ctx, k.User(7), keys.ItemField(42))
	require.NoError(t, err)
	assert.Equal(t, has, applier.liked(7, 42))
}
