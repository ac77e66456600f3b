// Package queue provides a bounded lock-free queue used to hand hot-set
// evictions from writers to the drain loop.
package queue

import (
	"math/bits"
	"runtime"
	"sync/atomic"

	pkgRuntime "github.com/huynhanx03/go-thumb/pkg/runtime"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const (
	cacheLineSize = 64

	pauseCycles = 4  // PAUSE cycles per spin
	maxSpins    = 30 // spins before yielding to the scheduler
)

// slot is written when turn is even (2*lap) and read when odd (2*lap+1).
type slot[T any] struct {
	turn atomic.Uint64
	data T
	_    [cacheLineSize - 16]byte
}

// MPMC is a bounded multi-producer multi-consumer ring. Producers and
// consumers claim positions with CAS and hand slots over through the
// per-slot turn counter, so neither side takes a lock.
type MPMC[T any] struct {
	capacity uint64
	mask     uint64
	lapShift uint64
	slots    []slot[T]

	_    [cacheLineSize]byte
	head atomic.Uint64 // next write position
	_    [cacheLineSize]byte
	tail atomic.Uint64 // next read position
}

// NewMPMC returns a queue holding at least capacity items. Capacity is
// rounded up to a power of two.
func NewMPMC[T any](capacity int) *MPMC[T] {
	capacity = utils.CeilToPowerOfTwo(capacity)
	return &MPMC[T]{
		capacity: uint64(capacity),
		mask:     uint64(capacity - 1),
		lapShift: uint64(bits.TrailingZeros64(uint64(capacity))),
		slots:    make([]slot[T], capacity),
	}
}

// backoff spins briefly on the CPU and then yields. It returns the spin
// count to continue with.
func backoff(spin int) int {
	if spin < maxSpins {
		pkgRuntime.Procyield(pauseCycles)
		return spin + 1
	}
	runtime.Gosched()
	return 0
}

// Enqueue appends item. It returns false when the queue is full.
func (q *MPMC[T]) Enqueue(item T) bool {
	for spin := 0; ; spin = backoff(spin) {
		pos := q.head.Load()
		s := &q.slots[pos&q.mask]
		want := (pos >> q.lapShift) * 2

		if s.turn.Load() != want {
			// The slot still holds last lap's item. Full unless head moved.
			if pos == q.head.Load() {
				return false
			}
			continue
		}
		if q.head.CompareAndSwap(pos, pos+1) {
			s.data = item
			s.turn.Store(want + 1)
			return true
		}
	}
}

// Dequeue removes the oldest item. It returns false when the queue is empty.
func (q *MPMC[T]) Dequeue() (T, bool) {
	var zero T
	for spin := 0; ; spin = backoff(spin) {
		pos := q.tail.Load()
		s := &q.slots[pos&q.mask]
		want := (pos>>q.lapShift)*2 + 1

		if s.turn.Load() != want {
			if pos == q.tail.Load() {
				return zero, false
			}
			continue
		}
		if q.tail.CompareAndSwap(pos, pos+1) {
			item := s.data
			s.data = zero
			s.turn.Store(want + 1)
			return item, true
		}
	}
}

// Offer enqueues item, discarding the oldest queued items until it fits.
// It returns how many items were discarded. With concurrent consumers a
// discarded slot may already have been taken by a reader; Offer only
// counts what it removed itself.
func (q *MPMC[T]) Offer(item T) (dropped int) {
	for !q.Enqueue(item) {
		if _, ok := q.Dequeue(); ok {
			dropped++
		}
	}
	return dropped
}

// Size is approximate under concurrent access and may briefly be negative.
func (q *MPMC[T]) Size() int64 {
	return int64(q.head.Load()) - int64(q.tail.Load())
}

func (q *MPMC[T]) IsEmpty() bool    { return q.Size() <= 0 }
func (q *MPMC[T]) IsFull() bool     { return q.Size() >= int64(q.capacity) }
func (q *MPMC[T]) Capacity() uint64 { return q.capacity }

// Drain dequeues everything present at call time, in FIFO order.
// Items enqueued while draining may or may not be included.
func (q *MPMC[T]) Drain(yield func(T) bool) {
	for n := q.Size(); n > 0; n-- {
		item, ok := q.Dequeue()
		if !ok || !yield(item) {
			return
		}
	}
}
