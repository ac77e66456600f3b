package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is a source of wall time.
type Clock interface {
	Now() time.Time
}

// Timer is a Clock with a background refresher that must be stopped.
type Timer interface {
	Clock
	Stop()
}

// SystemClock reads time.Now on every call.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CachedTimer serves a wall clock refreshed once per step, trading
// precision for a lock-free read on hot paths.
type CachedTimer struct {
	now    atomic.Pointer[time.Time]
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewCachedTimer(step time.Duration) *CachedTimer {
	t := &CachedTimer{
		ticker: time.NewTicker(step),
		done:   make(chan struct{}),
	}
	t.store(time.Now())

	t.wg.Add(1)
	go t.run()

	return t
}

func (t *CachedTimer) run() {
	defer t.wg.Done()

	for {
		select {
		case now := <-t.ticker.C:
			t.store(now)
		case <-t.done:
			t.ticker.Stop()
			return
		}
	}
}

func (t *CachedTimer) store(now time.Time) {
	t.now.Store(&now)
}

func (t *CachedTimer) Now() time.Time {
	return *t.now.Load()
}

// Stop halts the refresher. Now keeps returning the last cached value.
func (t *CachedTimer) Stop() {
	t.once.Do(func() { close(t.done) })
	t.wg.Wait()
}

// ManualClock is a Clock moved only by Set and Advance.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
