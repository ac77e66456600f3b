package topk

import (
	"iter"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huynhanx03/go-thumb/pkg/datastructs/queue"
	"github.com/huynhanx03/go-thumb/pkg/hash"
)

const lookupTableSize = 256

const (
	defaultK                = 100
	defaultWidth            = 100000
	defaultDepth            = 5
	defaultDecay            = 0.92
	defaultMinCount         = 10
	defaultEvictionCapacity = 4096
)

// Item is a member of the hot set.
type Item struct {
	Key   string
	Count uint32
}

// EvictedItem is a hot-set member displaced by a stronger key, with the
// count it held when it was displaced.
type EvictedItem struct {
	Key   string
	Count uint32
}

// AddResult reports what a single Add did to the hot set.
type AddResult struct {
	Evicted *EvictedItem
	Hot     bool
	Key     string
}

// Options configures a HeavyKeeper. Zero fields take defaults.
type Options struct {
	K        int
	Width    int
	Depth    int
	Decay    float64
	MinCount uint32

	// EvictionCapacity bounds the eviction queue. When it is full the
	// oldest undrained eviction is dropped and counted by Dropped.
	EvictionCapacity int

	// SeededRows gives every row its own index function. When false all
	// rows index the same bucket for a key.
	SeededRows bool
}

func (o *Options) setDefaults() {
	if o.K <= 0 {
		o.K = defaultK
	}
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Depth <= 0 {
		o.Depth = defaultDepth
	}
	if o.Decay <= 0 || o.Decay >= 1 {
		o.Decay = defaultDecay
	}
	if o.EvictionCapacity <= 0 {
		o.EvictionCapacity = defaultEvictionCapacity
	}
}

// HeavyKeeper estimates per-key frequency in fixed memory and maintains an
// approximate Top-K hot set. Safe for concurrent use.
type HeavyKeeper struct {
	width    int
	minCount uint32
	rows     []row
	seeds    []uint64
	decay    [lookupTableSize]float64

	mu  sync.Mutex
	hot *hotSet

	evicted *queue.MPMC[EvictedItem]
	dropped atomic.Uint64
	total   atomic.Uint64
}

// New creates a HeavyKeeper.
func New(opts Options) *HeavyKeeper {
	opts.setDefaults()

	hk := &HeavyKeeper{
		width:    opts.Width,
		minCount: opts.MinCount,
		rows:     make([]row, opts.Depth),
		hot:      newHotSet(opts.K),
		evicted:  queue.NewMPMC[EvictedItem](opts.EvictionCapacity),
	}
	for i := range hk.decay {
		hk.decay[i] = math.Pow(opts.Decay, float64(i))
	}
	for i := range hk.rows {
		hk.rows[i] = newRow(opts.Width)
	}

	if opts.SeededRows {
		source := rand.New(rand.NewSource(time.Now().UnixNano()))
		hk.seeds = make([]uint64, opts.Depth)
		for i := range hk.seeds {
			hk.seeds[i] = source.Uint64()
		}
	}
	return hk
}

func (hk *HeavyKeeper) index(fp uint64, row int) int {
	if hk.seeds == nil {
		return hash.Index(fp, hk.width)
	}
	return hash.Index(hash.Mix64(fp^hk.seeds[row]), hk.width)
}

// Add records increment occurrences of key and updates the hot set.
// An increment of zero is a no-op.
func (hk *HeavyKeeper) Add(key string, increment uint32) AddResult {
	if increment == 0 {
		return AddResult{Key: key}
	}

	fp := hash.Fingerprint(key)
	var maxCount uint32
	for i, r := range hk.rows {
		if c := r[hk.index(fp, i)].touch(fp, increment, &hk.decay); c > maxCount {
			maxCount = c
		}
	}
	hk.total.Add(uint64(increment))

	if maxCount < hk.minCount {
		return AddResult{Key: key}
	}

	hk.mu.Lock()
	defer hk.mu.Unlock()

	if e, ok := hk.hot.index[key]; ok {
		hk.hot.update(e, maxCount)
		return AddResult{Hot: true, Key: key}
	}

	if hk.hot.full() && maxCount < hk.hot.min().count {
		return AddResult{Key: key}
	}

	var evicted *EvictedItem
	if hk.hot.full() {
		e := hk.hot.popMin()
		evicted = &EvictedItem{Key: e.key, Count: e.count}
		if n := hk.evicted.Offer(*evicted); n > 0 {
			hk.dropped.Add(uint64(n))
		}
	}
	hk.hot.push(key, maxCount)
	return AddResult{Evicted: evicted, Hot: true, Key: key}
}

// Estimate returns the current frequency estimate of key without
// recording an occurrence.
func (hk *HeavyKeeper) Estimate(key string) uint32 {
	fp := hash.Fingerprint(key)
	var est uint32
	for i, r := range hk.rows {
		if c := r[hk.index(fp, i)].countOf(fp); c > est {
			est = c
		}
	}
	return est
}

// List returns a snapshot of the hot set, highest count first.
func (hk *HeavyKeeper) List() []Item {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	return hk.hot.snapshot()
}

// Contains reports whether key is currently in the hot set.
func (hk *HeavyKeeper) Contains(key string) bool {
	hk.mu.Lock()
	_, ok := hk.hot.index[key]
	hk.mu.Unlock()
	return ok
}

// Len returns the hot set size.
func (hk *HeavyKeeper) Len() int {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	return len(hk.hot.heap)
}

// DrainEvicted yields the evictions queued at call time. Each eviction is
// yielded once across all drains.
func (hk *HeavyKeeper) DrainEvicted() iter.Seq[EvictedItem] {
	return hk.evicted.Drain
}

// Dropped returns how many evictions were discarded because nobody drained
// the queue in time.
func (hk *HeavyKeeper) Dropped() uint64 {
	return hk.dropped.Load()
}

// DecayAll halves every bucket, every hot-set count and the running total.
func (hk *HeavyKeeper) DecayAll() {
	for _, r := range hk.rows {
		r.halve()
	}

	hk.mu.Lock()
	hk.hot.halve()
	hk.mu.Unlock()

	for {
		old := hk.total.Load()
		if hk.total.CompareAndSwap(old, old>>1) {
			return
		}
	}
}

// Total returns the sum of all increments, halved once per DecayAll.
func (hk *HeavyKeeper) Total() uint64 {
	return hk.total.Load()
}
