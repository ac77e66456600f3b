package topk

import (
	"math"
	"sync"

	"github.com/huynhanx03/go-thumb/pkg/runtime"
)

// bucket is one cell of the depth x width grid.
// Each bucket carries its own lock so unrelated keys never contend.
type bucket struct {
	mu          sync.Mutex
	fingerprint uint64
	count       uint32
}

type row []bucket

func newRow(width int) row {
	return make(row, width)
}

// touch applies incr units of fp to the bucket and returns the count this
// bucket now holds for fp (0 if another key still owns it).
func (b *bucket) touch(fp uint64, incr uint32, decay *[lookupTableSize]float64) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.count == 0:
		b.fingerprint = fp
		b.count = incr
		return b.count
	case b.fingerprint == fp:
		b.count = saturatingAdd(b.count, incr)
		return b.count
	}

	for j := uint32(0); j < incr; j++ {
		idx := b.count
		if idx >= lookupTableSize {
			idx = lookupTableSize - 1
		}
		if runtime.Float64() < decay[idx] {
			b.count--
			if b.count == 0 {
				b.fingerprint = fp
				b.count = incr - j
				return b.count
			}
		}
	}
	return 0
}

func (b *bucket) countOf(fp uint64) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fingerprint != fp {
		return 0
	}
	return b.count
}

func (b *bucket) halve() {
	b.mu.Lock()
	b.count >>= 1
	b.mu.Unlock()
}

func (r row) halve() {
	for i := range r {
		r[i].halve()
	}
}

func saturatingAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}
