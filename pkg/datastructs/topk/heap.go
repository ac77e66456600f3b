package topk

import (
	"container/heap"
	"sort"
)

type entry struct {
	key   string
	count uint32
	seq   uint64 // last update order, newer wins ties
	index int
}

// minHeap orders entries by count, then by update order, so the root is
// the entry that loses the next admission contest.
type minHeap []*entry

func (h minHeap) Len() int { return len(h) }

func (h minHeap) Less(i, j int) bool {
	if h[i].count != h[j].count {
		return h[i].count < h[j].count
	}
	return h[i].seq < h[j].seq
}

func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *minHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// hotSet is the K-bounded container. Not thread-safe; HeavyKeeper guards it.
type hotSet struct {
	k     int
	heap  minHeap
	index map[string]*entry
	seq   uint64
}

func newHotSet(k int) *hotSet {
	return &hotSet{
		k:     k,
		heap:  make(minHeap, 0, k),
		index: make(map[string]*entry, k),
	}
}

func (s *hotSet) full() bool { return len(s.heap) >= s.k }

func (s *hotSet) min() *entry {
	if len(s.heap) == 0 {
		return nil
	}
	return s.heap[0]
}

func (s *hotSet) update(e *entry, count uint32) {
	s.seq++
	e.count = count
	e.seq = s.seq
	heap.Fix(&s.heap, e.index)
}

func (s *hotSet) push(key string, count uint32) {
	s.seq++
	e := &entry{key: key, count: count, seq: s.seq}
	heap.Push(&s.heap, e)
	s.index[key] = e
}

func (s *hotSet) popMin() *entry {
	e := heap.Pop(&s.heap).(*entry)
	delete(s.index, e.key)
	return e
}

func (s *hotSet) halve() {
	for _, e := range s.heap {
		e.count >>= 1
	}
	heap.Init(&s.heap)
}

func (s *hotSet) snapshot() []Item {
	sorted := make([]*entry, len(s.heap))
	copy(sorted, s.heap)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].seq > sorted[j].seq
	})

	items := make([]Item, len(sorted))
	for i, e := range sorted {
		items[i] = Item{Key: e.key, Count: e.count}
	}
	return items
}
