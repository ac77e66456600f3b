package batcher

import (
	"runtime"

	pkgRuntime "github.com/huynhanx03/go-thumb/pkg/runtime"
)

const defaultStripeSize = 512

// StripedBatcher collects items into a fixed set of stripes and hands each
// full stripe to the Consumer on the pushing goroutine. Pushers pick a
// stripe at random, so they rarely share one.
//
// Items in a stripe that never fills are delivered by Flush.
type StripedBatcher[T any] struct {
	cons    Consumer[T]
	onError func(error)
	stripes []*stripe[T]
}

// New returns a batcher flushing to cons.
func New[T any](cons Consumer[T], cfg Config) *StripedBatcher[T] {
	size := cfg.StripeSize
	if size <= 0 {
		size = defaultStripeSize
	}
	n := cfg.Stripes
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	b := &StripedBatcher[T]{
		cons:    cons,
		onError: cfg.OnError,
		stripes: make([]*stripe[T], n),
	}
	for i := range b.stripes {
		b.stripes[i] = newStripe[T](size)
	}
	return b
}

// Push adds item, flushing its stripe when it fills up.
func (b *StripedBatcher[T]) Push(item T) {
	s := b.stripes[pkgRuntime.Uint32()%uint32(len(b.stripes))]
	if full := s.add(item); full != nil {
		b.consume(full)
	}
}

// Flush hands every partially filled stripe to the Consumer and returns the
// number of items delivered.
func (b *StripedBatcher[T]) Flush() int {
	n := 0
	for _, s := range b.stripes {
		if partial := s.take(); partial != nil {
			n += len(partial)
			b.consume(partial)
		}
	}
	return n
}

func (b *StripedBatcher[T]) consume(batch []T) {
	if err := b.cons.Consume(batch); err != nil && b.onError != nil {
		b.onError(err)
	}
}
