package batcher

// Consumer processes a flushed batch of items.
type Consumer[T any] interface {
	Consume(batch []T) error
}

// ConsumerFunc adapts a plain function to Consumer.
type ConsumerFunc[T any] func(batch []T) error

func (f ConsumerFunc[T]) Consume(batch []T) error { return f(batch) }

// Config holds configuration for the StripedBatcher.
type Config struct {
	// StripeSize is the capacity of a single stripe buffer.
	// When a stripe reaches this size, it will be flushed to the Consumer.
	StripeSize int

	// Stripes is the number of stripes. Zero means GOMAXPROCS.
	Stripes int

	// OnError receives errors returned by the Consumer. Nil discards them.
	OnError func(error)
}
