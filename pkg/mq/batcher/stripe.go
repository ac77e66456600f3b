package batcher

import "sync"

// stripe is one buffer of the batcher. Pushers and Flush share it under mu;
// consumers are always called outside the lock.
type stripe[T any] struct {
	mu   sync.Mutex
	data []T
	cap  int
}

func newStripe[T any](capacity int) *stripe[T] {
	return &stripe[T]{
		data: make([]T, 0, capacity),
		cap:  capacity,
	}
}

// add appends item and returns the full batch when the stripe filled up.
// The caller owns the returned slice.
func (s *stripe[T]) add(item T) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, item)
	if len(s.data) < s.cap {
		return nil
	}
	full := s.data
	s.data = make([]T, 0, s.cap)
	return full
}

// take returns whatever is buffered and resets the stripe.
func (s *stripe[T]) take() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil
	}
	partial := s.data
	s.data = make([]T, 0, s.cap)
	return partial
}
