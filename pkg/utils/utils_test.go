package utils

import (
	"math/bits"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCeilToPowerOfTwo(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 2}, {0, 2}, {1, 2}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {1000, 1024}, {4096, 4096},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CeilToPowerOfTwo(tt.in), "in=%d", tt.in)
	}

	assert.Panics(t, func() { CeilToPowerOfTwo(1<<(bits.UintSize-2) + 1) })
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 20*time.Second, ToDuration(20))
	assert.Equal(t, 1500*time.Millisecond, ToDurationMs(1500))
}
