package hash

import (
	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns the stable 64-bit fingerprint of a string key.
func Fingerprint(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Mix64 scrambles h so that seeds XOR-ed into a fingerprint spread over
// all bits before a modulo reduction (splitmix64 finalizer).
func Mix64(h uint64) uint64 {
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}

// Index reduces a hash into [0, n).
func Index(h uint64, n int) int {
	return int(h % uint64(n))
}
