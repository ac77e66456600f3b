package utils

import "math/bits"

// CeilToPowerOfTwo rounds n up to a power of two, with a minimum of 2.
// It panics when the result would overflow int.
func CeilToPowerOfTwo(n int) int {
	if n <= 2 {
		return 2
	}
	shift := bits.Len(uint(n - 1))
	if shift >= bits.UintSize-1 {
		panic("utils: argument is too large")
	}
	return 1 << shift
}
