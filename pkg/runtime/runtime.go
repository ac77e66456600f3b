// Package runtime exposes scheduler-free primitives from the Go runtime.
package runtime

import (
	_ "unsafe" // go:linkname
)

// Uint32 returns a per-P random value without locking.
//
//go:linkname Uint32 runtime.fastrand
func Uint32() uint32

// Float64 returns a value in [0, 1) derived from Uint32.
func Float64() float64 {
	return float64(Uint32()) / (1 << 32)
}

// Procyield executes cycles PAUSE instructions. Used by spinning queue
// operations before they retry a contended slot.
//
//go:linkname Procyield runtime.procyield
func Procyield(cycles uint32)
