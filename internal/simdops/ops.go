// Package simdops exposes the SIMD kernels used by the FIR stages for both
// float32 and float64, so the filters can be written once as generics.
package simdops

import (
	"github.com/tphakala/simd/cpu"
	"github.com/tphakala/simd/f32"
	"github.com/tphakala/simd/f64"
)

// Float is the type constraint for supported floating-point types.
type Float interface {
	float32 | float64
}

// Ops bundles the kernels for one float type. Resolving the function
// pointers once at construction keeps type switches out of the hot path.
type Ops[F Float] struct {
	// DotProductUnsafe computes Σ a[i]·b[i] without bounds checking.
	// Both slices must be non-empty and of equal length.
	DotProductUnsafe func(a, b []F) F

	// Sum returns the sum of all elements.
	Sum func(a []F) F

	// Scale multiplies each element by s: dst[i] = a[i] * s
	Scale func(dst, a []F, s F)
}

var (
	ops32 = Ops[float32]{
		DotProductUnsafe: f32.DotProductUnsafe,
		Sum:              f32.Sum,
		Scale:            f32.Scale,
	}
	ops64 = Ops[float64]{
		DotProductUnsafe: f64.DotProductUnsafe,
		Sum:              f64.Sum,
		Scale:            f64.Scale,
	}
)

// For returns the Ops instance for type F.
func For[F Float]() *Ops[F] {
	var zero F
	switch any(zero).(type) {
	case float32:
		ops, ok := any(&ops32).(*Ops[F])
		if !ok {
			panic("simdops: type assertion failed for float32")
		}
		return ops
	case float64:
		ops, ok := any(&ops64).(*Ops[F])
		if !ok {
			panic("simdops: type assertion failed for float64")
		}
		return ops
	default:
		panic("simdops: unsupported float type")
	}
}

// Dot is DotProductUnsafe with the empty case handled. Lengths must match.
func (o *Ops[F]) Dot(a, b []F) F {
	if len(a) == 0 {
		return 0
	}
	return o.DotProductUnsafe(a, b)
}

// Info describes the instruction set the kernels dispatch to.
func Info() string {
	return cpu.Info()
}
