package stack

import (
	"fmt"

	"github.com/ardnew/intstack/pkg"
)

// DefaultMaxCapacity is the largest capacity the default allocator will
// provide: 4 MiB of int32 elements.
const DefaultMaxCapacity = 1 << 20

// Allocator returns a zeroed buffer of exactly n elements or an error
// wrapping pkg.ErrOutOfMemory.
type Allocator func(n int) ([]int32, error)

// LimitAllocator returns an Allocator that refuses buffers larger than max
// elements. A non-positive max disables the limit. Runtime allocation
// failures that surface as panics are reported as pkg.ErrOutOfMemory.
func LimitAllocator(max int) Allocator {
	return func(n int) (buf []int32, err error) {
		if n < 0 || (max > 0 && n > max) {
			return nil, fmt.Errorf("%w: %d elements (limit %d)", pkg.ErrOutOfMemory, n, max)
		}
		defer func() {
			if r := recover(); r != nil {
				buf, err = nil, fmt.Errorf("%w: %v", pkg.ErrOutOfMemory, r)
			}
		}()
		return make([]int32, n), nil
	}
}
