package stack

import (
	"fmt"

	"github.com/ardnew/intstack/pkg"
)

// Store is a bounded LIFO of int32 values.
//
// Store is not safe for concurrent use; see [Stack].
type Store struct {
	buf   []int32 // len(buf) == capacity; index 0 is the bottom
	depth int     // number of valid elements, 0 <= depth <= len(buf)
	alloc Allocator
}

// NewStore creates a store with the given initial capacity. A nil alloc
// selects LimitAllocator(DefaultMaxCapacity).
func NewStore(capacity int32, alloc Allocator) (*Store, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: %d", pkg.ErrInvalidSize, capacity)
	}
	if alloc == nil {
		alloc = LimitAllocator(DefaultMaxCapacity)
	}
	buf, err := alloc(int(capacity))
	if err != nil {
		return nil, err
	}
	return &Store{buf: buf, alloc: alloc}, nil
}

// Push stores value at the top of the stack.
func (s *Store) Push(value int32) error {
	if s.depth >= len(s.buf) {
		return pkg.ErrCapacityExceeded
	}
	s.buf[s.depth] = value
	s.depth++
	return nil
}

// Pop removes and returns the top value. It reports false when the stack
// is empty.
func (s *Store) Pop() (int32, bool) {
	if s.depth == 0 {
		return 0, false
	}
	s.depth--
	return s.buf[s.depth], true
}

// Resize reallocates the store to hold exactly capacity elements.
//
// The bottom min(Depth(), capacity) elements are preserved and any
// elements above the new capacity are discarded.
func (s *Store) Resize(capacity int32) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: %d", pkg.ErrInvalidSize, capacity)
	}
	buf, err := s.alloc(int(capacity))
	if err != nil {
		return err
	}
	keep := min(s.depth, len(buf))
	copy(buf, s.buf[:keep])
	s.buf = buf
	s.depth = keep
	return nil
}

// Depth returns the number of stored elements.
func (s *Store) Depth() int32 {
	return int32(s.depth)
}

// Capacity returns the maximum number of elements the store can hold.
func (s *Store) Capacity() int32 {
	return int32(len(s.buf))
}

// release drops the buffer. The store behaves as zero capacity afterward.
func (s *Store) release() {
	s.buf = nil
	s.depth = 0
}
