package stack

import (
	"sync"

	"github.com/ardnew/intstack/pkg"
)

// Stack serializes access to a single Store.
type Stack struct {
	mutex sync.RWMutex
	store *Store
}

// Option configures a Stack.
type Option func(*options)

type options struct {
	capacity int32
	alloc    Allocator
}

// WithCapacity sets the initial capacity. The default is zero, so every
// push fails until the stack is resized.
func WithCapacity(capacity int32) Option {
	return func(o *options) { o.capacity = capacity }
}

// WithMaxCapacity limits resizes to at most max elements.
func WithMaxCapacity(max int) Option {
	return func(o *options) { o.alloc = LimitAllocator(max) }
}

// WithAllocator replaces the buffer allocator.
func WithAllocator(alloc Allocator) Option {
	return func(o *options) { o.alloc = alloc }
}

// New creates a Stack.
func New(opts ...Option) (*Stack, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	store, err := NewStore(o.capacity, o.alloc)
	if err != nil {
		return nil, err
	}
	pkg.LogDebug(pkg.ComponentStack, "stack created",
		"capacity", store.Capacity())
	return &Stack{store: store}, nil
}

// Push adds value to the top of the stack.
func (s *Stack) Push(value int32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.store.Push(value)
}

// Pop removes the top value. ok is false when the stack was empty.
func (s *Stack) Pop() (value int32, ok bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.store.Pop()
}

// Resize changes the capacity, truncating from the top if needed.
func (s *Stack) Resize(capacity int32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	old := s.store.Capacity()
	if err := s.store.Resize(capacity); err != nil {
		pkg.LogWarn(pkg.ComponentStack, "resize failed",
			"from", old,
			"to", capacity,
			"error", err)
		return err
	}
	pkg.LogDebug(pkg.ComponentStack, "resized",
		"from", old,
		"to", capacity,
		"depth", s.store.Depth())
	return nil
}

// Depth returns the number of stored elements.
func (s *Stack) Depth() int32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.store.Depth()
}

// Capacity returns the current capacity.
func (s *Stack) Capacity() int32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.store.Capacity()
}

// Snapshot returns depth and capacity observed together.
func (s *Stack) Snapshot() (depth, capacity int32) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.store.Depth(), s.store.Capacity()
}

// Close releases the buffer. Later pushes fail until the stack is resized.
func (s *Stack) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.store.release()
	return nil
}
