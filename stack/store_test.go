package stack

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/intstack/pkg"
)

func newStore(t *testing.T, capacity int32) *Store {
	t.Helper()
	s, err := NewStore(capacity, nil)
	require.NoError(t, err)
	return s
}

func TestStoreLIFO(t *testing.T) {
	s := newStore(t, 8)
	values := []int32{3, -1, 7, 0, 42}
	for _, v := range values {
		require.NoError(t, s.Push(v))
	}
	for i := len(values) - 1; i >= 0; i-- {
		v, ok := s.Pop()
		require.True(t, ok)
		assert.Equal(t, values[i], v)
	}
	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestStorePushFull(t *testing.T) {
	s := newStore(t, 2)
	require.NoError(t, s.Push(10))
	require.NoError(t, s.Push(20))

	err := s.Push(30)
	require.ErrorIs(t, err, pkg.ErrCapacityExceeded)
	assert.Equal(t, int32(2), s.Depth())

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, int32(20), v)
	v, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, int32(10), v)
	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestStoreZeroCapacity(t *testing.T) {
	s := newStore(t, 0)
	assert.ErrorIs(t, s.Push(1), pkg.ErrCapacityExceeded)
	assert.Equal(t, int32(0), s.Depth())
	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestStorePopEmptyUnchanged(t *testing.T) {
	s := newStore(t, 3)
	_, ok := s.Pop()
	assert.False(t, ok)
	assert.Equal(t, int32(0), s.Depth())
	assert.Equal(t, int32(3), s.Capacity())
}

func TestStoreExtremes(t *testing.T) {
	s := newStore(t, 4)
	for _, v := range []int32{math.MinInt32, math.MaxInt32, -1, 0} {
		require.NoError(t, s.Push(v))
		got, ok := s.Pop()
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestStoreResize(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int32
		pushes    int
		resize    int32
		wantDepth int32
		wantTop   int32
	}{
		{"grow", 2, 2, 10, 2, 2},
		{"same", 3, 3, 3, 3, 3},
		{"shrink truncates", 5, 5, 2, 2, 2},
		{"shrink keeps", 5, 1, 2, 1, 1},
		{"empty", 4, 0, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, tt.capacity)
			for i := 1; i <= tt.pushes; i++ {
				require.NoError(t, s.Push(int32(i)))
			}
			require.NoError(t, s.Resize(tt.resize))
			assert.Equal(t, tt.resize, s.Capacity())
			assert.Equal(t, tt.wantDepth, s.Depth())
			if tt.wantDepth > 0 {
				v, ok := s.Pop()
				require.True(t, ok)
				assert.Equal(t, tt.wantTop, v)
			}
		})
	}
}

func TestStoreResizeInvalid(t *testing.T) {
	for _, n := range []int32{0, -1, math.MinInt32} {
		s := newStore(t, 3)
		require.NoError(t, s.Push(9))

		err := s.Resize(n)
		require.ErrorIs(t, err, pkg.ErrInvalidSize)
		assert.Equal(t, int32(3), s.Capacity())
		assert.Equal(t, int32(1), s.Depth())
	}
}

func TestStoreResizeOutOfMemory(t *testing.T) {
	s, err := NewStore(2, LimitAllocator(4))
	require.NoError(t, err)
	require.NoError(t, s.Push(1))
	require.NoError(t, s.Push(2))

	err = s.Resize(5)
	require.ErrorIs(t, err, pkg.ErrOutOfMemory)
	assert.Equal(t, int32(2), s.Capacity())
	assert.Equal(t, int32(2), s.Depth())

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, int32(2), v)
}

func TestStoreResizeAllocatorError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	alloc := func(n int) ([]int32, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return make([]int32, n), nil
	}
	s, err := NewStore(1, alloc)
	require.NoError(t, err)
	require.ErrorIs(t, s.Resize(8), boom)
	assert.Equal(t, int32(1), s.Capacity())
}

func TestNewStoreNegative(t *testing.T) {
	_, err := NewStore(-1, nil)
	assert.ErrorIs(t, err, pkg.ErrInvalidSize)
}

func TestLimitAllocator(t *testing.T) {
	alloc := LimitAllocator(16)

	buf, err := alloc(16)
	require.NoError(t, err)
	assert.Len(t, buf, 16)

	_, err = alloc(17)
	assert.ErrorIs(t, err, pkg.ErrOutOfMemory)

	_, err = alloc(-1)
	assert.ErrorIs(t, err, pkg.ErrOutOfMemory)

	buf, err = LimitAllocator(0)(32)
	require.NoError(t, err)
	assert.Len(t, buf, 32)
}
