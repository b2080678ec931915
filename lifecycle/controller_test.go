package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher records calls and can be told to fail.
type fakePublisher struct {
	mutex      sync.Mutex
	visible    bool
	publishes  int
	retracts   int
	publishErr error
	retractErr error
}

func (p *fakePublisher) Publish(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.publishes++
	if p.publishErr != nil {
		return p.publishErr
	}
	p.visible = true
	return nil
}

func (p *fakePublisher) Retract() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.retracts++
	p.visible = false
	return p.retractErr
}

func (p *fakePublisher) isVisible() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.visible
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Detached", StateDetached.String())
	assert.Equal(t, "Attached", StateAttached.String())
	assert.Equal(t, "Unknown", State(9).String())
}

func TestAttachDetach(t *testing.T) {
	p := &fakePublisher{}
	c := NewController(p)
	assert.Equal(t, StateDetached, c.State())
	assert.False(t, c.Published())

	require.NoError(t, c.Attach(context.Background()))
	assert.Equal(t, StateAttached, c.State())
	assert.True(t, c.Published())
	assert.True(t, p.isVisible())

	require.NoError(t, c.Detach())
	assert.Equal(t, StateDetached, c.State())
	assert.False(t, c.Published())
	assert.False(t, p.isVisible())
}

func TestDuplicateEvents(t *testing.T) {
	p := &fakePublisher{}
	c := NewController(p)

	require.NoError(t, c.Detach())
	assert.Zero(t, p.retracts)

	require.NoError(t, c.Attach(context.Background()))
	require.NoError(t, c.Attach(context.Background()))
	assert.Equal(t, 1, p.publishes)

	require.NoError(t, c.Detach())
	require.NoError(t, c.Detach())
	assert.Equal(t, 1, p.retracts)
}

func TestPublishFailure(t *testing.T) {
	boom := errors.New("node exists")
	p := &fakePublisher{publishErr: boom}
	c := NewController(p)

	var failures []error
	c.SetOnPublishFailure(func(err error) { failures = append(failures, err) })

	err := c.Attach(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateDetached, c.State())
	assert.False(t, c.Published())
	assert.Len(t, failures, 1)

	// Absence after a failed attach does not retract.
	require.NoError(t, c.Detach())
	assert.Zero(t, p.retracts)

	// The next presence event retries.
	p.publishErr = nil
	require.NoError(t, c.Attach(context.Background()))
	assert.True(t, c.Published())
}

func TestRetractFailure(t *testing.T) {
	boom := errors.New("unlink failed")
	p := &fakePublisher{retractErr: boom}
	c := NewController(p)

	require.NoError(t, c.Attach(context.Background()))
	err := c.Detach()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateDetached, c.State())
	assert.False(t, c.Published())
}

func TestStateChangeCallback(t *testing.T) {
	c := NewController(&fakePublisher{})

	type change struct{ old, new State }
	var changes []change
	c.SetOnStateChange(func(old, new State) {
		// Called without the lock held.
		_ = c.State()
		changes = append(changes, change{old, new})
	})

	require.NoError(t, c.Attach(context.Background()))
	require.NoError(t, c.Attach(context.Background()))
	require.NoError(t, c.Detach())

	assert.Equal(t, []change{
		{StateDetached, StateAttached},
		{StateAttached, StateDetached},
	}, changes)
}

func TestConcurrentEvents(t *testing.T) {
	p := &fakePublisher{}
	c := NewController(p)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(attach bool) {
			defer wg.Done()
			if attach {
				_ = c.Attach(context.Background())
			} else {
				_ = c.Detach()
			}
		}(i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, c.State() == StateAttached, c.Published())
	assert.Equal(t, c.Published(), p.isVisible())
}
