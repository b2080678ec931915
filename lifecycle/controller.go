package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardnew/intstack/pkg"
)

// State is the lifecycle state of the interface.
type State uint8

// Lifecycle states.
const (
	StateDetached State = iota
	StateAttached
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDetached:
		return "Detached"
	case StateAttached:
		return "Attached"
	default:
		return "Unknown"
	}
}

// Publisher makes the device interface visible to clients.
type Publisher interface {
	// Publish creates the interface. On error nothing is left behind.
	Publish(ctx context.Context) error

	// Retract removes the interface and disconnects clients.
	Retract() error
}

// Controller is the attach/detach state machine.
type Controller struct {
	publisher Publisher

	// transition serializes Attach and Detach so Publish and Retract
	// never overlap; mutex guards the fields below for readers.
	transition sync.Mutex
	mutex      sync.RWMutex
	state      State
	published  bool

	onStateChange    func(old, new State)
	onPublishFailure func(err error)
}

// NewController creates a detached controller.
func NewController(p Publisher) *Controller {
	return &Controller{publisher: p}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.state
}

// Published reports whether the interface is currently visible.
func (c *Controller) Published() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.published
}

// SetOnStateChange sets the callback invoked after each transition.
func (c *Controller) SetOnStateChange(cb func(old, new State)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onStateChange = cb
}

// SetOnPublishFailure sets the callback invoked when Attach fails.
func (c *Controller) SetOnPublishFailure(cb func(err error)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onPublishFailure = cb
}

// Attach handles a presence event.
func (c *Controller) Attach(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	if c.State() == StateAttached {
		pkg.LogDebug(pkg.ComponentLifecycle, "already attached, ignoring presence event")
		return nil
	}

	if err := c.publisher.Publish(ctx); err != nil {
		pkg.LogWarn(pkg.ComponentLifecycle, "publish failed", "error", err)
		c.mutex.RLock()
		cb := c.onPublishFailure
		c.mutex.RUnlock()
		if cb != nil {
			cb(err)
		}
		return fmt.Errorf("publish interface: %w", err)
	}

	c.setState(StateAttached, true)
	return nil
}

// Detach handles an absence event. The controller is detached afterward
// even if retracting fails; the retract error is returned for reporting.
func (c *Controller) Detach() error {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mutex.RLock()
	state, published := c.state, c.published
	c.mutex.RUnlock()

	if state == StateDetached {
		pkg.LogDebug(pkg.ComponentLifecycle, "already detached, ignoring absence event")
		return nil
	}

	var err error
	if published {
		if err = c.publisher.Retract(); err != nil {
			pkg.LogWarn(pkg.ComponentLifecycle, "retract failed", "error", err)
			err = fmt.Errorf("retract interface: %w", err)
		}
	}

	c.setState(StateDetached, false)
	return err
}

func (c *Controller) setState(newState State, published bool) {
	c.mutex.Lock()
	oldState := c.state
	c.state = newState
	c.published = published
	callback := c.onStateChange
	c.mutex.Unlock()

	if oldState != newState {
		pkg.LogInfo(pkg.ComponentLifecycle, "state changed",
			"from", oldState.String(),
			"to", newState.String())
		if callback != nil {
			callback(oldState, newState)
		}
	}
}
