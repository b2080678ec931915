// Package static provides a TokenHAL whose token is always present.
//
// It drives the non-hotplug deployment: the interface is published once
// at startup and retracted only at shutdown.
package static

import (
	"context"
	"sync"

	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
)

// HAL reports a single attach, then a detach only when stopped.
type HAL struct {
	token hal.Token

	mutex    sync.Mutex
	attached bool
	started  bool
	done     chan struct{}
}

// New creates a static HAL reporting tok.
func New(tok hal.Token) *HAL {
	return &HAL{token: tok, done: make(chan struct{})}
}

// Init implements hal.TokenHAL.
func (h *HAL) Init(ctx context.Context) error { return nil }

// Start implements hal.TokenHAL.
func (h *HAL) Start() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.started {
		return pkg.ErrAlreadyRunning
	}
	h.started = true
	pkg.LogDebug(pkg.ComponentHAL, "static HAL started", "token", h.token)
	return nil
}

// Stop implements hal.TokenHAL.
func (h *HAL) Stop() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	return nil
}

// Close implements hal.TokenHAL.
func (h *HAL) Close() error { return h.Stop() }

// WaitForAttach returns the token on the first call and blocks afterward.
func (h *HAL) WaitForAttach(ctx context.Context) (hal.Token, error) {
	h.mutex.Lock()
	if !h.started {
		h.mutex.Unlock()
		return hal.Token{}, pkg.ErrNotRunning
	}
	first := !h.attached
	h.attached = true
	h.mutex.Unlock()

	if first {
		select {
		case <-h.done:
			return hal.Token{}, pkg.ErrCancelled
		default:
			return h.token, nil
		}
	}
	return hal.Token{}, h.wait(ctx)
}

// WaitForDetach blocks until the HAL is stopped or ctx is done.
func (h *HAL) WaitForDetach(ctx context.Context) (hal.Token, error) {
	return hal.Token{}, h.wait(ctx)
}

func (h *HAL) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return pkg.ErrCancelled
	}
}
