package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
)

// RunOptions configures Run.
type RunOptions struct {
	// FailFast makes Run return the first publish error instead of
	// waiting for the next presence event.
	FailFast bool

	// Started is called once the HAL is monitoring.
	Started func()
}

// Run initializes and starts h, then feeds its presence events to c until
// ctx is done. The interface is retracted before Run returns. Run returns
// nil on cancellation.
func Run(ctx context.Context, c *Controller, h hal.TokenHAL, opts RunOptions) (err error) {
	if err := h.Init(ctx); err != nil {
		return fmt.Errorf("init HAL: %w", err)
	}
	defer h.Close()

	if err := h.Start(); err != nil {
		return fmt.Errorf("start HAL: %w", err)
	}
	defer h.Stop()

	defer func() {
		if derr := c.Detach(); derr != nil && err == nil {
			err = derr
		}
	}()

	if opts.Started != nil {
		opts.Started()
	}

	for {
		tok, err := h.WaitForAttach(ctx)
		if err != nil {
			return waitErr(ctx, err)
		}
		pkg.LogInfo(pkg.ComponentLifecycle, "token attached", "token", tok)

		if err := c.Attach(ctx); err != nil && opts.FailFast {
			return err
		}

		tok, err = h.WaitForDetach(ctx)
		if err != nil {
			return waitErr(ctx, err)
		}
		pkg.LogInfo(pkg.ComponentLifecycle, "token detached", "token", tok)

		if err := c.Detach(); err != nil {
			pkg.LogError(pkg.ComponentLifecycle, "detach", "error", err)
		}
	}
}

// waitErr filters shutdown errors from HAL waits.
func waitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, pkg.ErrCancelled) {
		return nil
	}
	return fmt.Errorf("wait for token: %w", err)
}
