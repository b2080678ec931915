package main

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/intstack/config"
	"github.com/ardnew/intstack/device"
	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/lifecycle"
	"github.com/ardnew/intstack/metrics"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/server"
	"github.com/ardnew/intstack/stack"
)

// daemonParts is the wired object graph of a running daemon.
type daemonParts struct {
	stack   *stack.Stack
	server  *server.Server
	ctrl    *lifecycle.Controller
	metrics *metrics.Metrics
	hal     hal.TokenHAL
}

// assemble builds the daemon from cfg without starting anything.
func assemble(cfg *config.Config) (*daemonParts, error) {
	mode, err := cfg.FileMode()
	if err != nil {
		return nil, err
	}
	h, err := newHAL(cfg)
	if err != nil {
		return nil, err
	}

	st, err := stack.New(
		stack.WithCapacity(cfg.InitialCapacity),
		stack.WithMaxCapacity(cfg.MaxCapacity),
	)
	if err != nil {
		return nil, fmt.Errorf("create stack: %w", err)
	}

	p := &daemonParts{stack: st, hal: h}
	p.metrics = metrics.New(metrics.Sources{
		Stack:       st,
		Connections: func() int { return p.server.Connections() },
		Published:   func() bool { return p.ctrl.Published() },
	})

	dev := device.New(st, device.WithObserver(p.metrics.ObserveOperation))
	p.server = server.New(cfg.Socket, dev,
		server.WithMode(mode),
		server.WithMaxConns(cfg.MaxConns),
	)

	p.ctrl = lifecycle.NewController(p.server)
	p.ctrl.SetOnStateChange(p.metrics.ObserveTransition)
	p.ctrl.SetOnPublishFailure(p.metrics.ObservePublishFailure)
	return p, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	p, err := assemble(cfg)
	if err != nil {
		return err
	}
	defer p.stack.Close()

	pkg.LogInfo(pkg.ComponentLifecycle, "starting",
		"version", version,
		"mode", cfg.Mode,
		"socket", cfg.Socket)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return lifecycle.Run(ctx, p.ctrl, p.hal, lifecycle.RunOptions{
			FailFast: cfg.Mode == config.ModeStatic,
			Started: func() {
				if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
					pkg.LogDebug(pkg.ComponentLifecycle, "sd_notify failed", "error", err)
				}
			},
		})
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return p.metrics.Serve(ctx, cfg.MetricsAddr)
		})
	}

	err = g.Wait()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	pkg.LogInfo(pkg.ComponentLifecycle, "stopped")
	return err
}
