package main

import (
	"fmt"

	"github.com/ardnew/intstack/config"
	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/hal/fifo"
	"github.com/ardnew/intstack/hal/static"
)

// newHAL selects the token detector for cfg.
func newHAL(cfg *config.Config) (hal.TokenHAL, error) {
	filter, err := cfg.Filter()
	if err != nil {
		return nil, err
	}

	if cfg.Mode == config.ModeStatic {
		return static.New(hal.Token{
			VendorID:  filter.VendorID,
			ProductID: filter.ProductID,
		}), nil
	}

	switch cfg.HAL {
	case config.HALFIFO:
		return fifo.New(cfg.FIFODir, filter), nil
	case config.HALLinux:
		return newLinuxHAL(filter)
	default:
		return nil, fmt.Errorf("%w: hal %q", config.ErrInvalid, cfg.HAL)
	}
}
