//go:build !linux

package main

import (
	"fmt"

	"github.com/ardnew/intstack/config"
	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
)

func newLinuxHAL(hal.Filter) (hal.TokenHAL, error) {
	return nil, fmt.Errorf("%w: hal %q requires linux", pkg.ErrNotSupported, config.HALLinux)
}
