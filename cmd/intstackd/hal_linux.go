//go:build linux

package main

import (
	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/hal/linux"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/pkg/linux/usbid"
)

func newLinuxHAL(filter hal.Filter) (hal.TokenHAL, error) {
	var opts []linux.Option
	if db, err := usbid.Open(); err == nil {
		opts = append(opts, linux.WithNames(db))
	} else {
		pkg.LogDebug(pkg.ComponentHAL, "token names unavailable", "error", err)
	}
	return linux.New(filter, opts...), nil
}
