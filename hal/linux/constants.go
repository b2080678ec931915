//go:build linux

package linux

import (
	"time"

	"golang.org/x/sys/unix"
)

// SysfsUSBPath is the base path for USB devices in sysfs.
const SysfsUSBPath = "/sys/bus/usb/devices"

// Netlink constants.
const (
	// UEventBufferSize is the receive buffer size for one uevent.
	UEventBufferSize = 8192

	// ueventGroupKernel is the multicast group of raw kernel uevents.
	ueventGroupKernel = 1
)

// pollTimeout bounds each poll(2) so Stop is observed promptly.
const pollTimeout = 100 * time.Millisecond

const netlinkKObjectUEvent = unix.NETLINK_KOBJECT_UEVENT
