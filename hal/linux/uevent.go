//go:build linux

package linux

import (
	"bytes"
	"path"
	"strconv"
	"strings"
)

// =============================================================================
// UEvent Types
// =============================================================================

// ueventAction represents a kernel uevent action.
type ueventAction uint8

const (
	ueventUnknown ueventAction = iota
	ueventAdd
	ueventRemove
	ueventChange
	ueventBind
	ueventUnbind
)

var ueventActions = map[string]ueventAction{
	"add":    ueventAdd,
	"remove": ueventRemove,
	"change": ueventChange,
	"bind":   ueventBind,
	"unbind": ueventUnbind,
}

// uevent is a parsed netlink uevent.
type uevent struct {
	action    ueventAction
	devpath   string // DEVPATH
	subsystem string // SUBSYSTEM
	devtype   string // DEVTYPE
	product   string // PRODUCT, "vid/pid/bcdDevice" in unpadded hex
	busnum    string // BUSNUM
	devnum    string // DEVNUM
}

// =============================================================================
// UEvent Parsing
// =============================================================================

// parseUEvent parses a NUL-separated kernel uevent message. The first
// record is "action@devpath"; the rest are KEY=value pairs that override it.
func parseUEvent(data []byte) uevent {
	var evt uevent

	for _, rec := range bytes.Split(data, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		s := string(rec)

		key, value, ok := strings.Cut(s, "=")
		if !ok {
			if action, devpath, ok := strings.Cut(s, "@"); ok {
				evt.action = ueventActions[action]
				evt.devpath = devpath
			}
			continue
		}

		switch key {
		case "ACTION":
			evt.action = ueventActions[value]
		case "DEVPATH":
			evt.devpath = value
		case "SUBSYSTEM":
			evt.subsystem = value
		case "DEVTYPE":
			evt.devtype = value
		case "PRODUCT":
			evt.product = value
		case "BUSNUM":
			evt.busnum = value
		case "DEVNUM":
			evt.devnum = value
		}
	}

	return evt
}

// isUSBDevice reports whether the event describes a whole USB device
// rather than one of its interfaces.
func (e uevent) isUSBDevice() bool {
	return e.subsystem == "usb" && e.devtype == "usb_device"
}

// ids returns the vendor and product IDs from the PRODUCT key.
func (e uevent) ids() (vid, pid uint16, ok bool) {
	parts := strings.Split(e.product, "/")
	if len(parts) < 2 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}

// location returns the bus and device numbers, if present.
func (e uevent) location() (bus, dev uint8) {
	return parseLocation(e.busnum), parseLocation(e.devnum)
}

// parseLocation reads a BUSNUM or DEVNUM value. Location is informational
// only; anything unparsable or out of range reads as zero.
func parseLocation(s string) uint8 {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

// name returns the sysfs device name, the last devpath element.
func (e uevent) name() string {
	return path.Base(e.devpath)
}
