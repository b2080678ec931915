// Package linux provides a TokenHAL that detects the token through the
// kernel's USB hotplug events.
//
// The HAL binds a NETLINK_KOBJECT_UEVENT socket to the kernel broadcast
// group and filters usb_device add and remove events by vendor and product
// ID. Tokens already plugged in when the HAL starts are found by scanning
// sysfs (/sys/bus/usb/devices/). No cgo or udev library is required.
//
// The HAL tracks one token at a time: while a matching token is attached,
// further matching arrivals are ignored and only the removal of that
// token's devpath is reported.
package linux
