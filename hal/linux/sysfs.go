//go:build linux

package linux

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/intstack/hal"
)

// usbDeviceInfo holds the sysfs attributes of one USB device.
type usbDeviceInfo struct {
	name      string // sysfs entry, e.g. "1-1.2"
	busNum    uint8
	devNum    uint8
	vendorID  uint16
	productID uint16
}

func (d usbDeviceInfo) token() hal.Token {
	return hal.Token{
		VendorID:  d.vendorID,
		ProductID: d.productID,
		Path:      d.name,
		Bus:       d.busNum,
		Dev:       d.devNum,
	}
}

// scanUSBDevices lists the USB devices under root.
func scanUSBDevices(root string) ([]usbDeviceInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var devices []usbDeviceInfo
	for _, entry := range entries {
		name := entry.Name()

		// Skip root hubs (usb1) and interfaces (1-1:1.0).
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}

		info, err := parseUSBDevice(filepath.Join(root, name))
		if err != nil {
			continue
		}
		devices = append(devices, info)
	}
	return devices, nil
}

// parseUSBDevice reads the identifying attributes of a sysfs device.
func parseUSBDevice(dir string) (usbDeviceInfo, error) {
	info := usbDeviceInfo{name: filepath.Base(dir)}

	var err error
	if info.vendorID, err = readSysfsHexUint16(filepath.Join(dir, "idVendor")); err != nil {
		return info, err
	}
	if info.productID, err = readSysfsHexUint16(filepath.Join(dir, "idProduct")); err != nil {
		return info, err
	}

	// Location is informational only.
	info.busNum, _ = readSysfsUint8(filepath.Join(dir, "busnum"))
	info.devNum, _ = readSysfsUint8(filepath.Join(dir, "devnum"))

	return info, nil
}

// =============================================================================
// Sysfs Read Helpers
// =============================================================================

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readSysfsUint8(path string) (uint8, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

func readSysfsHexUint16(path string) (uint16, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
